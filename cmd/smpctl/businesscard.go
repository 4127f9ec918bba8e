package main

import (
	"github.com/spf13/cobra"

	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

func businessCardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "businesscard",
		Aliases: []string{"bc"},
		Short:   "Inspect business cards",
	}
	cmd.AddCommand(businessCardShowCmd(a), businessCardDeleteCmd(a))
	return cmd
}

type nameView struct {
	Name     string `yaml:"name"`
	Language string `yaml:"language,omitempty"`
}

type entityView struct {
	Names       []nameView `yaml:"names"`
	CountryCode string     `yaml:"countryCode"`
	Geo         string     `yaml:"geographicalInformation,omitempty"`
	Websites    []string   `yaml:"websites,omitempty"`
	Additional  string     `yaml:"additionalInformation,omitempty"`
	Registered  string     `yaml:"registrationDate,omitempty"`
}

func businessCardShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [participant]",
		Short: "Show the business card of a participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sg, err := a.serviceGroup(ctx, args[0])
			if err != nil {
				return err
			}
			cards, err := a.reg.BusinessCards(ctx)
			if err != nil {
				return err
			}
			bc, err := cards.OfServiceGroup(ctx, sg)
			if err != nil {
				return err
			}

			views := make([]entityView, 0, len(bc.Entities))
			for _, e := range bc.Entities {
				v := entityView{
					CountryCode: e.CountryCode,
					Geo:         e.GeographicalInformation,
					Websites:    e.WebsiteURIs,
					Additional:  e.AdditionalInformation,
				}
				for _, n := range e.Names {
					v.Names = append(v.Names, nameView{Name: n.Name, Language: n.Language})
				}
				if e.RegistrationDate != nil {
					v.Registered = e.RegistrationDate.Format("2006-01-02")
				}
				views = append(views, v)
			}
			return printYAML(cmd.OutOrStdout(), map[string]interface{}{
				"participant": bc.ServiceGroupID,
				"entities":    views,
			})
		},
	}
}

func businessCardDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [participant]",
		Short: "Delete the business card of a participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sg, err := a.serviceGroup(ctx, args[0])
			if err != nil {
				return err
			}
			cards, err := a.reg.BusinessCards(ctx)
			if err != nil {
				return err
			}
			change, err := cards.DeleteAllOfServiceGroup(ctx, sg)
			if err != nil {
				return err
			}
			if change == smp.Unchanged {
				printWarning(cmd.OutOrStdout(), "no business card for %s", sg.ID())
				return nil
			}
			printSuccess(cmd.OutOrStdout(), "deleted business card of %s", sg.ID())
			return nil
		},
	}
}
