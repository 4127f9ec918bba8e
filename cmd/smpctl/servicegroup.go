package main

import (
	"github.com/spf13/cobra"

	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

func serviceGroupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "servicegroup",
		Aliases: []string{"sg"},
		Short:   "Manage service groups",
	}
	cmd.AddCommand(
		serviceGroupCreateCmd(a),
		serviceGroupUpdateCmd(a),
		serviceGroupDeleteCmd(a),
		serviceGroupListCmd(a),
		serviceGroupShowCmd(a),
	)
	return cmd
}

func serviceGroupCreateCmd(a *app) *cobra.Command {
	var owner, ext string
	cmd := &cobra.Command{
		Use:   "create [participant]",
		Short: "Register a participant in the SML and create its service group",
		Example: `  smpctl servicegroup create iso6523-actorid-upis::9915:test --owner admin
  smpctl sg create 9915:test --owner admin --extension '<Ext xmlns="urn:x"/>'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pid, err := a.ids.ParseParticipantID(args[0])
			if err != nil {
				return err
			}
			e, err := extension.Parse(ext)
			if err != nil {
				return err
			}
			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			groups, err := reg.ServiceGroups(ctx)
			if err != nil {
				return err
			}
			sg, err := groups.Create(ctx, owner, pid, e)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "created service group %s", sg.ID())
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner of the service group")
	cmd.Flags().StringVar(&ext, "extension", "", "extension XML or JSON list")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func serviceGroupUpdateCmd(a *app) *cobra.Command {
	var owner, ext string
	cmd := &cobra.Command{
		Use:   "update [participant]",
		Short: "Change owner or extension of a service group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sg, err := a.serviceGroup(ctx, args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("owner") {
				sg.OwnerID = owner
			}
			if cmd.Flags().Changed("extension") {
				if sg.Extension, err = extension.Parse(ext); err != nil {
					return err
				}
			}

			groups, err := a.reg.ServiceGroups(ctx)
			if err != nil {
				return err
			}
			change, err := groups.Update(ctx, sg.ID(), sg.OwnerID, sg.Extension)
			if err != nil {
				return err
			}
			if change == smp.Unchanged {
				printWarning(cmd.OutOrStdout(), "service group %s unchanged", sg.ID())
				return nil
			}
			printSuccess(cmd.OutOrStdout(), "updated service group %s", sg.ID())
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "new owner")
	cmd.Flags().StringVar(&ext, "extension", "", "new extension XML or JSON list; empty removes it")
	return cmd
}

func serviceGroupDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [participant]",
		Short: "Unregister a participant and delete everything stored for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pid, err := a.ids.ParseParticipantID(args[0])
			if err != nil {
				return err
			}
			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			groups, err := reg.ServiceGroups(ctx)
			if err != nil {
				return err
			}
			change, err := groups.Delete(ctx, pid)
			if err != nil {
				return err
			}
			if change == smp.Unchanged {
				printWarning(cmd.OutOrStdout(), "no service group for %s", pid.URIEncoded())
				return nil
			}
			printSuccess(cmd.OutOrStdout(), "deleted service group %s", pid.URIEncoded())
			return nil
		},
	}
}

func serviceGroupListCmd(a *app) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List service groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			groups, err := reg.ServiceGroups(ctx)
			if err != nil {
				return err
			}

			var list []*smp.ServiceGroup
			if owner != "" {
				list, err = groups.AllOfOwner(ctx, owner)
			} else {
				list, err = groups.All(ctx)
			}
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(list))
			for _, sg := range list {
				rows = append(rows, []string{sg.ID(), sg.OwnerID})
			}
			return printTable(cmd.OutOrStdout(), []string{"PARTICIPANT", "OWNER"}, rows)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only groups of this owner")
	return cmd
}

// serviceGroupView is the printed form of a service group
type serviceGroupView struct {
	ID                 string   `yaml:"id"`
	Owner              string   `yaml:"owner"`
	Extension          string   `yaml:"extension,omitempty"`
	DocumentTypes      []string `yaml:"documentTypes,omitempty"`
	Redirects          []string `yaml:"redirects,omitempty"`
	Endpoints          int      `yaml:"endpoints"`
	BusinessCardEntity int      `yaml:"businessCardEntities"`
}

func serviceGroupShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [participant]",
		Short: "Show a service group and what is stored for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sg, err := a.serviceGroup(ctx, args[0])
			if err != nil {
				return err
			}
			view := serviceGroupView{ID: sg.ID(), Owner: sg.OwnerID, Extension: sg.Extension.String()}

			infos, err := a.reg.ServiceInformation(ctx)
			if err != nil {
				return err
			}
			docTypes, err := infos.DocumentTypesOfServiceGroup(ctx, sg)
			if err != nil {
				return err
			}
			for _, dt := range docTypes {
				view.DocumentTypes = append(view.DocumentTypes, dt.URIEncoded())
			}
			if view.Endpoints, err = infos.TotalEndpointCount(ctx, sg); err != nil {
				return err
			}

			redirects, err := a.reg.Redirects(ctx)
			if err != nil {
				return err
			}
			rs, err := redirects.AllOfServiceGroup(ctx, sg)
			if err != nil {
				return err
			}
			for _, r := range rs {
				view.Redirects = append(view.Redirects, r.DocumentTypeID.URIEncoded()+" -> "+r.TargetHref)
			}

			cards, err := a.reg.BusinessCards(ctx)
			if err != nil {
				return err
			}
			bc, err := cards.OfServiceGroup(ctx, sg)
			switch {
			case err == nil:
				view.BusinessCardEntity = len(bc.Entities)
			case !isNotFound(err):
				return err
			}
			return printYAML(cmd.OutOrStdout(), view)
		},
	}
}
