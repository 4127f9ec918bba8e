package main

import (
	"github.com/spf13/cobra"

	"github.com/PiccoloProcione/supersmp/pkg/discovery"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

type lookupView struct {
	SMP               string   `yaml:"smp"`
	PointsHere        bool     `yaml:"pointsHere"`
	ServiceReferences []string `yaml:"serviceReferences,omitempty"`
	Endpoint          string   `yaml:"endpoint,omitempty"`
	TransportProfile  string   `yaml:"transportProfile,omitempty"`
}

func lookupCmd(a *app) *cobra.Command {
	var docType, process, transport string
	cmd := &cobra.Command{
		Use:   "lookup [participant]",
		Short: "Resolve a participant the way a sender does",
		Long: `Resolve a participant the way a sender does: find its SMP in the SML
DNS zone and read what that SMP publishes.

With --document-type the active endpoint for the document type is resolved,
optionally restricted by --process and --transport.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pid, err := a.ids.ParseParticipantID(args[0])
			if err != nil {
				return err
			}
			resolver := discovery.NewResolver(discovery.Config{
				Locator: discovery.LocatorConfig{
					Zone:      a.cfg.SML.DNSZone,
					DNSServer: a.cfg.SML.DNSServer,
				},
			})

			if docType == "" {
				res, err := resolver.Resolve(ctx, pid)
				if err != nil {
					return err
				}
				return printYAML(cmd.OutOrStdout(), lookupView{
					SMP:               res.SMPURL,
					PointsHere:        discovery.SameSMP(res.SMPURL, a.cfg.SMP.PublicURL),
					ServiceReferences: res.ServiceGroup.ServiceReferences,
				})
			}

			dt, err := a.ids.ParseDocumentTypeID(docType)
			if err != nil {
				return err
			}
			var proc identifier.ProcessID
			if process != "" {
				if proc, err = a.ids.ParseProcessID(process); err != nil {
					return err
				}
			}
			smpURL, err := resolver.Locator().LocateSMP(ctx, pid)
			if err != nil {
				return err
			}
			ep, err := resolver.ResolveEndpoint(ctx, pid, dt, proc, transport)
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), lookupView{
				SMP:              smpURL,
				PointsHere:       discovery.SameSMP(smpURL, a.cfg.SMP.PublicURL),
				Endpoint:         ep.EndpointURL,
				TransportProfile: ep.TransportProfile,
			})
		},
	}
	cmd.Flags().StringVar(&docType, "document-type", "", "resolve the endpoint of this document type")
	cmd.Flags().StringVar(&process, "process", "", "process identifier")
	cmd.Flags().StringVar(&transport, "transport", "", "transport profile")
	return cmd
}
