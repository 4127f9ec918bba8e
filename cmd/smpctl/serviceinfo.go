package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

func serviceInfoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serviceinfo",
		Aliases: []string{"si"},
		Short:   "Inspect service information",
	}
	cmd.AddCommand(serviceInfoListCmd(a), serviceInfoEndpointsCmd(a), serviceInfoProfileInUseCmd(a))
	return cmd
}

func serviceInfoListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [participant]",
		Short: "List service information, of one participant or of all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			infos, err := reg.ServiceInformation(ctx)
			if err != nil {
				return err
			}

			var list []*smp.ServiceInformation
			if len(args) == 1 {
				sg, err := a.serviceGroup(ctx, args[0])
				if err != nil {
					return err
				}
				if list, err = infos.AllOfServiceGroup(ctx, sg); err != nil {
					return err
				}
			} else if list, err = infos.All(ctx); err != nil {
				return err
			}

			rows := make([][]string, 0, len(list))
			for _, si := range list {
				rows = append(rows, []string{
					si.ServiceGroupID,
					si.DocumentTypeID.URIEncoded(),
					strconv.Itoa(si.ProcessCount()),
					strconv.Itoa(si.TotalEndpointCount()),
				})
			}
			return printTable(cmd.OutOrStdout(), []string{"PARTICIPANT", "DOCUMENT TYPE", "PROCESSES", "ENDPOINTS"}, rows)
		},
	}
}

func serviceInfoEndpointsCmd(a *app) *cobra.Command {
	var process, transport string
	cmd := &cobra.Command{
		Use:   "endpoints [participant] [document type]",
		Short: "List the endpoints of a document type",
		Long: `List the endpoints of a document type.

With --process and --transport only the matching endpoint is shown, and
nothing is found if the service information has no such endpoint.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			docType, err := a.ids.ParseDocumentTypeID(args[1])
			if err != nil {
				return err
			}
			sg, err := a.serviceGroup(ctx, args[0])
			if err != nil {
				return err
			}
			infos, err := a.reg.ServiceInformation(ctx)
			if err != nil {
				return err
			}

			var si *smp.ServiceInformation
			if process != "" && transport != "" {
				pid, err := a.ids.ParseProcessID(process)
				if err != nil {
					return err
				}
				si, err = infos.Find(ctx, sg, docType, pid, transport)
				if err != nil {
					return err
				}
			} else if si, err = infos.OfServiceGroupAndDocumentType(ctx, sg, docType); err != nil {
				return err
			}

			var rows [][]string
			for _, p := range si.Processes {
				if process != "" && p.ProcessID.URIEncoded() != process && p.ProcessID.Value != process {
					continue
				}
				for _, ep := range p.Endpoints {
					if transport != "" && ep.TransportProfile != transport {
						continue
					}
					rows = append(rows, []string{
						p.ProcessID.URIEncoded(),
						ep.TransportProfile,
						ep.EndpointReference,
						formatTime(ep.ServiceActivation),
						formatTime(ep.ServiceExpiration),
					})
				}
			}
			return printTable(cmd.OutOrStdout(), []string{"PROCESS", "TRANSPORT", "URL", "ACTIVATION", "EXPIRATION"}, rows)
		},
	}
	cmd.Flags().StringVar(&process, "process", "", "process identifier")
	cmd.Flags().StringVar(&transport, "transport", "", "transport profile")
	return cmd
}

func serviceInfoProfileInUseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile-in-use [transport profile]",
		Short: "Report whether any endpoint uses a transport profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			infos, err := reg.ServiceInformation(ctx)
			if err != nil {
				return err
			}
			used, err := infos.ContainsAnyEndpointWithTransportProfile(ctx, args[0])
			if err != nil {
				return err
			}
			if used {
				printWarning(cmd.OutOrStdout(), "transport profile %s is in use", args[0])
				return nil
			}
			printSuccess(cmd.OutOrStdout(), "transport profile %s is not used", args[0])
			return nil
		},
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
