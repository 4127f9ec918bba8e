// Command smpctl manages the registry of a Service Metadata Publisher.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	a := newApp()
	err := newRootCmd(a).Execute()
	if closeErr := a.close(context.Background()); err == nil {
		err = closeErr
	}
	if err != nil {
		printErr(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var noColor bool
	root := &cobra.Command{
		Use:           "smpctl",
		Short:         "Manage the service groups of an SMP",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setNoColor(noColor)
			return a.load()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "smp.yaml", "config file")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(serviceGroupCmd(a))
	root.AddCommand(redirectCmd(a))
	root.AddCommand(serviceInfoCmd(a))
	root.AddCommand(businessCardCmd(a))
	root.AddCommand(statusCmd(a))
	root.AddCommand(checkDNSCmd(a))
	root.AddCommand(lookupCmd(a))
	root.AddCommand(metricsCmd(a))
	return root
}
