package main

import (
	"crypto/x509"

	"github.com/spf13/cobra"

	"github.com/PiccoloProcione/supersmp/internal/keystore"
	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

func redirectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redirect",
		Short: "Manage redirects to other SMPs",
	}
	cmd.AddCommand(redirectSetCmd(a), redirectDeleteCmd(a), redirectListCmd(a))
	return cmd
}

func redirectSetCmd(a *app) *cobra.Command {
	var target, subject, certFile, ext string
	cmd := &cobra.Command{
		Use:   "set [participant] [document type]",
		Short: "Create or replace the redirect of a document type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			docType, err := a.ids.ParseDocumentTypeID(args[1])
			if err != nil {
				return err
			}
			e, err := extension.Parse(ext)
			if err != nil {
				return err
			}
			var cert *x509.Certificate
			if certFile != "" {
				if cert, err = keystore.LoadCertificate(certFile); err != nil {
					return err
				}
			}

			sg, err := a.serviceGroup(ctx, args[0])
			if err != nil {
				return err
			}
			redirects, err := a.reg.Redirects(ctx)
			if err != nil {
				return err
			}
			r, err := redirects.CreateOrUpdate(ctx, sg, docType, target, subject, cert, e)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "redirect %s -> %s", r.ID(), r.TargetHref)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "URL of the SMP to redirect to")
	cmd.Flags().StringVar(&subject, "subject-unique-id", "", "subject unique identifier of the target SMP certificate")
	cmd.Flags().StringVar(&certFile, "certificate", "", "PEM file with the target SMP certificate")
	cmd.Flags().StringVar(&ext, "extension", "", "extension XML or JSON list")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func redirectDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [participant] [document type]",
		Short: "Delete the redirect of a document type",
		Args:  cobra.ExactArgs(2),
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
			redirects, err := a.reg.Redirects(ctx)
			if err != nil {
				return err
			}
			r, err := redirects.OfServiceGroupAndDocumentType(ctx, sg, docType)
			if err != nil {
				return err
			}
			change, err := redirects.Delete(ctx, r)
			if err != nil {
				return err
			}
			if change == smp.Unchanged {
				printWarning(cmd.OutOrStdout(), "redirect %s already deleted", r.ID())
				return nil
			}
			printSuccess(cmd.OutOrStdout(), "deleted redirect %s", r.ID())
			return nil
		},
	}
}

func redirectListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [participant]",
		Short: "List redirects, of one participant or of all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			redirects, err := reg.Redirects(ctx)
			if err != nil {
				return err
			}

			var list []*smp.Redirect
			if len(args) == 1 {
				sg, err := a.serviceGroup(ctx, args[0])
				if err != nil {
					return err
				}
				list, err = redirects.AllOfServiceGroup(ctx, sg)
				if err != nil {
					return err
				}
			} else if list, err = redirects.All(ctx); err != nil {
				return err
			}

			rows := make([][]string, 0, len(list))
			for _, r := range list {
				subject := r.SubjectUniqueID
				if r.Certificate != nil && subject == "" {
					subject = r.Certificate.Subject.String()
				}
				rows = append(rows, []string{r.ServiceGroupID, r.DocumentTypeID.URIEncoded(), r.TargetHref, subject})
			}
			return printTable(cmd.OutOrStdout(), []string{"PARTICIPANT", "DOCUMENT TYPE", "TARGET", "SUBJECT"}, rows)
		},
	}
}
