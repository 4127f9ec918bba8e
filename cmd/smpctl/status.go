package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/PiccoloProcione/supersmp/internal/keystore"
	"github.com/PiccoloProcione/supersmp/internal/registry"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

type statusView struct {
	registry.Status `yaml:",inline"`
	Key             *keystore.KeyInfo `yaml:"key,omitempty"`
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show registry health, key material and entity counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			st, err := reg.Status(ctx)
			if err != nil {
				return err
			}

			view := statusView{Status: st}
			if info, err := a.keys.Info(); err == nil {
				view.Key = &info
			}
			if err := printYAML(cmd.OutOrStdout(), view); err != nil {
				return err
			}
			if st.Inconsistencies > 0 {
				printWarning(cmd.OutOrStdout(), "%d inconsistencies between storage and SML need reconciliation", st.Inconsistencies)
			}
			return nil
		},
	}
}

func checkDNSCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-dns [participant...]",
		Short: "Check that participants resolve to this SMP in the SML DNS zone",
		Long: `Check that participants resolve to this SMP in the SML DNS zone.

Without arguments every stored service group is checked. Use it to
reconcile after a failed compensation was reported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			checker, err := a.checker()
			if err != nil {
				return err
			}

			var pids []identifier.ParticipantID
			for _, arg := range args {
				pid, err := a.ids.ParseParticipantID(arg)
				if err != nil {
					return err
				}
				pids = append(pids, pid)
			}
			if len(pids) == 0 {
				reg, err := a.registry(ctx)
				if err != nil {
					return err
				}
				groups, err := reg.ServiceGroups(ctx)
				if err != nil {
					return err
				}
				all, err := groups.All(ctx)
				if err != nil {
					return err
				}
				for _, sg := range all {
					pids = append(pids, sg.ParticipantID)
				}
			}

			var rows [][]string
			var mismatches int
			for _, pid := range pids {
				res, err := checker.Check(ctx, pid)
				if err != nil {
					return fmt.Errorf("checking %s: %w", pid.URIEncoded(), err)
				}
				if !res.PointsHere {
					mismatches++
				}
				rows = append(rows, []string{
					pid.URIEncoded(),
					strconv.FormatBool(res.Registered),
					strconv.FormatBool(res.PointsHere),
					res.SMPURL,
				})
			}
			if err := printTable(cmd.OutOrStdout(), []string{"PARTICIPANT", "REGISTERED", "POINTS HERE", "SMP"}, rows); err != nil {
				return err
			}
			if mismatches > 0 {
				printWarning(cmd.OutOrStdout(), "%d of %d participants do not resolve to %s", mismatches, len(pids), a.cfg.SMP.PublicURL)
			}
			return nil
		},
	}
}

func metricsCmd(a *app) *cobra.Command {
	var refresh time.Duration
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Metrics.Enabled {
				return errors.New("metrics are disabled, set metrics.enabled")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			mux.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{}))
			srv := &http.Server{
				Addr:              a.cfg.Metrics.Listen,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("Serving metrics", "listen", srv.Addr, "path", a.cfg.Metrics.Path)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				ticker := time.NewTicker(refresh)
				defer ticker.Stop()
				for {
					if _, err := reg.Status(gctx); err != nil {
						a.logger.Warn("Refreshing entity counts failed", "error", err)
					}
					select {
					case <-gctx.Done():
						return nil
					case <-ticker.C:
					}
				}
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", 30*time.Second, "interval of entity count refreshes")
	return cmd
}
