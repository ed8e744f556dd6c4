package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"ctsmirror/internal/config"
	"ctsmirror/internal/events"
	"ctsmirror/internal/httpapi"
	"ctsmirror/internal/poll"
	"ctsmirror/internal/scheduler"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr    string
		origins []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, stream events and audit the mirror periodically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx, openOptions{jsonLogs: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = fmt.Sprintf("127.0.0.1:%d", a.cfg.App.Port)
			}
			return serve(ctx, a, addr, origins)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default 127.0.0.1:<app.port>)")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "Allowed CORS origins (default any)")
	return cmd
}

func serve(ctx context.Context, a *app, addr string, origins []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var cfgVal atomic.Value
	cfgVal.Store(a.cfg)

	runner := poll.NewRunner(a.orchestrator(), a.log)
	handler := httpapi.NewRouter(httpapi.Deps{
		Base:           ctx,
		DB:             a.db,
		Hub:            a.hub,
		Resolver:       a.resolver,
		Runner:         runner,
		Metrics:        a.metrics,
		Log:            a.log,
		CfgVal:         &cfgVal,
		UserCfgPath:    a.cfgPath,
		LoadCfg:        func() (config.Config, error) { return config.Load(a.cfgPath) },
		AllowedOrigins: origins,
	})

	auditor := a.auditor(a.cfg.Sync.PruneMissing)
	go scheduler.Every(ctx, a.log, a.cfg.Sync.AuditInterval, "audit", func(ctx context.Context) error {
		rep, err := auditor.Run(ctx)
		if err != nil {
			return err
		}
		a.hub.Publish(events.MakeEvent("", events.TypeAuditDone, 1, rep))
		return nil
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	a.log.Info("listening", "addr", "http://"+ln.Addr().String(), "db", a.cfg.DBPath(), "project", a.cfg.Project.ID)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.db.Checkpoint(shutdownCtx); err != nil {
		a.log.Warn("checkpoint on shutdown", "err", err)
	}
	return nil
}
