package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"ctsmirror/internal/config"
	"ctsmirror/internal/events"
	"ctsmirror/internal/logging"
	"ctsmirror/internal/metrics"
	"ctsmirror/internal/mirror"
	"ctsmirror/internal/poll"
	"ctsmirror/internal/reconcile"
	"ctsmirror/internal/resolve"
	"ctsmirror/internal/secrets"
	"ctsmirror/internal/store"
	"ctsmirror/internal/talent"
	"ctsmirror/internal/talent/cloudtalent"
)

// app is the wired set of components one command invocation works with.
type app struct {
	cfg     config.Config
	cfgPath string
	log     *logging.Logger

	db         *store.DB
	remote     talent.Service
	metrics    *metrics.Metrics
	hub        *events.Hub
	resolver   *resolve.Resolver
	reconciler *reconcile.Reconciler
	mirror     *mirror.Manager
}

type openOptions struct {
	jsonLogs bool
}

func (o *rootOptions) open(ctx context.Context, oo openOptions) (*app, error) {
	cfg, path, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	cfg, vr := config.NormalizeAndValidate(cfg)
	if !vr.OK() {
		return nil, withCode(exitValidation, fmt.Errorf("invalid config (%s): %v", path, vr.Errors))
	}

	log := logging.New(cfg.App.LogLevel)
	if oo.jsonLogs {
		log = logging.NewJSON(cfg.App.LogLevel)
	}
	for _, w := range vr.Warnings {
		log.Warn("config", "warning", w)
	}

	dbPath := cfg.DBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, withCode(exitStore, err)
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, withCode(exitStore, err)
	}
	if len(db.Created) > 0 {
		log.Debug("mirror tables created", "db", dbPath, "tables", db.Created)
	}

	remote, err := o.env.newRemote(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		cfgPath: path,
		log:     log,
		db:      db,
		remote:  remote,
		metrics: metrics.New(),
		hub:     events.NewHub(),
	}
	a.resolver = resolve.New(db, remote, cfg.Project.ID, cfg.Project.DefaultLanguage, log)
	a.reconciler = reconcile.New(db, log, a.metrics)
	a.mirror = mirror.New(cfg.Project.ID, mirror.Deps{
		DB:         db,
		Remote:     remote,
		Resolver:   a.resolver,
		Reconciler: a.reconciler,
		Log:        log,
		Metrics:    a.metrics,
		Publisher:  a.hub,
	})
	return a, nil
}

func (a *app) orchestrator() *poll.Orchestrator {
	return poll.New(poll.Config{
		Project:           a.cfg.Project.ID,
		Tenant:            a.cfg.Project.TenantID,
		BatchSize:         a.cfg.Batch.Size,
		ConcurrentBatches: a.cfg.Batch.ConcurrentBatches,
		PollInterval:      a.cfg.Batch.PollInterval,
		MaxPollWait:       a.cfg.Batch.MaxPollWait,
	}, poll.Deps{
		DB:         a.db,
		Remote:     a.remote,
		Resolver:   a.resolver,
		Reconciler: a.reconciler,
		Log:        a.log,
		Metrics:    a.metrics,
		Publisher:  a.hub,
	})
}

func (a *app) auditor(prune bool) *reconcile.Auditor {
	return reconcile.NewAuditor(a.db, a.remote, prune, a.log, a.metrics)
}

func (a *app) Close() {
	_ = a.log.Sync()
	if err := a.db.Close(); err != nil {
		a.log.Warn("close mirror", "err", err)
	}
}

// newCloudRemote uses credentials_file when set, otherwise the keychain entry.
func newCloudRemote(ctx context.Context, cfg config.Config) (talent.Service, error) {
	cc := cloudtalent.Config{
		CredentialsPath: cfg.Project.CredentialsFile,
		QPS:             cfg.Batch.APIQPSLimit,
	}
	if cc.CredentialsPath == "" {
		b, err := secrets.GetCredentials(secrets.Account(cfg.Project.KeyringAccount, cfg.Project.ID))
		if err != nil {
			return nil, err
		}
		cc.CredentialsJSON = b
	}
	c, err := cloudtalent.NewClient(ctx, cc)
	if err != nil {
		return nil, withCode(exitRemote, err)
	}
	return c, nil
}
