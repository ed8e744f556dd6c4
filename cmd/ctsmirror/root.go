package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ctsmirror/internal/config"
	"ctsmirror/internal/talent"
)

// env is everything the commands take from the outside world.
type env struct {
	stdout io.Writer
	stderr io.Writer
	// newRemote builds the remote service client from the loaded config.
	newRemote func(ctx context.Context, cfg config.Config) (talent.Service, error)
}

func defaultEnv() env {
	return env{stdout: os.Stdout, stderr: os.Stderr, newRemote: newCloudRemote}
}

type rootOptions struct {
	env env

	configPath string
	project    string
	tenant     string
	verbose    bool
}

func newRootCmd(e env) *cobra.Command {
	opts := &rootOptions{env: e}

	cmd := &cobra.Command{
		Use:           "ctsmirror",
		Short:         "Manage tenants, companies and jobs in Cloud Talent Solution with a local mirror",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: <user config dir>/ctsmirror/config.yml)")
	cmd.PersistentFlags().StringVar(&opts.project, "project", "", "Project id (overrides project.id)")
	cmd.PersistentFlags().StringVar(&opts.tenant, "tenant", "", "Tenant external id (overrides project.tenant_id)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")

	cmd.AddCommand(newTenantCmd(opts))
	cmd.AddCommand(newCompanyCmd(opts))
	cmd.AddCommand(newJobCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newSecretsCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

func Execute(ctx context.Context, e env, args ...string) int {
	cmd := newRootCmd(e)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(e.stderr, err.Error())
		return exitCode(err)
	}
	return exitOK
}

// loadConfig resolves the config path, loads it and applies flag overrides.
func (o *rootOptions) loadConfig() (config.Config, string, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, "", err
	}

	path := o.configPath
	if path == "" {
		p, err := config.EnsureUserConfig(config.DefaultDataDir())
		if err != nil {
			return config.Config{}, "", withCode(exitFailure, fmt.Errorf("config bootstrap failed: %w", err))
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, path, withCode(exitValidation, fmt.Errorf("config load failed (%s): %w", path, err))
	}
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = filepath.Dir(path)
	}
	if o.project != "" {
		cfg.Project.ID = o.project
	}
	if o.tenant != "" {
		cfg.Project.TenantID = o.tenant
	}
	if o.verbose {
		cfg.App.LogLevel = "debug"
	}
	return cfg, path, nil
}
