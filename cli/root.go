package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwantia/treefs/cmd"
	"github.com/mwantia/treefs/cmd/builtin"
	"github.com/mwantia/treefs/config"
	"github.com/mwantia/treefs/opener"
	"github.com/spf13/cobra"
)

type rootOpts struct {
	configFile string
	mounts     []string
	logLevel   string

	registry *opener.Registry
	center   *cmd.CommandCenter
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{
		registry: opener.Default,
		center:   cmd.NewCommandCenter(),
	}
	if err := builtin.InitBuiltin(opts.center); err != nil {
		panic(err)
	}

	root := &cobra.Command{
		Use:   "treefs",
		Short: "Work with file trees across storage backends",
		Long: `treefs mounts local directories, SQL databases, object stores, Consul KV,
SFTP servers and tar archives into one virtual tree and runs file commands on it.

Backends are given as URLs, e.g.:
  treefs --mount /data=file:///srv/data --mount /bucket=s3://key:secret@minio:9000/bucket ls /`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringArrayVar(&opts.mounts, "mount", nil, "mount a backend, as path=url (repeatable)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	for _, c := range opts.center.List() {
		root.AddCommand(newBuiltinCmd(c, opts))
	}
	root.AddCommand(newRunCmd(opts))

	return root
}

// parseMount splits a --mount value into its path and URL.
func parseMount(value string) (config.MountConfig, error) {
	path, url, ok := strings.Cut(value, "=")
	if !ok || path == "" || url == "" {
		return config.MountConfig{}, fmt.Errorf("invalid mount '%s': expected path=url", value)
	}
	return config.MountConfig{Path: path, URL: url}, nil
}

// loadConfig reads the config file and applies the command line overrides.
func (o *rootOpts) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.configFile != "" {
		var err error
		if cfg, err = config.Load(o.configFile); err != nil {
			return nil, err
		}
	}

	for _, value := range o.mounts {
		mnt, err := parseMount(value)
		if err != nil {
			return nil, err
		}
		cfg.Mounts = append(cfg.Mounts, mnt)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withEnv builds the mount table, runs fn and closes the table again.
func (o *rootOpts) withEnv(ctx context.Context, c *cobra.Command, fn func(env *cmd.Env) error) (err error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	logger := cfg.Logger("treefs", c.ErrOrStderr())
	treeOptions, err := cfg.TreeOptions()
	if err != nil {
		return err
	}

	mfs, err := cfg.Build(ctx, o.registry, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := mfs.Close(ctx); cerr != nil {
			logger.Warn("closing mounts: %v", cerr)
		}
	}()

	env := cmd.NewEnv(mfs, c.OutOrStdout(), c.ErrOrStderr(), logger)
	env.Options = treeOptions
	return fn(env)
}
