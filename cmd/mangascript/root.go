/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mangascript/internal/config"
	applog "mangascript/internal/log"
	"mangascript/internal/version"
	"mangascript/internal/workspace"
)

// cli carries the state shared by all subcommands.
type cli struct {
	cur     *current
	cfg     config.AppConfig
	cfgFile string
	envFile string
	verbose bool
	log     *slog.Logger
}

func newRootCmd(cur *current) *cobra.Command {
	c := &cli{cur: cur, log: applog.Discard()}
	root := &cobra.Command{
		Use:           "mangascript",
		Short:         "Manga Script Editor: write and tag the script of a folder of manga pages",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.SetVersionTemplate("Manga Script Editor {{.Version}}\n")
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is the per-user config.yaml)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file with MSE_* overrides")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "V", false, "debug logging")

	root.AddCommand(
		newVersionCmd(),
		newPagesCmd(c),
		newImportCmd(c),
		newExportCmd(c),
		newTagCmd(c),
		newIndexCmd(c),
		newSearchCmd(c),
		newHistoryCmd(c),
		newWatchCmd(c),
		newUICmd(c),
	)
	return root
}

// setup loads .env, the config file and the logger before any subcommand runs.
func (c *cli) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return fmt.Errorf("load %s: %w", c.envFile, err)
	}
	if c.cfgFile != "" {
		if err := os.Setenv(config.EnvConfigFile, c.cfgFile); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	c.cfg = cfg
	opts := applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Writer:    cmd.ErrOrStderr(),
	}
	if c.verbose {
		opts.Level = "debug"
	}
	applog.Init(opts)
	c.log = applog.WithComponent("cli")
	if err != nil {
		// defaults plus env are still usable
		c.log.Warn("config file ignored", slog.Any("err", err))
	}
	c.log.Debug("start", slog.String("cmd", cmd.CommandPath()))
	return nil
}

// open loads the image folder dir and registers it with the crash handler.
func (c *cli) open(ctx context.Context, dir string) (*workspace.Workspace, error) {
	ws, err := workspace.Open(ctx, dir, c.cfg)
	if err != nil {
		c.log.Error("open failed", slog.String("dir", dir), slog.Any("err", err))
		return nil, err
	}
	c.cur.ws = ws
	return ws, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Manga Script Editor")
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
