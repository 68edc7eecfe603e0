/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Command pagedb is the command line front-end of the pagedb engine.

Usage:

	pagedb exec "SELECT 1"             run statements and print the results
	pagedb exec -f schema.sql          run a script file ("-" reads stdin)
	pagedb shell                       interactive SQL shell
	pagedb dump [database...] -o out   write a replayable SQL dump
	pagedb config show                 print the effective configuration
	pagedb config init pagedb.yaml     write the configuration to a file
	pagedb version

Global flags override the configuration file and PAGEDB_* environment
variables:

	--config        configuration file (default: search the standard paths)
	--data-dir      data directory (empty keeps everything in memory)
	--database      default database
	--log-level     debug, info, warn or error
	--log-json      JSON log lines
	--metrics-addr  serve Prometheus metrics and /health on this address
*/
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pagedb/internal/banner"
	"pagedb/internal/config"
	"pagedb/internal/health"
	"pagedb/internal/logging"
	"pagedb/internal/metrics"
	"pagedb/internal/sql"
)

type globalFlags struct {
	configFile  string
	dataDir     string
	database    string
	logLevel    string
	logJSON     bool
	metricsAddr string
}

var flags globalFlags

var log = logging.NewLogger("cli")

var rootCmd = &cobra.Command{
	Use:           "pagedb",
	Short:         "pagedb embedded SQL database",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "configuration file")
	pf.StringVar(&flags.dataDir, "data-dir", "", "data directory (empty keeps everything in memory)")
	pf.StringVar(&flags.database, "database", "", "default database")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.BoolVar(&flags.logJSON, "log-json", false, "write logs as JSON")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(execCmd(), shellCmd(), dumpCmd(), configCmd(), versionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	mgr := config.NewManager()
	if err := mgr.Load(flags.configFile); err != nil {
		return nil, err
	}
	cfg := mgr.Get()

	pf := cmd.Flags()
	if pf.Changed("data-dir") {
		cfg.DataDir = flags.dataDir
	}
	if pf.Changed("database") {
		cfg.DefaultDatabase = flags.database
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if pf.Changed("log-json") {
		cfg.LogJSON = flags.logJSON
	}
	if pf.Changed("metrics-addr") {
		cfg.MetricsAddr = flags.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)
	return cfg, nil
}

// instance is an open engine plus the metrics endpoint serving it.
type instance struct {
	cfg     *config.Config
	engine  *sql.Engine
	metrics *metrics.Server
}

func open(cmd *cobra.Command) (*instance, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	engine, err := sql.NewEngine(cfg, m)
	if err != nil {
		return nil, err
	}
	srv := metrics.NewServer(cfg.MetricsAddr, m)
	newChecker(engine).Register(srv)
	if err := srv.Start(); err != nil {
		engine.Close()
		return nil, err
	}
	log.Debug("Engine opened", "config", cfg.String())
	return &instance{cfg: cfg, engine: engine, metrics: srv}, nil
}

// newChecker registers the health checks of engine.
func newChecker(engine *sql.Engine) *health.Checker {
	checker := health.NewChecker(banner.Version)
	checker.RegisterCheck("storage", health.StorageCheck(engine.Check))
	checker.RegisterCheck("statement_cache", health.CacheCheck(func() (int64, float64) {
		stats := engine.CacheStats()
		return stats.Hits + stats.Misses, stats.HitRate
	}, 1000, 0.05))
	return checker
}

func (in *instance) Close() {
	if err := in.metrics.Stop(); err != nil {
		log.Warn("Failed to stop metrics server", "error", err)
	}
	if err := in.engine.Close(); err != nil {
		log.Error("Failed to close engine", "error", err)
	}
}

func execCmd() *cobra.Command {
	var file string
	var timing bool
	cmd := &cobra.Command{
		Use:   "exec [SQL]",
		Short: "Execute SQL statements and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readScript(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}
			in, err := open(cmd)
			if err != nil {
				return err
			}
			defer in.Close()

			session := in.engine.NewSession()
			out := cmd.OutOrStdout()
			return runScript(out, session, script, timing)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `read statements from a file ("-" for stdin)`)
	cmd.Flags().BoolVar(&timing, "timing", false, "print the execution time of each statement")
	return cmd
}

func readScript(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case file == "-":
		data, err := io.ReadAll(stdin)
		return string(data), err
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	}
	return "", fmt.Errorf("no statements given: pass SQL as an argument or use --file")
}

func shellCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive SQL shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := open(cmd)
			if err != nil {
				return err
			}
			defer in.Close()

			interactive := isTerminal()
			if !quiet && interactive {
				banner.Print(cmd.OutOrStdout(), in.cfg, true)
			}
			sh := newShell(in, cmd.OutOrStdout())
			if !interactive {
				return sh.runSimple(cmd.InOrStdin())
			}
			return sh.run()
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the banner")
	return cmd
}

func dumpCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dump [database...]",
		Short: "Write a SQL script that recreates the databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := open(cmd)
			if err != nil {
				return err
			}
			defer in.Close()

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			if err := in.engine.Dump(w, args...); err != nil {
				return err
			}
			log.Info("Dump complete", "databases", len(args), "output", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := cfg.ToYAML()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), data)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init PATH",
		Short: "Write the effective configuration to PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.SaveToFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pagedb v%s\n", banner.Version)
		},
	}
}

// isTerminal returns true if stdin is a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
