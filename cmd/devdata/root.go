package main

import (
	"github.com/Sternrassler/devdata-fetch/internal/config"
	"github.com/spf13/cobra"
)

// globalOptions are the flags shared by every command. They override the
// configuration file and environment only when given.
type globalOptions struct {
	configPath      string
	outputDir       string
	driver          string
	logLevel        string
	logPretty       bool
	logFile         string
	verbose         bool
	maxAttempts     int
	redisAddr       string
	metricsTextfile string
	metricsListen   string
}

func (g *globalOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Dir = g.outputDir
	}
	if flags.Changed("storage") {
		cfg.Output.Driver = g.driver
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if flags.Changed("log-pretty") {
		cfg.Log.Pretty = g.logPretty
	}
	if flags.Changed("log-file") {
		cfg.Log.File = g.logFile
	}
	if flags.Changed("verbose") {
		cfg.Fetch.Verbose = g.verbose
	}
	if flags.Changed("max-attempts") {
		cfg.Fetch.MaxAttempts = g.maxAttempts
	}
	if flags.Changed("redis-addr") {
		cfg.Redis.Addr = g.redisAddr
	}
	if flags.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = g.metricsTextfile
	}
	if flags.Changed("metrics-listen") {
		cfg.Metrics.Listen = g.metricsListen
	}
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:           "devdata",
		Short:         "Download UNDP project data and UN SDG series",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&g.outputDir, "output", "", "Output directory (fs) or key prefix (s3)")
	pf.StringVar(&g.driver, "storage", "fs", "Storage driver: fs|memory|s3")
	pf.StringVar(&g.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	pf.BoolVar(&g.logPretty, "log-pretty", false, "Human-readable console logs")
	pf.StringVar(&g.logFile, "log-file", "", "Also write JSON logs to this file")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Log every fetch attempt")
	pf.IntVar(&g.maxAttempts, "max-attempts", 3, "Attempts per request for transient failures")
	pf.StringVar(&g.redisAddr, "redis-addr", "", "Redis address for the shared response cache")
	pf.StringVar(&g.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file at the end")
	pf.StringVar(&g.metricsListen, "metrics-listen", "", "Serve /metrics on this address while running")

	root.AddCommand(
		newProjectsCmd(g),
		newResultsCmd(g),
		newSDGCmd(g),
		newExportCmd(g),
	)
	return root
}
