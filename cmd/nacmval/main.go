// Package main is the entry point for the NACM access-control validator.
//
// The binary loads one or more policy source documents, merges them into a
// single policy, and answers access requests: a single request described by
// flags, a stream of JSON requests on stdin, or an HTTP decision endpoint
// in serve mode.
//
// Exit codes: 0 access permitted, 1 access denied, 2 no usable policy or
// invalid invocation.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/nacmval/internal/audit"
	"github.com/vyrodovalexey/nacmval/internal/config"
	"github.com/vyrodovalexey/nacmval/internal/nacm"
	"github.com/vyrodovalexey/nacmval/internal/observability"
	"github.com/vyrodovalexey/nacmval/internal/parser"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Exit codes.
const (
	exitPermit = 0
	exitDeny   = 1
	exitFatal  = 2
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath string
	sources    string
	logLevel   string
	logFormat  string

	user      string
	operation string
	module    string
	rpc       string
	path      string
	context   string
	command   string

	format    string
	verbose   bool
	jsonInput bool
	listen    string

	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	cfg := loadAppConfig(flags)

	logger := initLogger(cfg)
	defer func() { _ = logger.Sync() }()

	engine, watchDir := initEngine(cfg, logger)

	switch {
	case flags.listen != "":
		runServer(flags.listen, cfg, engine, watchDir, logger)
	case flags.jsonInput:
		runBatch(engine, os.Stdin, os.Stdout, os.Stderr)
	default:
		runSingle(engine, flags)
	}
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	var flags cliFlags

	flag.StringVar(&flags.configPath, "config", getEnvOrDefault("NACMVAL_CONFIG_PATH", ""),
		"Path to validator configuration file (YAML)")
	flag.StringVar(&flags.sources, "sources", getEnvOrDefault("NACMVAL_SOURCES", ""),
		"Policy source: an XML file or a directory of XML files (overrides config)")
	flag.StringVar(&flags.logLevel, "log-level", getEnvOrDefault("NACMVAL_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error)")
	flag.StringVar(&flags.logFormat, "log-format", getEnvOrDefault("NACMVAL_LOG_FORMAT", ""),
		"Log format (json, console)")

	flag.StringVar(&flags.user, "user", "", "Username making the request")
	flag.StringVar(&flags.operation, "operation", "", "Operation (read, create, update, delete, exec)")
	flag.StringVar(&flags.module, "module", "", "Module name (optional)")
	flag.StringVar(&flags.rpc, "rpc", "", "RPC name (optional)")
	flag.StringVar(&flags.path, "path", "", "Data path (optional)")
	flag.StringVar(&flags.context, "context", "", "Request context, e.g. netconf, cli, webui (optional)")
	flag.StringVar(&flags.command, "command", "", "Command line for command-based access control (optional)")

	flag.StringVar(&flags.format, "format", "text", "Output format (text, json, exit-code)")
	flag.BoolVar(&flags.verbose, "verbose", false, "Verbose output")
	flag.BoolVar(&flags.jsonInput, "json-input", false, "Read JSON requests from stdin, one per line")
	flag.StringVar(&flags.listen, "listen", "", "Serve mode: HTTP listen address, e.g. :8080")
	flag.BoolVar(&flags.showVersion, "version", false, "Show version information")

	flag.Parse()
	return flags
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("nacmval version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// loadAppConfig loads the validator configuration and folds the overriding
// flags into it.
func loadAppConfig(flags cliFlags) *config.Config {
	cfg := config.Default()

	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
			os.Exit(exitFatal)
		}
		cfg = loaded
	}

	if flags.sources != "" {
		info, err := os.Stat(flags.sources)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: cannot access sources %s: %v\n", flags.sources, err)
			os.Exit(exitFatal)
		}
		if info.IsDir() {
			cfg.Sources.Dir = flags.sources
			cfg.Sources.Files = nil
		} else {
			cfg.Sources.Files = []string{flags.sources}
			cfg.Sources.Dir = ""
		}
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(exitFatal)
	}
	if cfg.Sources.Dir == "" && len(cfg.Sources.Files) == 0 {
		fmt.Fprintln(os.Stderr, "error: no policy sources configured (use -sources or a config file)")
		os.Exit(exitFatal)
	}

	return cfg
}

// initLogger initializes the diagnostics logger.
func initLogger(cfg *config.Config) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(exitFatal)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// initEngine loads the policy sources, merges them and builds the decision
// engine. When the sources come from a directory, the directory path is
// returned for serve-mode watching.
func initEngine(cfg *config.Config, logger observability.Logger) (engine *nacm.Engine, watchDir string) {
	var policies []*nacm.Policy
	var failures []*parser.SourceError

	if cfg.Sources.Dir != "" {
		var err error
		policies, failures, err = parser.LoadDir(cfg.Sources.Dir)
		if err != nil {
			logger.Error("failed to read source directory", observability.Error(err))
			os.Exit(exitFatal)
		}
		watchDir = cfg.Sources.Dir
	} else {
		policies, failures = parser.LoadFiles(cfg.Sources.Files)
	}

	for _, failure := range failures {
		logger.Warn("skipping unparsable policy source",
			observability.String("path", failure.Path),
			observability.Error(failure.Err),
		)
	}
	if len(policies) == 0 {
		logger.Error("no usable policy source",
			observability.Int("failed_sources", len(failures)),
		)
		os.Exit(exitFatal)
	}

	merged, conflicts := nacm.Merge(policies)
	for _, conflict := range conflicts {
		logger.Warn("policy merge conflict",
			observability.String("kind", string(conflict.Kind)),
			observability.String("name", conflict.Name),
			observability.String("detail", conflict.Detail),
		)
	}

	logger.Info("policy loaded",
		observability.Int("sources", len(policies)),
		observability.Bool("nacm_enabled", merged.EnableNACM),
		observability.Int("groups", len(merged.Groups)),
		observability.Int("rule_lists", len(merged.RuleLists)),
		observability.Int("rules", merged.RuleCount()),
		observability.Int("command_rules", merged.CommandRuleCount()),
	)

	recorder, err := audit.NewLogger(&cfg.Audit, audit.WithLogger(logger))
	if err != nil {
		logger.Error("failed to initialize audit logger", observability.Error(err))
		os.Exit(exitFatal)
	}

	engine = nacm.NewEngine(&nacm.EngineConfig{
		Policy:   merged,
		Logger:   logger,
		Recorder: recorder,
	})
	return engine, watchDir
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, def string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return def
}
