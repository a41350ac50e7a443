package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/shapecsv/pkg/codec"
	"github.com/ajitpratap0/shapecsv/pkg/config"
	"github.com/ajitpratap0/shapecsv/pkg/logger"
	"github.com/ajitpratap0/shapecsv/pkg/metrics"
	"github.com/ajitpratap0/shapecsv/pkg/observability"
)

var version = "0.1.0"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configFile string
	logLevel   string
	timezone   string
	trace      bool
	noColor    bool
}

// runtimeEnv is what a command needs to run: the loaded configuration and
// the ambient logger, tracer and metrics collector.
type runtimeEnv struct {
	cfg       *config.Config
	opts      codec.Options
	log       *zap.Logger
	tracer    *observability.Tracer
	collector *metrics.Collector
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "shapecsv",
		Short: "shapecsv - typed dataset <-> CSV transcoder",
		Long: `shapecsv moves networks of typed datasets between JSON documents and
directories of CSV files. Scalars and descriptors are written inline; arrays,
dataframes and timeseries go to shaped data files; values of unknown types
are kept in a JSON side document.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor {
				color.NoColor = true
			}
		},
	}

	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to configuration file (default ./shapecsv.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVarP(&flags.timezone, "timezone", "z", "", "Timezone of naive timestamps, e.g. Europe/London")
	root.PersistentFlags().BoolVar(&flags.trace, "trace", false, "Write run traces to stderr")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shapecsv v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newImportCommand(flags))
	root.AddCommand(newExportCommand(flags))
	root.AddCommand(newClassifyCommand(flags))
	root.AddCommand(newConfigCommand(flags))

	return root
}

// setup loads configuration, applies flag overrides and builds the logger,
// tracer and collector of one command run.
func setup(flags *globalFlags) (*runtimeEnv, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.timezone != "" {
		cfg.Import.Timezone = flags.timezone
	}
	if flags.trace {
		cfg.Observability.EnableTracing = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Encoding:    cfg.Logging.Encoding,
	}); err != nil {
		return nil, err
	}

	opts, err := codec.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	tracer, err := observability.NewTracer(observability.TracingConfig{
		Enabled:        cfg.Observability.EnableTracing,
		ServiceName:    "shapecsv",
		ServiceVersion: version,
		Output:         os.Stderr,
	})
	if err != nil {
		return nil, err
	}

	return &runtimeEnv{
		cfg:       cfg,
		opts:      opts,
		log:       logger.With(zap.String("component", "shapecsv-cli")),
		tracer:    tracer,
		collector: metrics.NewCollector(),
	}, nil
}

// close flushes traces and logs.
func (e *runtimeEnv) close() {
	if err := e.tracer.Shutdown(context.Background()); err != nil {
		e.log.Warn("failed to shut down tracer", zap.Error(err))
	}
	_ = logger.Sync()
}
