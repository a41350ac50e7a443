package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/shapecsv/internal/pipeline"
	"github.com/ajitpratap0/shapecsv/pkg/codec"
	"github.com/ajitpratap0/shapecsv/pkg/config"
	jsonpool "github.com/ajitpratap0/shapecsv/pkg/json"
	"github.com/ajitpratap0/shapecsv/pkg/logger"
	"github.com/ajitpratap0/shapecsv/pkg/models"
	"github.com/ajitpratap0/shapecsv/pkg/schema"
)

func newImportCommand(flags *globalFlags) *cobra.Command {
	var (
		output           string
		networkName      string
		scenarioName     string
		restrictionsFile string
		ignoreFilenames  bool
	)

	cmd := &cobra.Command{
		Use:   "import DIR",
		Short: "Import a network from a directory of CSV files",
		Long: `Import reads network.csv, nodes.csv, links.csv, groups.csv and
group_members.csv from DIR, classifies every attribute cell and writes the
resulting network document as JSON.

Example:
  shapecsv import ./network_River_Basin/Base_case -o basin.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(flags)
			if err != nil {
				return err
			}
			defer env.close()

			opts := env.opts
			if ignoreFilenames {
				opts.ExpandFilenames = false
			}
			restrictions, err := loadRestrictions(restrictionsFile)
			if err != nil {
				return err
			}

			importer := pipeline.NewImporter(opts, env.collector, env.tracer, env.log)
			result, err := importer.Import(cmd.Context(), pipeline.ImportOptions{
				Dir:          args[0],
				NetworkName:  networkName,
				ScenarioName: scenarioName,
				Restrictions: restrictions,
			})
			if err != nil {
				return err
			}

			data, err := jsonpool.MarshalIndent(result.Document, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode network: %w", err)
			}
			if output == "" || output == "-" {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			} else if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			printImportSummary(cmd.ErrOrStderr(), result, output)
			if env.cfg.Observability.EnableMetrics {
				printCounts(cmd.ErrOrStderr(), env.collector)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the network JSON here instead of stdout")
	cmd.Flags().StringVarP(&networkName, "network-name", "n", "", "Network name (default from network.csv)")
	cmd.Flags().StringVarP(&scenarioName, "scenario", "s", "", "Scenario name (default from the directory name)")
	cmd.Flags().StringVar(&restrictionsFile, "restrictions", "", "JSON file mapping attribute names to restriction rules")
	cmd.Flags().BoolVar(&ignoreFilenames, "ignore-filenames", false, "Treat cells naming files as descriptors")
	return cmd
}

func newExportCommand(flags *globalFlags) *cobra.Command {
	var (
		targetDir    string
		scenarioName string
	)

	cmd := &cobra.Command{
		Use:   "export NETWORK.json",
		Short: "Export a network document to CSV files",
		Long: `Export writes the network in NETWORK.json to
<target>/network_<name>/<scenario>/, one directory per scenario.

Example:
  shapecsv export basin.json --target ./out --scenario "Base case"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(flags)
			if err != nil {
				return err
			}
			defer env.close()

			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			if targetDir == "" {
				targetDir = env.cfg.Export.TargetDir
			}

			exporter := pipeline.NewExporter(env.opts, env.collector, env.tracer, env.log)
			result, err := exporter.Export(cmd.Context(), doc, pipeline.ExportOptions{
				OutputDir:    targetDir,
				ScenarioName: scenarioName,
			})
			if err != nil {
				return err
			}

			printExportSummary(cmd.OutOrStdout(), result)
			if env.cfg.Observability.EnableMetrics {
				printCounts(cmd.OutOrStdout(), env.collector)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetDir, "target", "t", "", "Directory to export into (default export.target_dir)")
	cmd.Flags().StringVarP(&scenarioName, "scenario", "s", "", "Export only this scenario")
	return cmd
}

func newClassifyCommand(flags *globalFlags) *cobra.Command {
	var (
		basePath     string
		resource     string
		attribute    string
		restrictions string
	)

	cmd := &cobra.Command{
		Use:   "classify VALUE",
		Short: "Show the dataset a single cell classifies as",
		Long: `Classify runs one cell through type inference and prints the dataset.

Example:
  shapecsv classify flows.csv --base ./data --resource reservoir`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(flags)
			if err != nil {
				return err
			}
			defer env.close()

			r, err := schema.ParseRestrictions(restrictions)
			if err != nil {
				return err
			}
			opts := env.opts
			if basePath != "" {
				opts.BasePath = basePath
			}
			session, err := codec.NewSession(opts, env.log, env.collector)
			if err != nil {
				return err
			}
			defer session.Close()

			ds, err := session.Classify(args[0], schema.Options{
				Resource:     resource,
				Attribute:    attribute,
				Restrictions: r,
			})
			if err != nil {
				return err
			}
			data, err := jsonpool.MarshalIndent(ds, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&basePath, "base", "b", "", "Directory file references are relative to")
	cmd.Flags().StringVarP(&resource, "resource", "r", "", "Resource whose rows to read from a data file")
	cmd.Flags().StringVarP(&attribute, "attribute", "a", "", "Attribute name for unknown value lookups")
	cmd.Flags().StringVar(&restrictions, "restrictions", "", `Restriction rules as JSON, e.g. '{"GREATERTHAN": 0}'`)
	return cmd
}

func newConfigCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configFile)
			if err != nil {
				return err
			}
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init PATH",
		Short: "Write a configuration file with the defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			}
			if err := config.Save(args[0], config.NewConfig()); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "wrote %s", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check PATH",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadYAML(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "%s is valid", args[0])
			return nil
		},
	})
	return cmd
}

func readDocument(path string) (*models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open network document: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read network document: %w", err)
	}

	var doc models.Document
	if err := jsonpool.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse network document %s: %w", path, err)
	}
	return &doc, nil
}

func loadRestrictions(path string) (map[string]schema.Restrictions, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read restrictions: %w", err)
	}
	var out map[string]schema.Restrictions
	if err := jsonpool.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse restrictions %s: %w", path, err)
	}
	logger.Debug("loaded restrictions", zap.String("path", path), zap.Int("attributes", len(out)))
	return out, nil
}
