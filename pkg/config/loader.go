package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SHAPECSV_IMPORT_TIMEZONE.
const EnvPrefix = "SHAPECSV"

// Load reads configuration from path, or from shapecsv.yaml in the working
// directory when path is empty, over the defaults of NewConfig. Environment
// variables override file values. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("shapecsv")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("import.expand_filenames", d.Import.ExpandFilenames)
	v.SetDefault("import.base_path", d.Import.BasePath)
	v.SetDefault("import.timezone", d.Import.Timezone)
	v.SetDefault("export.target_dir", d.Export.TargetDir)
	v.SetDefault("export.unknown_file", d.Export.UnknownFile)
	v.SetDefault("seasonal.key", d.Seasonal.Key)
	v.SetDefault("seasonal.placeholder", d.Seasonal.Placeholder)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("observability.enable_metrics", d.Observability.EnableMetrics)
	v.SetDefault("observability.enable_tracing", d.Observability.EnableTracing)
}
