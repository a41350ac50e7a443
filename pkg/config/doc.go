// Package config loads shapecsv run configuration.
//
// # Sources
//
// Load layers three sources with viper, lowest precedence first:
//
//  1. defaults from NewConfig
//  2. a YAML file (shapecsv.yaml in the working directory by default)
//  3. SHAPECSV_ environment variables, with "." replaced by "_"
//
// LoadYAML reads a single YAML file with ${VAR_NAME} substitution instead:
//
//	# shapecsv.yaml
//	import:
//	  base_path: ${DATA_DIR}
//	  timezone: Europe/London
//	seasonal:
//	  key: "9999"
//
// # Seasonal time points
//
// Seasonal.Key must be a four digit year. Literals spelling their year with
// Seasonal.Placeholder, or with the key itself, are normalised to time points
// in that year.
package config
