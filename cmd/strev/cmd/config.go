package cmd

import (
	"encoding"
	"fmt"
	"reflect"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/strevio/strev/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing strev configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  strev config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, .strev.yaml, /etc/strev/config.yaml)
  - Environment variables (STREV_PIPELINE_MAX_FILE_SIZE, STREV_HLS_FETCHER_CONCURRENCY, etc.)
  - Command-line flags (for some options)

Environment variables use the STREV_ prefix and underscores for nesting.
Example: pipeline.max_file_size -> STREV_PIPELINE_MAX_FILE_SIZE`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a struct to a map, formatting durations and sizes for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		// Get yaml tag or use lowercase field name
		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Tag.Get("yaml")
		}
		if key == "" {
			key = fieldType.Name
		}

		// Prefer the wrapper types' own human-readable rendering (ByteSize,
		// Duration) over dumping their raw integer backing value.
		if marshaler, ok := field.Interface().(encoding.TextMarshaler); ok {
			text, err := marshaler.MarshalText()
			if err == nil {
				result[key] = string(text)
				continue
			}
		}

		if field.Kind() == reflect.Struct {
			result[key] = toMap(field.Interface())
		} else {
			result[key] = field.Interface()
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	// Load config with defaults (no file, just defaults)
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Convert to map with human-readable values
	cfgMap := toMap(cfg)

	// Marshal to YAML
	yamlData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// Print header with documentation
	fmt.Println("# strev Configuration File")
	fmt.Println("# =========================")
	fmt.Println("#")
	fmt.Println("# All values shown below are defaults.")
	fmt.Println("# Duration format: 30s, 5m, 1h, 30d")
	fmt.Println("# Size format: 5MB, 1GB")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   STREV_PIPELINE_MAX_FILE_SIZE, STREV_PIPELINE_CHANNEL_SIZE")
	fmt.Println("#   STREV_WRITER_OUTPUT_DIR, STREV_WRITER_NAME_TEMPLATE")
	fmt.Println("#   STREV_HLS_FETCHER_CONCURRENCY, STREV_HLS_FETCH_RETRIES")
	fmt.Println("#   STREV_LOGGING_LEVEL, STREV_LOGGING_FORMAT")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
