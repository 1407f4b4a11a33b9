package cmd

import (
	"encoding"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing mediatool configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration in YAML format.

This shows every configuration option with the value mediatool would use,
after applying defaults, the config file, environment variables and flags.
You can redirect this output to a file to create a configuration template:

  mediatool config dump > .mediatool.yaml

Environment variables use the MEDIATOOL_ prefix and underscores for nesting.
Example: run.trim_duration -> MEDIATOOL_RUN_TRIM_DURATION`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return dumpConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map keyed by mapstructure tags, with
// durations, sizes and timecodes in their human readable form.
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

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		switch fv := field.Interface().(type) {
		case time.Duration:
			result[key] = fv.String()
		case encoding.TextMarshaler:
			text, err := fv.MarshalText()
			if err != nil {
				result[key] = fmt.Sprint(fv)
			} else {
				result[key] = string(text)
			}
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(fv)
			} else {
				result[key] = fv
			}
		}
	}
	return result
}

func dumpConfig(w io.Writer, v any) error {
	yamlData, err := yaml.Marshal(toMap(v))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	header := `# mediatool Configuration File
# =============================
#
# Positions: 90, 1m30s, 00:01:30.5
# Sizes: 512MB, 4GB
#
# Environment variable overrides:
#   MEDIATOOL_RUN_INPUT, MEDIATOOL_RUN_TRIM_DURATION
#   MEDIATOOL_REMUX_CODEC_POLICY, MEDIATOOL_FFMPEG_PROBE_PATH
#   MEDIATOOL_LOGGING_LEVEL, MEDIATOOL_LOGGING_FORMAT
#   etc.

`
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err = w.Write(yamlData)
	return err
}
