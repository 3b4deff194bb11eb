package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage bamcall configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.bamcall.yaml.",
		Example: `  bamcall config                        # show all config
  bamcall config set call.minaf 0.05    # raise the default frequency floor
  bamcall config get call.mindepth      # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
	}
}

func runConfigShow(w io.Writer) error {
	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(w, string(out))
	return nil
}

// knownKey reports whether key has a registered default.
func knownKey(key string) bool {
	key = strings.ToLower(key)
	for _, k := range viper.AllKeys() {
		if k == key {
			return true
		}
	}
	return false
}

func runConfigSet(w io.Writer, key, value string) error {
	if !knownKey(key) {
		keys := viper.AllKeys()
		sort.Strings(keys)
		return &ConfigError{Key: key, Message: "unknown key, expected one of " + strings.Join(keys, ", ")}
	}

	// Parse boolean-like values
	switch value {
	case "true", "yes", "on":
		viper.Set(key, true)
	case "false", "no", "off":
		viper.Set(key, false)
	default:
		viper.Set(key, value)
	}

	// Ensure config file exists
	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".bamcall.yaml")
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(w, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(w io.Writer, key string) error {
	if !knownKey(key) {
		return &ConfigError{Key: key, Message: "unknown key"}
	}
	fmt.Fprintln(w, viper.Get(key))
	return nil
}
