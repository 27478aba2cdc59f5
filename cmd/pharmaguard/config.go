package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/pharmaguard/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pharmaguard configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.pharmaguard.yaml.",
		Example: `  pharmaguard config                              # show effective config
  pharmaguard config set server.port 9000          # change the API port
  pharmaguard config set llm.enabled false         # never call the LLM
  pharmaguard config get upload.max_bytes          # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
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
			return runConfigSet(args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(args[0])
		},
	}
}

func runConfigShow() error {
	settings := viper.AllSettings()
	if llm, ok := settings["llm"].(map[string]any); ok {
		if key, _ := llm["api_key"].(string); key != "" {
			llm["api_key"] = "********"
		}
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if f := viper.ConfigFileUsed(); f != "" {
		fmt.Printf("# Config file: %s\n", f)
	} else {
		fmt.Println("# No config file in use. Defaults and PHARMAGUARD_* environment apply.")
	}
	fmt.Print(string(out))
	return nil
}

func runConfigSet(key, value string) error {
	// Parse boolean-like and numeric values
	var parsed any = value
	switch value {
	case "true", "yes", "on":
		parsed = true
	case "false", "no", "off":
		parsed = false
	default:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			parsed = n
		}
	}

	viper.Set(key, parsed)
	if _, err := config.Load(viper.GetViper()); err != nil {
		return fmt.Errorf("rejected %s=%s: %w", key, value, err)
	}

	// Ensure config file exists
	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		var err error
		if cfgFile, err = defaultConfigPath(); err != nil {
			return err
		}
	}

	// Write only what the file already holds plus the new key, so defaults
	// and environment values (API keys) stay out of it.
	fv := viper.New()
	fv.SetConfigFile(cfgFile)
	if _, err := os.Stat(cfgFile); err == nil {
		if err := fv.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	fv.Set(key, parsed)

	if err := fv.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Println(val)
	return nil
}
