// Package main provides the pharmaguard command-line tool.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/pharmaguard/internal/config"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "pharmaguard",
		Short: "Pharmacogenomic risk assessment from VCF files",
		Long: `pharmaguard infers star-allele diplotypes from a patient's VCF, maps them to
metabolizer phenotypes and evaluates drug-specific risk rules.`,
		Example: `  pharmaguard analyze patient.vcf --drug CODEINE
  pharmaguard analyze patient.vcf.gz --drug WARFARIN --drug CLOPIDOGREL -f tab
  pharmaguard profile patient.vcf -f vcf -o annotated.vcf
  pharmaguard serve --port 8000
  pharmaguard kb export -o pharmaguard.duckdb`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ~/.pharmaguard.yaml)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("knowledge", "", "Knowledge base YAML file (default: embedded)")
	pf.String("snapshot", "", "DuckDB knowledge snapshot to load or refresh")
	_ = viper.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("knowledge.file", pf.Lookup("knowledge"))
	_ = viper.BindPFlag("knowledge.duckdb", pf.Lookup("snapshot"))

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newProfileCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newDrugsCmd())
	root.AddCommand(newKBCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// initConfig wires defaults, environment and the optional config file into viper.
func initConfig(cfgFile string) error {
	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(".pharmaguard")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// defaultConfigPath is where `config set` writes when no file is in use.
func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".pharmaguard.yaml"), nil
}
