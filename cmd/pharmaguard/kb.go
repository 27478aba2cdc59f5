package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inodb/pharmaguard/internal/duckdb"
	"github.com/inodb/pharmaguard/internal/knowledge"
)

func newKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect, export or download the knowledge base",
	}

	cmd.AddCommand(newKBShowCmd())
	cmd.AddCommand(newKBExportCmd())
	cmd.AddCommand(newKBRulesCmd())
	cmd.AddCommand(newKBDownloadCmd())

	return cmd
}

func newKBShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active knowledge base as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			out, err := yaml.Marshal(a.kb.Spec())
			if err != nil {
				return fmt.Errorf("marshaling knowledge base: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func newKBExportCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Write the active knowledge base to a DuckDB snapshot",
		Example: `  pharmaguard kb export -o pharmaguard.duckdb`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			store, err := duckdb.Open(outputPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.WriteKnowledgeBase(a.kb.Spec()); err != nil {
				return err
			}
			if src := a.cfg.Knowledge.File; src != "" {
				fp, err := duckdb.StatFile(src)
				if err != nil {
					return err
				}
				if err := store.SetSource(fp); err != nil {
					return err
				}
			}

			spec := a.kb.Spec()
			fmt.Printf("Exported knowledge base %s (%d genes, %d drugs, %d rules) to %s\n",
				spec.Version, len(spec.Genes), len(spec.Drugs), len(spec.Rules), outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "pharmaguard.duckdb", "Output DuckDB file")
	return cmd
}

func newKBRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules <drug>",
		Short: "List the risk rules for a drug",
		Long: `List the risk rules for a drug by querying a DuckDB snapshot: the configured
one (--snapshot / knowledge.duckdb) or a temporary in-memory copy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			store, err := duckdb.Open(a.cfg.Knowledge.DuckDB)
			if err != nil {
				return err
			}
			defer store.Close()
			if a.cfg.Knowledge.DuckDB == "" {
				if err := store.WriteKnowledgeBase(a.kb.Spec()); err != nil {
					return err
				}
			}

			drug := a.orch.Engine().CanonicalDrug(args[0])
			rules, err := store.RulesForDrug(drug)
			if err != nil {
				return err
			}
			if len(rules) == 0 {
				return fmt.Errorf("no rules for drug %q", drug)
			}

			fmt.Println("#Gene\tPhenotype\tRisk\tSeverity\tConfidence\tAction")
			for _, r := range rules {
				fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\n", r.Gene, r.Phenotype, r.RiskLabel, r.Severity,
					strconv.FormatFloat(r.Confidence, 'f', 2, 64), r.Action)
			}
			return nil
		},
	}
}

func newKBDownloadCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download and validate a curated knowledge base YAML",
		Long: `Download a knowledge base YAML file, validate it, and save it (default:
~/.pharmaguard/knowledge.yaml). Point knowledge.file at it to use it.`,
		Example: `  pharmaguard kb download https://example.org/pharmaguard/knowledge-2025.yaml
  pharmaguard config set knowledge.file ~/.pharmaguard/knowledge.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath == "" {
				dir, err := defaultDataDir()
				if err != nil {
					return err
				}
				outputPath = filepath.Join(dir, "knowledge.yaml")
			}
			spec, err := downloadKnowledge(args[0], outputPath)
			if err != nil {
				return err
			}
			fmt.Printf("Saved knowledge base %s (%d genes, %d drugs) to %s\n",
				spec.Version, len(spec.Genes), len(spec.Drugs), outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file")
	return cmd
}

// validateKnowledge parses and builds a downloaded file.
func validateKnowledge(data []byte) (*knowledge.Spec, error) {
	spec, err := knowledge.ParseSpec(data)
	if err != nil {
		return nil, err
	}
	if _, err := knowledge.Build(spec); err != nil {
		return nil, fmt.Errorf("invalid knowledge base: %w", err)
	}
	return spec, nil
}
