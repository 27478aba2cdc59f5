package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/pharmaguard/internal/analysis"
	"github.com/inodb/pharmaguard/internal/output"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		drugs        []string
		outputFormat string
		outputFile   string
	)

	cmd := &cobra.Command{
		Use:   "analyze <input-file>",
		Short: "Assess drug risk for a patient VCF",
		Long: `Parse a VCF (plain or gzipped, '-' for stdin), infer the diplotype of each
drug's primary gene and evaluate the risk rule. One JSON object is written for a
single drug, an array for several.`,
		Example: `  pharmaguard analyze patient.vcf --drug CODEINE
  pharmaguard analyze patient.vcf --drug codeine,warfarin -f tab
  pharmaguard analyze patient.vcf --drug SIMVASTATIN --no-explain`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if noExplain, _ := cmd.Flags().GetBool("no-explain"); noExplain {
				viper.Set("llm.enabled", false)
			}
			return runAnalyze(cmd.Context(), args[0], drugs, outputFormat, outputFile)
		},
	}

	cmd.Flags().StringSliceVarP(&drugs, "drug", "d", nil, "Drug name (repeatable or comma-separated)")
	cmd.Flags().StringVarP(&outputFormat, "output-format", "f", "json", "Output format: json, tab")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().Bool("no-explain", false, "Skip the LLM explanation")
	_ = cmd.MarkFlagRequired("drug")

	return cmd
}

func runAnalyze(ctx context.Context, inputPath string, drugs []string, format, outputFile string) (err error) {
	if format != "json" && format != "tab" {
		return fmt.Errorf("unsupported output format %q (use json or tab)", format)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	content, err := readInput(inputPath, a.orch.MaxFileSize())
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var results []*analysis.Result
	if len(drugs) == 1 {
		res, err := a.orch.Analyze(ctx, content, drugs[0])
		if err != nil {
			return err
		}
		results = []*analysis.Result{res}
	} else {
		if results, err = a.orch.AnalyzeDrugs(ctx, content, drugs); err != nil {
			return err
		}
	}

	out, closeOut, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); err == nil {
			err = cerr
		}
	}()

	if format == "tab" {
		tw := output.NewTabWriter(out)
		if err := tw.WriteHeader(); err != nil {
			return err
		}
		for _, r := range results {
			if err := tw.Write(r); err != nil {
				return err
			}
		}
		return tw.Flush()
	}

	jw := output.NewJSONWriter(out, "  ")
	if len(results) == 1 {
		return jw.Write(results[0])
	}
	return jw.Write(results)
}

// readInput reads an input file, or stdin for "-". At most maxBytes+1 bytes
// are read so an oversized input is still rejected by the size check.
func readInput(path string, maxBytes int64) ([]byte, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return data, nil
}

// openOutput returns stdout for "" or "-", otherwise a created file.
// The returned close function reports write errors surfaced on close.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, func() error {
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing output file: %w", err)
		}
		return nil
	}, nil
}
