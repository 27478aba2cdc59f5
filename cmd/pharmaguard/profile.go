package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/pharmaguard/internal/output"
)

func newProfileCmd() *cobra.Command {
	var (
		outputFormat string
		outputFile   string
	)

	cmd := &cobra.Command{
		Use:   "profile <input-file>",
		Short: "Infer diplotypes for every catalog gene without evaluating drugs",
		Example: `  pharmaguard profile patient.vcf
  pharmaguard profile patient.vcf -f tab
  pharmaguard profile patient.vcf -f vcf -o annotated.vcf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(args[0], outputFormat, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output-format", "f", "json", "Output format: json, tab, vcf")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runProfile(inputPath, format, outputFile string) (err error) {
	switch format {
	case "json", "tab", "vcf":
	default:
		return fmt.Errorf("unsupported output format %q (use json, tab or vcf)", format)
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

	out, closeOut, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); err == nil {
			err = cerr
		}
	}()

	if format == "vcf" {
		up, err := a.orch.Prepare(content)
		if err != nil {
			return err
		}
		byLine := output.MatchesByLine(a.orch.Calls(up))

		vw := output.NewVCFWriter(out, up.Parse.Header)
		if err := vw.WriteHeader(); err != nil {
			return err
		}
		for _, v := range up.Parse.Variants {
			if err := vw.Write(v, byLine[v.Line]); err != nil {
				return err
			}
		}
		return vw.Flush()
	}

	report, err := a.orch.ParseProfile(content)
	if err != nil {
		return err
	}
	if format == "tab" {
		tw := output.NewTabWriter(out)
		if err := tw.WriteProfile(report); err != nil {
			return err
		}
		return tw.Flush()
	}
	return output.NewJSONWriter(out, "  ").Write(report)
}
