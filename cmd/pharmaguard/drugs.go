package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inodb/pharmaguard/internal/output"
)

func newDrugsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "drugs",
		Short: "List supported drugs and their primary genes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			e := a.orch.Engine()
			if asJSON {
				return output.NewJSONWriter(os.Stdout, "  ").Write(map[string]any{
					"drugs":         e.SupportedDrugs(),
					"gene_drug_map": e.GeneDrugMap(),
				})
			}

			fmt.Println("#Drug\tGene\tAliases")
			for _, name := range e.SupportedDrugs() {
				d, _ := a.kb.Drug(name).Get()
				aliases := "-"
				if len(d.Aliases) > 0 {
					aliases = strings.Join(d.Aliases, ",")
				}
				fmt.Printf("%s\t%s\t%s\n", d.Name, d.Gene, aliases)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
