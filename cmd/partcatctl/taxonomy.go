package main

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/partcat/internal/domain/taxonomy"
	taxrepo "github.com/kailas-cloud/partcat/internal/repository/taxonomy"
)

// taxonomyView is the printable form of a snapshot.
type taxonomyView struct {
	Summary    taxonomy.Summary          `json:"summary"`
	Categories []taxonomy.NestedCategory `json:"categories"`
}

func newTaxonomyCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Inspect taxonomies",
	}

	var file string
	show := &cobra.Command{
		Use:   "show [name]",
		Short: "Print a taxonomy as an ordered nested tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			if file != "" {
				t, err := taxrepo.LoadFile(file, name)
				if err != nil {
					return err
				}
				a.Taxonomies.Put(t)
				name = t.Name()
			}
			tax, err := a.Taxonomies.Get(name)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), taxonomyView{Summary: tax.Summary(), Categories: tax.Nested()})
		},
	}
	show.Flags().StringVarP(&file, "file", "f", "", "load the taxonomy from a nested YAML or JSON file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered taxonomies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"active": a.Taxonomies.ActiveName(),
				"items":  a.Taxonomies.List(),
			})
		},
	}

	cmd.AddCommand(show, list)
	return cmd
}
