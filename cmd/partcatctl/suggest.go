package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/partcat/internal/keyword"
)

type suggestOptions struct {
	input    keyword.Input
	taxonomy string
}

type suggestOutput struct {
	Category     string   `json:"category"`
	Subcategory  string   `json:"subcategory"`
	PartType     string   `json:"part_type"`
	Confidence   int      `json:"confidence"`
	MatchReasons []string `json:"match_reasons"`
}

func newSuggestCmd(root *rootOptions) *cobra.Command {
	o := &suggestOptions{}
	cmd := &cobra.Command{
		Use:   "suggest [name]",
		Short: "Run the keyword and brand matcher on a single product",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				o.input.Name = args[0]
			}
			if o.input.Name == "" && o.input.Title == "" && o.input.Description == "" {
				return errors.New("name, --title or --description is required")
			}
			a, err := root.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			tax, err := a.Taxonomies.Get(o.taxonomy)
			if err != nil {
				return err
			}
			s := a.Matcher.Suggest(tax, o.input)
			reasons := s.MatchReasons
			if reasons == nil {
				reasons = []string{}
			}
			return printJSON(cmd.OutOrStdout(), suggestOutput{
				Category:     s.Category,
				Subcategory:  s.Subcategory,
				PartType:     s.PartType,
				Confidence:   s.Confidence,
				MatchReasons: reasons,
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.input.Name, "name", "", "product name")
	f.StringVar(&o.input.Title, "title", "", "product title")
	f.StringVar(&o.input.Description, "description", "", "product description")
	f.StringVar(&o.input.Brand, "brand", "", "product brand")
	f.StringVar(&o.taxonomy, "taxonomy", "", "registered taxonomy (default: active)")
	return cmd
}
