package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/partcat/internal/domain/product"
	taxrepo "github.com/kailas-cloud/partcat/internal/repository/taxonomy"
	categorizeuc "github.com/kailas-cloud/partcat/internal/usecase/categorize"
)

type classifyOptions struct {
	products          string
	taxonomyFile      string
	taxonomyName      string
	mode              string
	force             bool
	includeEmbeddings bool
	embedTaxonomy     bool
	noProgress        bool
	output            string
}

type classifyOutput struct {
	categorizeuc.Report
	Taxonomy string             `json:"taxonomy"`
	Products []*product.Product `json:"products"`
}

func newClassifyCmd(root *rootOptions) *cobra.Command {
	o := &classifyOptions{}
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a JSON product file and print the classified products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClassify(cmd, root, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.products, "products", "p", "", "JSON file with a product array or {\"products\": [...]} (- for stdin)")
	f.StringVarP(&o.taxonomyFile, "taxonomy", "t", "", "nested YAML or JSON taxonomy file (default: active taxonomy)")
	f.StringVar(&o.taxonomyName, "taxonomy-name", "", "registered taxonomy to use instead of the active one")
	f.StringVarP(&o.mode, "mode", "m", string(categorizeuc.ModeAuto), "auto, vector, llm or keyword")
	f.BoolVar(&o.force, "force", false, "re-classify manually assigned products")
	f.BoolVar(&o.includeEmbeddings, "include-embeddings", false, "keep product embeddings in the output")
	f.BoolVar(&o.embedTaxonomy, "embed-taxonomy", false, "embed taxonomy labels before classifying")
	f.BoolVar(&o.noProgress, "no-progress", false, "disable the progress bar")
	f.StringVarP(&o.output, "output", "o", "", "write JSON to a file instead of stdout")
	_ = cmd.MarkFlagRequired("products")
	return cmd
}

func runClassify(cmd *cobra.Command, root *rootOptions, o *classifyOptions) error {
	mode, err := categorizeuc.ParseMode(o.mode)
	if err != nil {
		return err
	}
	products, err := readProducts(cmd.InOrStdin(), o.products)
	if err != nil {
		return err
	}

	a, err := root.build(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	name := o.taxonomyName
	if o.taxonomyFile != "" {
		t, err := taxrepo.LoadFile(o.taxonomyFile, "")
		if err != nil {
			return err
		}
		a.Taxonomies.Put(t)
		name = t.Name()
	}
	if o.embedTaxonomy {
		if err := a.EmbedTaxonomies(ctx); err != nil {
			return err
		}
	}
	tax, err := a.Taxonomies.Get(name)
	if err != nil {
		return err
	}

	req := categorizeuc.Request{
		Products: products,
		Taxonomy: tax,
		Mode:     mode,
		Force:    o.force,
	}
	var bar *progressBar
	if !o.noProgress {
		bar = newProgressBar(cmd.ErrOrStderr())
		req.Progress = bar.Func()
	}
	report, err := a.Categorize.Run(ctx, req)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	if !o.includeEmbeddings {
		for _, p := range products {
			p.Embedding = nil
		}
	}
	out := classifyOutput{Report: report, Taxonomy: tax.Name(), Products: products}

	if o.output == "" {
		return printJSON(cmd.OutOrStdout(), out)
	}
	var buf bytes.Buffer
	if err := printJSON(&buf, out); err != nil {
		return err
	}
	if err := os.WriteFile(o.output, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d products classified (%d uncertain) -> %s\n",
		report.Stats.Total, report.Stats.Uncertain, o.output)
	return nil
}

// readProducts accepts a bare array or an object with a "products" array.
func readProducts(stdin io.Reader, path string) ([]*product.Product, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Products json.RawMessage `json:"products"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode products: %w", err)
		}
		data = wrapped.Products
	}
	products, err := product.DecodeAll(data)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("%s: no products", path)
	}
	return products, nil
}
