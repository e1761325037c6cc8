// Package partcat embeds the automotive parts categorization engine in a Go
// program, without running the HTTP server.
//
// Without providers the client classifies with the keyword and brand matcher;
// an LLM key adds batch classification, an embedding key adds the vector path.
//
//	client, _ := partcat.New(ctx,
//	    partcat.WithLLM(os.Getenv("OPENAI_API_KEY"), "", "gpt-4o-mini"),
//	)
//	defer client.Close()
//
//	products, _ := partcat.DecodeProducts(data)
//	report, _ := client.Classify(ctx, products)
//	for _, p := range products {
//	    fmt.Println(p.Name, p.SuggestedPartType, p.Confidence, p.Status)
//	}
//
// Records are normalized on the way in: "Product Name", "product_name" and
// "Name" all map to the product name, "sku" to the part number and so on.
package partcat
