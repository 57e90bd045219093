package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storefront-search/internal/models"
)

func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		filters     models.SearchFilters
		withDetails bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Resolve a query to product identifiers",
		Long: `Resolves a free-text query through the legacy strategy and, on failure,
the direct strategy. Outside production a fixed sample is printed when the
search upstream cannot be reached.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = d.logger.Sync() }()

			query := strings.Join(args, " ")
			start := time.Now()
			ids, err := d.resolver.Resolve(cmd.Context(), query, filters)
			if err != nil {
				return err
			}

			if !withDetails {
				if root.asJSON {
					return printJSON(cmd, models.SearchResponse{
						Query:       strings.TrimSpace(query),
						Identifiers: ids,
						Count:       len(ids),
						Filters:     filters,
						Duration:    time.Since(start).String(),
					})
				}
				return printIdentifiers(cmd, ids)
			}

			products, err := d.details.GetDetails(cmd.Context(), ids)
			if err != nil {
				return fmt.Errorf("load details: %w", err)
			}
			if root.asJSON {
				return printJSON(cmd, models.StorefrontResponse{
					Query:       strings.TrimSpace(query),
					Identifiers: ids,
					Products:    products,
					Total:       len(products),
					Filters:     filters,
					Duration:    time.Since(start).String(),
				})
			}
			return printProducts(cmd, products)
		},
	}
	cmd.Flags().StringVar(&filters.ProductLine, "line", "", "product line filter")
	cmd.Flags().StringVar(&filters.Brand, "brand", "", "brand filter")
	cmd.Flags().StringVar(&filters.WarehouseCode, "warehouse", "", "warehouse code filter")
	cmd.Flags().StringVar(&filters.ProductType, "type", "", "product type filter")
	cmd.Flags().BoolVarP(&withDetails, "details", "d", false, "also load product details")
	return cmd
}

func printIdentifiers(cmd *cobra.Command, ids []string) error {
	if len(ids) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i, id := range ids {
		cmd.Printf("  [%d] %s\n", i+1, id)
	}
	return nil
}

func printProducts(cmd *cobra.Command, products []models.Product) error {
	if len(products) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i := range products {
		p := products[i]
		cmd.Printf("  [%d] %s  %s (%.2f)\n", i+1, p.SKU, p.Title, p.Price)
		if p.Brand != "" {
			cmd.Printf("      Brand: %s  Stock: %d\n", p.Brand, p.Stock)
		}
	}
	return nil
}
