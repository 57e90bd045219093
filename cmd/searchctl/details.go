package main

import (
	"github.com/spf13/cobra"
)

func newDetailsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "details [sku...]",
		Short: "Load product details for SKUs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = d.logger.Sync() }()

			products, err := d.details.GetDetails(cmd.Context(), args)
			if err != nil {
				return err
			}
			if root.asJSON {
				return printJSON(cmd, products)
			}
			return printProducts(cmd, products)
		},
	}
}
