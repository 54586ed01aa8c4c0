package main

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain/model"
	"storefront/internal/storefront"
	"storefront/internal/syncer"

	"github.com/spf13/cobra"
)

func (c *cli) wishlistCmd() *cobra.Command {
	var refresh bool
	list := func(cmd *cobra.Command, _ []string) error {
		return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
			printWishlist(cmd.OutOrStdout(), p.Wishlist.FetchEntries(ctx, refresh))
			return nil
		})
	}

	cmd := &cobra.Command{
		Use:     "wishlist",
		Aliases: []string{"wl"},
		Short:   "Show or change the wishlist",
		Long: `Shows the wishlist. Subcommands change it.

Subcommands:
  list      - Show the wishlist (default)
  add       - Add a product (no-op if already there)
  remove    - Remove a product
  move      - Move one product to the cart
  move-all  - Move every product to the cart`,
		Args: cobra.NoArgs,
		RunE: list,
	}
	cmd.PersistentFlags().BoolVar(&refresh, "refresh", false, "Ignore the cache and fetch from the server")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show the wishlist",
		Args:  cobra.NoArgs,
		RunE:  list,
	}

	addCmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				pid := model.ProductID(args[0])
				p.Wishlist.FetchEntries(ctx, false)
				if err := resultError(p.Wishlist.Add(ctx, pid, productSnapshot(ctx, p, pid))); err != nil {
					return err
				}
				printWishlist(cmd.OutOrStdout(), p.Wishlist.Entries())
				return nil
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				p.Wishlist.FetchEntries(ctx, false)
				if err := resultError(p.Wishlist.Remove(ctx, model.ProductID(args[0]))); err != nil {
					return err
				}
				printWishlist(cmd.OutOrStdout(), p.Wishlist.Entries())
				return nil
			})
		},
	}

	moveCmd := &cobra.Command{
		Use:   "move <product-id>",
		Short: "Move a product from the wishlist to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				p.Wishlist.FetchEntries(ctx, false)
				if err := resultError(p.Wishlist.MoveToCart(ctx, model.ProductID(args[0]))); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "moved %s to the cart\n", args[0])
				return nil
			})
		},
	}

	moveAllCmd := &cobra.Command{
		Use:   "move-all",
		Short: "Move every wishlist product to the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				p.Wishlist.FetchEntries(ctx, false)
				batch := p.Wishlist.MoveAllToCart(ctx)
				out := cmd.OutOrStdout()
				if errors.Is(batch.Err, syncer.ErrWishlistEmpty) {
					fmt.Fprintln(out, "wishlist is empty")
					return nil
				}
				fmt.Fprintf(out, "moved %d/%d products to the cart\n", len(batch.Succeeded()), len(batch.Items))
				printFailures(out, batch)
				if !batch.OK() {
					return fmt.Errorf("%d products could not be moved", len(batch.Failed()))
				}
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, addCmd, removeCmd, moveCmd, moveAllCmd)
	return cmd
}
