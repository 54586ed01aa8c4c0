package main

import (
	"context"
	"fmt"
	"strconv"

	"storefront/internal/domain/model"
	"storefront/internal/storefront"
	"storefront/internal/syncer"

	"github.com/spf13/cobra"
)

func (c *cli) cartCmd() *cobra.Command {
	var refresh bool
	list := func(cmd *cobra.Command, _ []string) error {
		return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
			lines := p.Cart.FetchLines(ctx, refresh)
			printCart(cmd.OutOrStdout(), lines, syncer.ComputeTotal(lines))
			return nil
		})
	}

	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show or change the cart",
		Long: `Shows the cart. Subcommands change it.

Subcommands:
  list    - Show the cart (default)
  add     - Add a product (quantity is added to an existing line)
  update  - Set the quantity of a line
  remove  - Remove a line
  clear   - Empty the cart`,
		Args: cobra.NoArgs,
		RunE: list,
	}
	cmd.PersistentFlags().BoolVar(&refresh, "refresh", false, "Ignore the cache and fetch from the server")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE:  list,
	}

	var qty int
	addCmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				pid := model.ProductID(args[0])
				res := p.Cart.AddLine(ctx, pid, qty, productSnapshot(ctx, p, pid))
				if err := resultError(res); err != nil {
					return err
				}
				lines := p.Cart.Lines()
				printCart(cmd.OutOrStdout(), lines, syncer.ComputeTotal(lines))
				return nil
			})
		},
	}
	addCmd.Flags().IntVarP(&qty, "qty", "q", 1, "Quantity to add")

	updateCmd := &cobra.Command{
		Use:   "update <item-id> <quantity>",
		Short: "Set the quantity of a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a number: %q", args[1])
			}
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				// ミラーが空だと該当行が見つからないので先に読む
				p.Cart.FetchLines(ctx, false)
				if err := resultError(p.Cart.UpdateQuantity(ctx, args[0], n)); err != nil {
					return err
				}
				lines := p.Cart.Lines()
				printCart(cmd.OutOrStdout(), lines, syncer.ComputeTotal(lines))
				return nil
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Remove a cart line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				p.Cart.FetchLines(ctx, false)
				if err := resultError(p.Cart.RemoveLine(ctx, args[0])); err != nil {
					return err
				}
				lines := p.Cart.Lines()
				printCart(cmd.OutOrStdout(), lines, syncer.ComputeTotal(lines))
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				if !p.Session.IsAuthenticated() {
					p.Cart.Clear(ctx)
					fmt.Fprintln(cmd.OutOrStdout(), "cart cleared")
					return nil
				}
				// Clear はローカルだけなので、ログイン中は1行ずつ消す
				for _, l := range p.Cart.FetchLines(ctx, true) {
					if err := resultError(p.Cart.RemoveLine(ctx, l.ItemID)); err != nil {
						return fmt.Errorf("remove %s: %w", l.ItemID, err)
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cart cleared")
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, addCmd, updateCmd, removeCmd, clearCmd)
	return cmd
}

// productSnapshot はゲスト表示用に商品情報を引く。取れなければプレースホルダ。
func productSnapshot(ctx context.Context, p *storefront.Provider, pid model.ProductID) *model.ProductSnapshot {
	prod, err := p.API.Product(ctx, pid)
	if err != nil {
		return nil
	}
	return &model.ProductSnapshot{Name: prod.Name, Price: prod.Price, ImageURL: prod.ImageURL}
}

func resultError(res syncer.Result) error {
	if res.OK {
		return nil
	}
	return fmt.Errorf("%s: %w", res.State, res.Err)
}
