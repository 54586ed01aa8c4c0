package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/localstore"
	"storefront/internal/storefront"

	"github.com/spf13/cobra"
)

func (c *cli) recommendationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "recommendations",
		Aliases: []string{"recs"},
		Short:   "Show recommended products",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				printRecommendations(cmd.OutOrStdout(), p.Wishlist.FetchRecommendations(ctx, true))
				return nil
			})
		},
	}
}

func (c *cli) viewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <product-id>",
		Short: "Show a product and remember it as recently viewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				prod, err := p.ViewProduct(ctx, model.ProductID(args[0]))
				if err != nil {
					return fmt.Errorf("view %s: %w", args[0], err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s  %s\n", prod.ID, prod.Name)
				fmt.Fprintf(out, "price: %s\n", formatPrice(prod.Price))
				if prod.ImageURL != "" {
					fmt.Fprintf(out, "image: %s\n", prod.ImageURL)
				}
				return nil
			})
		},
	}
}

func (c *cli) viewedCmd() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "viewed",
		Short: "Show recently viewed products",
		Long: `Shows up to 10 recently viewed products, newest first.

With --follow the list is printed again whenever another storefront
process changes it (file store only). Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !follow {
				return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
					printViewed(cmd.OutOrStdout(), p.Local.RecentlyViewed(ctx))
					return nil
				})
			}
			return c.followViewed(cmd)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep watching for changes")
	return cmd
}

func (c *cli) followViewed(cmd *cobra.Command) error {
	if c.cfg.Store.Driver != config.StoreFile {
		return fmt.Errorf("--follow needs the file store (current: %s)", c.cfg.Store.Driver)
	}

	// タイムアウトは付けず、シグナルで止める
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.runProvider(ctx, func(ctx context.Context, p *storefront.Provider) error {
		fs, err := localstore.NewFileStore(c.cfg.Store.Path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printViewed(out, p.Local.RecentlyViewed(ctx))

		cancel := p.Local.OnRecentlyViewedChange(func(items []model.ViewedProduct) {
			fmt.Fprintln(out, "---")
			printViewed(out, items)
		})
		defer cancel()

		stopWatch, err := p.Local.FollowExternal(ctx, fs)
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		defer stopWatch()

		<-ctx.Done()
		return nil
	})
}
