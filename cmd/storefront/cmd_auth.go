package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"storefront/internal/storefront"
	"storefront/internal/syncer"

	"github.com/spf13/cobra"
)

// パスワードはフラグか環境変数から
func passwordFrom(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if v := os.Getenv("STOREFRONT_PASSWORD"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("--password or STOREFRONT_PASSWORD is required")
}

func (c *cli) registerCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account (does not log in)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordFrom(password)
			if err != nil {
				return err
			}
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				profile, err := p.Register(ctx, args[0], pw)
				if err != nil {
					return fmt.Errorf("register: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s (id %d)\n", profile.Email, profile.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (or STOREFRONT_PASSWORD)")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in and merge the guest cart and wishlist into the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordFrom(password)
			if err != nil {
				return err
			}
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				report, err := p.Login(ctx, args[0], pw)
				if err != nil {
					return fmt.Errorf("login: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "logged in as %s\n", args[0])
				printMerge(out, "cart", report.Cart)
				printMerge(out, "wishlist", report.Wishlist)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (or STOREFRONT_PASSWORD)")
	return cmd
}

func printMerge(out io.Writer, name string, b syncer.BatchResult) {
	if len(b.Items) == 0 && b.Err == nil {
		return
	}
	fmt.Fprintf(out, "merged %d/%d guest %s items\n", len(b.Succeeded()), len(b.Items), name)
	printFailures(out, b)
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the tokens (local cart and wishlist are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				if !p.Session.IsAuthenticated() {
					fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
					return nil
				}
				p.Logout(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			})
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withProvider(cmd, func(ctx context.Context, p *storefront.Provider) error {
				profile, ok := p.Session.Profile()
				if !p.Session.IsAuthenticated() || !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "guest")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d, %s)\n", profile.Email, profile.ID, profile.Role)
				return nil
			})
		},
	}
}
