package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"storefront/internal/domain/model"
	"storefront/internal/syncer"

	"github.com/shopspring/decimal"
)

func formatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func printCart(out io.Writer, lines []model.CartLine, total decimal.Decimal) {
	if len(lines) == 0 {
		fmt.Fprintln(out, "cart is empty")
		return
	}
	tw := newTable(out)
	fmt.Fprintln(tw, "ITEM\tPRODUCT\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			l.ItemID, l.ProductID, l.Name, l.Quantity, formatPrice(l.Price), formatPrice(l.Subtotal()))
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "total: %s\n", formatPrice(total))
}

func printWishlist(out io.Writer, entries []model.WishlistEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "wishlist is empty")
		return
	}
	tw := newTable(out)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tPRICE\tADDED")
	for _, e := range entries {
		added := "-"
		if !e.AddedAt.IsZero() {
			added = e.AddedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ProductID, e.Name, formatPrice(e.Price), added)
	}
	_ = tw.Flush()
}

func printRecommendations(out io.Writer, items []model.RecommendedProduct) {
	if len(items) == 0 {
		fmt.Fprintln(out, "no recommendations")
		return
	}
	tw := newTable(out)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tPRICE\t")
	for _, it := range items {
		badge := ""
		if it.IsNew {
			badge = "NEW"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ID, it.Name, formatPrice(it.Price), badge)
	}
	_ = tw.Flush()
}

func printViewed(out io.Writer, items []model.ViewedProduct) {
	if len(items) == 0 {
		fmt.Fprintln(out, "nothing viewed yet")
		return
	}
	tw := newTable(out)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tPRICE\tVIEWED")
	for _, v := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ProductID, v.Name, formatPrice(v.Price), v.ViewedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func printFailures(out io.Writer, b syncer.BatchResult) {
	for _, f := range b.Failed() {
		fmt.Fprintf(out, "  failed %s: %v\n", f.ProductID, f.Err)
	}
	if b.Err != nil && len(b.Failed()) == 0 {
		fmt.Fprintf(out, "  %v\n", b.Err)
	}
}
