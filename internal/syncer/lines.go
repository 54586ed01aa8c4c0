package syncer

import (
	"fmt"
	"time"

	"storefront/internal/domain/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComputeTotal は Σ price × quantity。数値でない値はデコード時に0になっている。
func ComputeTotal(lines []model.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// 1未満は1に丸める
func clampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

// 保存と表示の直前に数量を1以上にそろえる。
// 足し算は addOrIncrement で壊れた値を0として済ませてから通す。
func normalizeLines(lines []model.CartLine) []model.CartLine {
	out := cloneLines(lines)
	for i := range out {
		out[i].Quantity = clampQuantity(out[i].Quantity)
	}
	return out
}

// local-<ms>-<8桁> / temp-<ms>-<8桁>
func newItemID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), uuid.NewString()[:8])
}

func cloneLines(lines []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, len(lines))
	copy(out, lines)
	return out
}

func cloneEntries(entries []model.WishlistEntry) []model.WishlistEntry {
	out := make([]model.WishlistEntry, len(entries))
	copy(out, entries)
	return out
}

func indexOfProduct(lines []model.CartLine, pid model.ProductID) int {
	for i, l := range lines {
		if l.ProductID == pid {
			return i
		}
	}
	return -1
}

// 同じ商品があれば数量を足し、無ければ新しい行を追加する
func addOrIncrement(lines []model.CartLine, pid model.ProductID, qty int, details *model.ProductSnapshot, itemID string) []model.CartLine {
	out := cloneLines(lines)
	if i := indexOfProduct(out, pid); i >= 0 {
		current := out[i].Quantity
		if current < 0 {
			current = 0
		}
		out[i].Quantity = current + qty
		return out
	}
	return append(out, model.NewCartLine(itemID, pid, qty, details))
}

func setQuantity(lines []model.CartLine, itemID string, qty int) ([]model.CartLine, bool) {
	out := cloneLines(lines)
	found := false
	for i := range out {
		if out[i].ItemID == itemID {
			out[i].Quantity = qty
			found = true
		}
	}
	return out, found
}

func removeItem(lines []model.CartLine, itemID string) ([]model.CartLine, bool) {
	out := make([]model.CartLine, 0, len(lines))
	found := false
	for _, l := range lines {
		if l.ItemID == itemID {
			found = true
			continue
		}
		out = append(out, l)
	}
	return out, found
}

func findEntry(entries []model.WishlistEntry, pid model.ProductID) (model.WishlistEntry, bool) {
	for _, e := range entries {
		if e.ProductID == pid {
			return e, true
		}
	}
	return model.WishlistEntry{}, false
}

func withoutEntry(entries []model.WishlistEntry, pid model.ProductID) []model.WishlistEntry {
	out := make([]model.WishlistEntry, 0, len(entries))
	for _, e := range entries {
		if e.ProductID != pid {
			out = append(out, e)
		}
	}
	return out
}

// 既にあれば何もしない
func withEntry(entries []model.WishlistEntry, e model.WishlistEntry) []model.WishlistEntry {
	if _, ok := findEntry(entries, e.ProductID); ok {
		return cloneEntries(entries)
	}
	return append(cloneEntries(entries), e)
}
