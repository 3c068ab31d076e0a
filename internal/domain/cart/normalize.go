package cart

import (
	"fmt"
	"strings"

	"storefront/internal/domain/model"
)

// カートの1行。同じ商品が複数行に分かれて来ることがある。
type RawItem struct {
	ProductRef string `json:"product_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Price      Price  `json:"price"`
	Quantity   int64  `json:"quantity"`
	ImageRef   string `json:"image"`
}

type WarningKind string

const (
	WarnUnresolvedPrice  WarningKind = "unresolved_price"
	WarnMissingKey       WarningKind = "missing_key"
	WarnInvalidQuantity  WarningKind = "invalid_quantity"
	WarnConflictingPrice WarningKind = "conflicting_price"
)

// データ品質の警告。呼び出し側でログに出す。
type Warning struct {
	Index int         `json:"index"`
	Kind  WarningKind `json:"kind"`
	Key   string      `json:"key,omitempty"`
}

func (w Warning) String() string {
	return fmt.Sprintf("item[%d] %s key=%q", w.Index, w.Kind, w.Key)
}

// 商品名のグルーピング用正規化（小文字化＋空白の圧縮）
func GroupKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Normalizeはカートを明細にまとめる。
// productRef（無ければ正規化した商品名）ごとに数量を合算し、初出順を保つ。
// totalはクライアントの合計とは無関係に明細から計算する。
func Normalize(items []RawItem) ([]model.LineItem, int64, []Warning) {
	var warnings []Warning
	lines := make([]model.LineItem, 0, len(items))
	index := make(map[string]int, len(items))

	for i, it := range items {
		key := strings.TrimSpace(it.ProductRef)
		if key == "" {
			key = GroupKey(it.Name)
		}
		if key == "" {
			warnings = append(warnings, Warning{Index: i, Kind: WarnMissingKey})
			continue
		}

		price := it.Price.Amount
		if !it.Price.Resolved {
			warnings = append(warnings, Warning{Index: i, Kind: WarnUnresolvedPrice, Key: key})
			price = 0
		}

		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			warnings = append(warnings, Warning{Index: i, Kind: WarnInvalidQuantity, Key: key})
			continue
		}

		if pos, ok := index[key]; ok {
			// 最初に出てきた価格を採用する
			if lines[pos].UnitPrice != price {
				warnings = append(warnings, Warning{Index: i, Kind: WarnConflictingPrice, Key: key})
			}
			lines[pos].Quantity += qty
			continue
		}

		index[key] = len(lines)
		lines = append(lines, model.LineItem{
			Position:   len(lines),
			ProductRef: strings.TrimSpace(it.ProductRef),
			Name:       strings.TrimSpace(it.Name),
			Category:   strings.TrimSpace(it.Category),
			UnitPrice:  price,
			Quantity:   qty,
			ImageRef:   strings.TrimSpace(it.ImageRef),
		})
	}

	var total int64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return lines, total, warnings
}
