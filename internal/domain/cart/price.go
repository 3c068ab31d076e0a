package cart

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// カートから送られてくる価格。数値でも数値文字列でも受ける。
// 解釈できない値はエラーにせず「未解決」として0扱いにする。
type Price struct {
	Amount   int64
	Resolved bool
}

func PriceOf(amount int64) Price {
	if amount < 0 {
		return Price{}
	}
	return Price{Amount: amount, Resolved: true}
}

func (p *Price) UnmarshalJSON(b []byte) error {
	*p = Price{}

	raw := bytes.TrimSpace(b)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
	} else {
		s = string(raw)
	}

	*p = ParsePrice(s)
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(p.Amount, 10)), nil
}

// 文字列から価格を読む。小数は四捨五入。
func ParsePrice(s string) Price {
	s = strings.TrimSpace(s)
	if s == "" {
		return Price{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return PriceOf(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 {
		return Price{}
	}
	return PriceOf(int64(math.Round(f)))
}
