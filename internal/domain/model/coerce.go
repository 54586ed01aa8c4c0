package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// JSONのスカラーを文字列にする。null/配列/オブジェクト/boolは空文字。
func rawScalar(raw []byte) string {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return ""
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 't', 'f':
		return ""
	default:
		return string(b)
	}
}

// 数値でない値は0扱い（壊れたlocalStorageやAPIの値を弾かずに0にする）
func CoerceDecimal(raw []byte) decimal.Decimal {
	s := strings.TrimSpace(rawScalar(raw))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// 数量も同様。小数は切り捨て。
func CoerceInt(raw []byte) int {
	s := strings.TrimSpace(rawScalar(raw))
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return int(d.IntPart())
}
