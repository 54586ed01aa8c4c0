package model

import (
	"encoding/json"
	"strconv"
)

// ProductID はクライアント側で使う商品IDの正規形。
// 上流は数値/文字列、product_id/id が混在するので境界(UnmarshalJSON)で文字列に寄せる。
type ProductID string

func ProductIDFromInt(v int64) ProductID {
	return ProductID(strconv.FormatInt(v, 10))
}

func (id ProductID) String() string {
	return string(id)
}

func (id ProductID) IsZero() bool {
	return id == ""
}

// サーバーのint64 IDに戻せるか
func (id ProductID) Int64() (int64, bool) {
	if !isJSONInteger(string(id)) {
		return 0, false
	}
	v, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// 数字だけのIDはJSON数値で書く（サーバーはint64で受ける）
func (id ProductID) MarshalJSON() ([]byte, error) {
	if _, ok := id.Int64(); ok {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ProductID) UnmarshalJSON(b []byte) error {
	*id = ProductID(rawScalar(b))
	return nil
}

// product_id と id のどちらを使うか決める。
// 両方あって食い違う場合は product_id を採用し conflict=true を返す（呼び出し側でログに残す）。
func resolveIdentity(productID, id json.RawMessage) (ProductID, bool) {
	pid := ProductID(rawScalar(productID))
	alt := ProductID(rawScalar(id))

	if pid.IsZero() {
		return alt, false
	}
	if !alt.IsZero() && alt != pid {
		return pid, true
	}
	return pid, false
}

func isJSONInteger(s string) bool {
	if s == "" || len(s) > 18 {
		return false
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
