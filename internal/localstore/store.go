package localstore

import (
	"context"
	"errors"
)

// キーが無い
var ErrNotFound = errors.New("localstore: key not found")

// Store はブラウザの localStorage 相当のキー/値ストア。
// 値はJSONのバイト列。複数プロセス間のロックはしない（最後に書いた方が勝つ）。
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
