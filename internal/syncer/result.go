package syncer

import "storefront/internal/domain/model"

// MutationState は1回の更新操作の状態
type MutationState int

const (
	Requested MutationState = iota
	OptimisticallyApplied
	Confirmed
	RolledBack
)

func (s MutationState) String() string {
	switch s {
	case Requested:
		return "requested"
	case OptimisticallyApplied:
		return "optimistically_applied"
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Result は更新操作の結果。失敗しても panic/中断せずここで返す。
type Result struct {
	OK    bool
	State MutationState
	Err   error
}

func confirmed() Result {
	return Result{OK: true, State: Confirmed}
}

func rolledBack(err error) Result {
	return Result{State: RolledBack, Err: err}
}

// 何も適用せずに失敗した
func rejected(err error) Result {
	return Result{State: Requested, Err: err}
}

// ItemResult はバッチ内の1件
type ItemResult struct {
	ProductID model.ProductID
	Err       error
}

func (r ItemResult) OK() bool {
	return r.Err == nil
}

// BatchResult はマージ/一括移動の結果。どの商品が失敗したかを呼び出し側で報告できる。
type BatchResult struct {
	Items []ItemResult
	Err   error
}

func (b BatchResult) OK() bool {
	if b.Err != nil {
		return false
	}
	for _, it := range b.Items {
		if it.Err != nil {
			return false
		}
	}
	return true
}

func (b BatchResult) Failed() []ItemResult {
	var out []ItemResult
	for _, it := range b.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

func (b BatchResult) Succeeded() []model.ProductID {
	var out []model.ProductID
	for _, it := range b.Items {
		if it.Err == nil {
			out = append(out, it.ProductID)
		}
	}
	return out
}
