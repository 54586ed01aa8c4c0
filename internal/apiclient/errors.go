package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// リフレッシュにも失敗した（ログアウト済み）
	ErrSessionExpired = errors.New("apiclient: session expired, please log in again")
	// レスポンスが返ってこなかった
	ErrNetwork = errors.New("apiclient: network error")
)

// StatusError は2xx以外のレスポンス
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	msg := e.Message
	switch {
	case msg != "":
	case e.Status == http.StatusServiceUnavailable:
		msg = "service temporarily unavailable"
	case e.Status == http.StatusNotFound:
		msg = "resource not found"
	default:
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("apiclient: %s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

func (e *StatusError) HTTPStatus() int {
	return e.Status
}

// ステータスコード判定
func IsStatus(err error, status int) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == status
	}
	return false
}
