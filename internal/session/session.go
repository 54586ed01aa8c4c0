package session

import (
	"context"
	"sync"

	"storefront/internal/localstore"

	"go.uber.org/zap"
)

// State はゲストかログイン済みか
type State int

const (
	Guest State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "guest"
}

// ログアウト理由
type LogoutReason string

const (
	ReasonUser          LogoutReason = "user"
	ReasonTokenExpired  LogoutReason = "token_expired"
	ReasonRefreshFailed LogoutReason = "refresh_failed"
)

type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Profile は local の user キーに保存するユーザーのスナップショット
type Profile struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Event は認証状態の遷移
type Event struct {
	From   State
	To     State
	Reason LogoutReason
}

// Session はトークンとユーザー情報を持ち、local/remoteどちらを正とするかを決める。
// リスナーは遷移した goroutine で同期的に呼ばれる（ロックは外してから呼ぶ）。
type Session struct {
	local  *localstore.Local
	logger *zap.Logger

	mu        sync.RWMutex
	state     State
	tokens    Tokens
	profile   *Profile
	listeners map[int]func(Event)
	nextID    int
}

// New は local に残ったトークンから状態を復元する
func New(ctx context.Context, local *localstore.Local, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		local:     local,
		logger:    logger,
		listeners: map[int]func(Event){},
	}

	s.tokens = Tokens{
		AccessToken:  local.GetString(ctx, localstore.KeyAccessToken),
		RefreshToken: local.GetString(ctx, localstore.KeyRefreshToken),
	}
	var p Profile
	if local.LoadJSON(ctx, localstore.KeyUser, &p) {
		s.profile = &p
	}
	if s.tokens.AccessToken != "" {
		s.state = Authenticated
	}
	return s
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) IsAuthenticated() bool {
	return s.State() == Authenticated
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.AccessToken
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.RefreshToken
}

func (s *Session) Profile() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return Profile{}, false
	}
	return *s.profile, true
}

// Login はトークンとユーザーを保存して Authenticated にする。
// ゲストからの遷移ならリスナーへ通知する（マージはリスナー側）。
func (s *Session) Login(ctx context.Context, tokens Tokens, profile Profile) error {
	if err := s.persist(ctx, tokens); err != nil {
		return err
	}
	if err := s.local.SaveJSON(ctx, localstore.KeyUser, profile); err != nil {
		return err
	}

	s.mu.Lock()
	from := s.state
	s.state = Authenticated
	s.tokens = tokens
	p := profile
	s.profile = &p
	s.mu.Unlock()

	s.logger.Info("session authenticated", zap.Int64("user_id", profile.ID))
	if from != Authenticated {
		s.emit(Event{From: from, To: Authenticated})
	}
	return nil
}

// UpdateTokens はリフレッシュ後のトークン差し替え。状態は変えない。
func (s *Session) UpdateTokens(ctx context.Context, tokens Tokens) error {
	if err := s.persist(ctx, tokens); err != nil {
		return err
	}
	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()
	return nil
}

// Logout はトークンとユーザーを消してゲストに戻す。
// cart/wishlist のローカルデータは残す。
func (s *Session) Logout(ctx context.Context, reason LogoutReason) {
	for _, key := range []string{localstore.KeyAccessToken, localstore.KeyRefreshToken, localstore.KeyUser} {
		_ = s.local.Remove(ctx, key)
	}

	s.mu.Lock()
	from := s.state
	s.state = Guest
	s.tokens = Tokens{}
	s.profile = nil
	s.mu.Unlock()

	if from == Guest {
		return
	}
	s.logger.Info("session logged out", zap.String("reason", string(reason)))
	s.emit(Event{From: from, To: Guest, Reason: reason})
}

// Subscribe は認証状態の遷移を購読する
func (s *Session) Subscribe(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) persist(ctx context.Context, tokens Tokens) error {
	if err := s.local.SetString(ctx, localstore.KeyAccessToken, tokens.AccessToken); err != nil {
		return err
	}
	return s.local.SetString(ctx, localstore.KeyRefreshToken, tokens.RefreshToken)
}

func (s *Session) emit(ev Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
