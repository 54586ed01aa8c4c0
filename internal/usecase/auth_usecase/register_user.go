package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// 会員登録の入力
type RegisterUserInput struct {
	Email    string
	Password string
}

var (
	// 入力が不正
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrWeakPassword       = errors.New("weak password")

	// 競合
	ErrEmailAlreadyExists = errors.New("email already exists")
)

// パスワードの最小文字数
const MinPasswordLength = 12

// RegisterUserUsecaseは会員登録の処理。
type RegisterUserUsecase struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
}

// DI
func NewRegisterUserUsecase(userRepo repository.UserRepository, hasher PasswordHasher) *RegisterUserUsecase {
	return &RegisterUserUsecase{
		userRepo: userRepo,
		hasher:   hasher,
	}
}

// 会員登録実行
func (u *RegisterUserUsecase) Execute(ctx context.Context, in RegisterUserInput) (UserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if !isValidEmailFormat(email) {
		return UserDTO{}, ErrInvalidEmailFormat
	}
	if len(in.Password) < MinPasswordLength {
		return UserDTO{}, ErrPasswordTooShort
	}
	if isWeakPassword(in.Password) {
		return UserDTO{}, ErrWeakPassword
	}

	// email重複チェック
	existing, err := u.userRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return UserDTO{}, ErrEmailAlreadyExists
	}
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return UserDTO{}, err
	}

	hashed, err := u.hasher.Hash(in.Password)
	if err != nil {
		return UserDTO{}, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hashed, // 平文は保存しない
		Role:         model.RoleUser,
		IsActive:     true,
	}

	// 重複チェック後に同じemailで先に登録された場合もここで弾く
	if err := u.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return UserDTO{}, ErrEmailAlreadyExists
		}
		return UserDTO{}, err
	}

	return toUserDTO(user), nil
}

// メールチェック
func isValidEmailFormat(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	// "Name <a@b>" 形式は受け付けない
	return err == nil && addr.Address == email
}

var weakPasswords = map[string]struct{}{
	"password":     {},
	"password123":  {},
	"password1234": {},
	"123456789012": {},
	"qwertyuiop":   {},
	"letmein":      {},
	"admin123":     {},
}

// よくある弱いパスワード
func isWeakPassword(password string) bool {
	_, ok := weakPasswords[strings.ToLower(strings.TrimSpace(password))]
	return ok
}

// bcryptハッシュ化
type BcryptPasswordHasher struct {
	cost int
}

// DI
func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{cost}
}

func (h *BcryptPasswordHasher) Hash(plain string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// bcryptハッシュと平文を比較
type BcryptPasswordVerifier struct{}

// DI
func NewBcryptPasswordVerifier() *BcryptPasswordVerifier {
	return &BcryptPasswordVerifier{}
}

func (v *BcryptPasswordVerifier) Verify(plain string, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
