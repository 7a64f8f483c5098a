package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antonminaichev/cashback-ledger/internal/apperr"
	"github.com/antonminaichev/cashback-ledger/internal/logger"
	"github.com/antonminaichev/cashback-ledger/internal/types/user"
	"go.uber.org/zap"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists        = errors.New("user already exists")
	ErrInvalidCreds      = errors.New("invalid credentials")
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters")
	ErrPasswordNoUpper   = errors.New("password must contain an uppercase letter")
	ErrPasswordNoSpecial = errors.New("password must contain a special character")
	ErrEmptyLogin        = errors.New("login must not be empty")
	ErrAccountBanned     = errors.New("account is banned")
	ErrCannotBanAdmin    = errors.New("admin accounts cannot be banned")
)

const passwordSpecials = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// ValidatePassword enforces the password policy for registration and
// admin resets.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	if !strings.ContainsAny(password, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		return ErrPasswordNoUpper
	}
	if !strings.ContainsAny(password, passwordSpecials) {
		return ErrPasswordNoSpecial
	}
	return nil
}

// Claims is the JWT payload issued on login.
type Claims struct {
	Role user.Role `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	repo      UserRepository
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewService(repo UserRepository, jwtSecret []byte, jwtTTL time.Duration) *Service {
	return &Service{repo: repo, jwtSecret: jwtSecret, jwtTTL: jwtTTL}
}

func (s *Service) Register(ctx context.Context, login, password string) (*user.User, error) {
	return s.create(ctx, login, password, user.RoleUser)
}

func (s *Service) create(ctx context.Context, login, password string, role user.Role) (*user.User, error) {
	if strings.TrimSpace(login) == "" {
		return nil, ErrEmptyLogin
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &user.User{
		Login:        login,
		PasswordHash: string(hash),
		Role:         role,
		Status:       user.StatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return u, nil
}

// EnsureAdmin creates the bootstrap admin account unless the login is taken.
// An existing non-admin user with that login is an error.
func (s *Service) EnsureAdmin(ctx context.Context, login, password string) (*user.User, error) {
	existing, err := s.repo.FindByLogin(ctx, login)
	if err == nil {
		if existing.Role != user.RoleAdmin {
			return nil, fmt.Errorf("login %q is taken by a non-admin user", login)
		}
		return existing, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	u, err := s.create(ctx, login, password, user.RoleAdmin)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("admin account created", zap.String("login", login), zap.Int64("id", u.ID))
	return u, nil
}

// Authenticate checks the credentials and issues a signed session token.
// Unknown logins and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*user.Session, error) {
	u, err := s.repo.FindByLogin(ctx, login)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			logger.Log.Error("find user failed", zap.String("login", login), zap.Error(err))
		}
		return nil, ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCreds
	}
	if u.Banned() {
		return nil, ErrAccountBanned
	}
	now := time.Now().UTC()
	expires := now.Add(s.jwtTTL)
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   login,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &user.Session{Token: signed, Role: u.Role, ExpiresAt: expires}, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.repo.ListUsers(ctx)
}

// SetBanned bans or reinstates an account. A banned user cannot log in and
// existing tokens stop working on the next request.
func (s *Service) SetBanned(ctx context.Context, adminID, userID int64, banned bool) (*user.User, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if banned && u.Role == user.RoleAdmin {
		return nil, fmt.Errorf("user %d: %w", userID, ErrCannotBanAdmin)
	}
	u.Status = user.StatusActive
	if banned {
		u.Status = user.StatusBanned
	}
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	logger.Log.Info("user status changed",
		zap.Int64("user_id", userID),
		zap.Int64("admin_id", adminID),
		zap.String("status", string(u.Status)),
	)
	return u, nil
}

// ResetPassword replaces the password of any account.
func (s *Service) ResetPassword(ctx context.Context, adminID, userID int64, password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return err
	}
	logger.Log.Info("password reset by admin", zap.Int64("user_id", userID), zap.Int64("admin_id", adminID))
	return nil
}

// Rename changes the login. Tokens issued for the old login stop working.
func (s *Service) Rename(ctx context.Context, adminID, userID int64, login string) (*user.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, ErrEmptyLogin
	}
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	old := u.Login
	u.Login = login
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	logger.Log.Info("user renamed",
		zap.Int64("user_id", userID),
		zap.Int64("admin_id", adminID),
		zap.String("from", old),
		zap.String("to", login),
	)
	return u, nil
}
