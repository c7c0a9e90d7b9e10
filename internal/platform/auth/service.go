package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"bibliogoya-backend/internal/platform/identity"
	"bibliogoya-backend/internal/platform/logging"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("not found")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidToken       = errors.New("invalid token")
)

const MinPasswordLen = 8

type Service struct {
	store  AccountStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    logging.Logger
}

func NewService(db *sqlx.DB, secret []byte, ttl time.Duration, log logging.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{store: NewStore(db), secret: secret, ttl: ttl, now: time.Now, log: log}
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (Token, error)
	ChangePassword(ctx context.Context, memberID int64, current, next string) error
}

type Token struct {
	AccessToken string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	MemberID    int64     `json:"member_id"`
	Role        string    `json:"role"`
}

// HashPassword is shared with member administration.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLen {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	acct, err := s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return Token{}, err
	}
	// members created without a password cannot log in
	if acct == nil || !acct.PasswordHash.Valid {
		s.log.WarnContext(ctx, "login failed", "email", email, "reason", "unknown account")
		return Token{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash.String), []byte(password)); err != nil {
		s.log.WarnContext(ctx, "login failed", "member_id", acct.MemberID, "reason", "password mismatch")
		return Token{}, ErrInvalidCredentials
	}

	now := s.now()
	exp := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(acct.MemberID, 10),
		"role": acct.Role,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	})
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}
	s.log.InfoContext(ctx, "login", "member_id", acct.MemberID, "role", acct.Role)
	return Token{AccessToken: tokenString, ExpiresAt: exp.UTC(), MemberID: acct.MemberID, Role: acct.Role}, nil
}

// ChangePassword lets a signed-in member replace their own password.
func (s *Service) ChangePassword(ctx context.Context, memberID int64, current, next string) error {
	acct, err := s.store.GetByID(ctx, memberID)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrNotFound
	}
	if acct.PasswordHash.Valid {
		if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash.String), []byte(current)); err != nil {
			return ErrInvalidCredentials
		}
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	n, err := s.store.SetPasswordHash(ctx, memberID, hash)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	s.log.InfoContext(ctx, "password changed", "member_id", memberID)
	return nil
}

// ParseToken validates an HS256 token and returns the caller it names.
func ParseToken(secret []byte, tokenStr string) (identity.Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || token == nil || !token.Valid {
		return identity.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return identity.Identity{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return identity.Identity{}, ErrInvalidToken
	}
	memberID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || memberID <= 0 {
		return identity.Identity{}, ErrInvalidToken
	}
	roleStr, _ := claims["role"].(string)
	role := identity.Role(roleStr)
	if !role.Valid() {
		return identity.Identity{}, ErrInvalidToken
	}
	return identity.Identity{MemberID: memberID, Role: role}, nil
}
