package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "jobsheet"

type tokenKind string

const (
	kindAccess  tokenKind = "access"
	kindRefresh tokenKind = "refresh"
)

var ErrWrongTokenKind = errors.New("wrong token kind")

// Claims carry the signed-in user. The sheet only needs id and email:
// there are no roles, every signed-in user may read and insert.
type Claims struct {
	UserID    string    `json:"sub"`
	Email     string    `json:"email"`
	TokenType tokenKind `json:"typ"`
	JTI       string    `json:"jti"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewManager(secret string, accessTTL time.Duration, refreshTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) AccessTTL() time.Duration {
	return m.accessTTL
}

func (m *Manager) GenerateAccessToken(userID, email string) (string, error) {
	raw, _, _, err := m.sign(kindAccess, userID, email, m.accessTTL)
	return raw, err
}

// GenerateRefreshToken also returns the jti and expiry so the caller can
// persist the token's hash for rotation.
func (m *Manager) GenerateRefreshToken(userID, email string) (raw string, jti string, expiresAt time.Time, err error) {
	return m.sign(kindRefresh, userID, email, m.refreshTTL)
}

func (m *Manager) sign(kind tokenKind, userID, email string, ttl time.Duration) (string, string, time.Time, error) {
	now := m.now()
	jti := uuid.NewString()
	exp := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID,
		Email:     email,
		TokenType: kind,
		JTI:       jti,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	raw, err := token.SignedString(m.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return raw, jti, exp, nil
}

func (m *Manager) parse(tokenStr string, want tokenKind) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != want {
		return nil, ErrWrongTokenKind
	}
	if claims.UserID == "" || claims.JTI == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (m *Manager) VerifyAccessToken(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, kindAccess)
}

func (m *Manager) VerifyRefreshToken(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, kindRefresh)
}

// HashRefreshToken is the stored form of a refresh token: an HMAC keyed by
// the signing secret, so a leaked table cannot be replayed.
func (m *Manager) HashRefreshToken(raw string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}
