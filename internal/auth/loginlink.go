package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var ErrLinkInvalid = errors.New("login link is invalid or expired")

// LoginToken is the one-time credential embedded in a login link.
// Selector locates the stored row; Verifier is only ever kept hashed.
type LoginToken struct {
	Selector string
	Verifier string
}

func NewLoginToken() (LoginToken, error) {
	buf := make([]byte, 32)

	if _, err := rand.Read(buf); err != nil {
		return LoginToken{}, err
	}

	return LoginToken{
		Selector: uuid.NewString(),
		Verifier: base64.RawURLEncoding.EncodeToString(buf),
	}, nil
}

func (t LoginToken) String() string {
	return t.Selector + "." + t.Verifier
}

func ParseLoginToken(raw string) (LoginToken, error) {
	selector, verifier, ok := strings.Cut(strings.TrimSpace(raw), ".")

	if !ok || verifier == "" {
		return LoginToken{}, ErrLinkInvalid
	}

	if _, err := uuid.Parse(selector); err != nil {
		return LoginToken{}, ErrLinkInvalid
	}

	return LoginToken{Selector: selector, Verifier: verifier}, nil
}
