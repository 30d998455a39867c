package security

import "golang.org/x/crypto/bcrypt"

// HashSecret hashes a login-link verifier with bcrypt.
func HashSecret(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckSecret returns nil when plain matches hash.
func CheckSecret(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
