package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the bcrypt cost used outside tests.
const DefaultBcryptCost = 12

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher with the given cost; a cost outside
// bcrypt's range falls back to DefaultBcryptCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
