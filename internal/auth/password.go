package auth

import (
	"fmt"

	"github.com/hugh/go-crm/pkg/crypto"
	"golang.org/x/crypto/bcrypt"
)

// unusablePasswordLength is the length of the throwaway password given to
// invited agents. Nobody ever sees it; the invite link replaces it.
const unusablePasswordLength = 32

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// UnusablePasswordHash hashes a random secret that is discarded immediately.
func UnusablePasswordHash() (string, error) {
	secret, err := crypto.GenerateRandomString(unusablePasswordLength)
	if err != nil {
		return "", err
	}
	return HashPassword(secret)
}
