package utils

import "golang.org/x/crypto/bcrypt"

const (
	MinPasswordLength = 6
	DefaultHashCost   = 12
)

// HashPasswordCost hashes a password with bcrypt. Production passes
// DefaultHashCost; tests use bcrypt.MinCost to stay fast.
func HashPasswordCost(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPasswordHash compares a plain password with its hashed version.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
