package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/course-assistant/internal/models"
)

// SetPassword derives a salted bcrypt hash of raw and stores it on u. The raw
// value is never kept.
func SetPassword(u *models.User, raw string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether raw matches the stored hash.
func CheckPassword(u *models.User, raw string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(raw)) == nil
}
