package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword returns a bcrypt digest of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword checks password against digest. Besides bcrypt it accepts the
// legacy unsalted SHA-256 hex digests of older accounts; needsRehash is true
// when such a digest matched and should be replaced.
func VerifyPassword(digest, password string) (needsRehash bool, err error) {
	if strings.HasPrefix(digest, "$2") {
		if err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)); err != nil {
			return false, ErrInvalidCredentials
		}
		return false, nil
	}
	if isLegacyDigest(digest) {
		sum := sha256.Sum256([]byte(password))
		if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(strings.ToLower(digest))) == 1 {
			return true, nil
		}
	}
	return false, ErrInvalidCredentials
}

func isLegacyDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
