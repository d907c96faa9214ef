package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword derives a salted one-way hash from a plaintext password.
// The adaptive cost makes hashing intentionally slow.
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword reports whether the plaintext password matches the hash.
// A mismatch is never an error, only false.
func CheckPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
