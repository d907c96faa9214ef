package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "secret1" || hash == "" {
		t.Fatalf("expected a hash, got %q", hash)
	}

	if !CheckPassword("secret1", hash) {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword("secret2", hash) {
		t.Fatal("expected mismatching password to fail")
	}
	if CheckPassword("secret", hash) {
		t.Fatal("expected close-but-wrong password to fail")
	}
}

func TestCheckPasswordMalformedHash(t *testing.T) {
	if CheckPassword("secret1", "not-a-bcrypt-hash") {
		t.Fatal("expected malformed hash to fail verification")
	}
}

func TestHashPasswordSalted(t *testing.T) {
	first, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	second, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct salts to produce distinct hashes")
	}
}
