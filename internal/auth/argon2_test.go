package auth

import (
	"strings"
	"testing"
)

// cheapParams keeps hashing fast in tests that do not check the defaults.
var cheapParams = Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func TestHashSecret_Format(t *testing.T) {
	t.Parallel()

	hash, err := HashSecret("qb_live_abc123_secretsecretsecretsecret1234")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("Hash should have 6 parts, got: %d", len(parts))
	}
	if parts[1] != "argon2id" {
		t.Errorf("Expected argon2id algorithm, got: %s", parts[1])
	}
	if parts[2] != "v=19" {
		t.Errorf("Expected v=19, got: %s", parts[2])
	}
	if parts[3] != "m=65536,t=3,p=4" {
		t.Errorf("Expected m=65536,t=3,p=4, got: %s", parts[3])
	}
}

func TestParams_HashUniqueness(t *testing.T) {
	t.Parallel()

	secret := "482913"

	hash1, err := cheapParams.Hash(secret)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	hash2, err := cheapParams.Hash(secret)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if hash1 == hash2 {
		t.Error("Same secret should produce different hashes due to random salt")
	}

	match1, _ := VerifySecret(secret, hash1)
	match2, _ := VerifySecret(secret, hash2)
	if !match1 || !match2 {
		t.Error("Both hashes should verify correctly")
	}
}

func TestVerifySecret(t *testing.T) {
	t.Parallel()

	hash, err := cheapParams.Hash("1234")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	tests := []struct {
		name   string
		secret string
		want   bool
	}{
		{"correct", "1234", true},
		{"wrong", "4321", false},
		{"prefix", "123", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			match, err := VerifySecret(tt.secret, hash)
			if err != nil {
				t.Fatalf("VerifySecret should not return error: %v", err)
			}
			if match != tt.want {
				t.Errorf("VerifySecret(%q) = %v, want %v", tt.secret, match, tt.want)
			}
		})
	}
}

func TestVerifySecret_InvalidHashFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		hash    string
		wantErr error
	}{
		{"empty", "", ErrInvalidHash},
		{"wrong format", "not-a-hash", ErrInvalidHash},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=4$salt$hash", ErrInvalidHash},
		{"missing parts", "$argon2id$v=19$m=65536", ErrInvalidHash},
		{"bad params", "$argon2id$v=19$memory$c2FsdA$aGFzaA", ErrInvalidHash},
		{"bad salt", "$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA", ErrInvalidHash},
		{"wrong version", "$argon2id$v=18$m=65536,t=3,p=4$c29tZXNhbHRoZXJl$c29tZWhhc2hoZXJl", ErrIncompatibleVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			match, err := VerifySecret("secret", tt.hash)
			if err != tt.wantErr {
				t.Errorf("VerifySecret with %q error = %v, want %v", tt.name, err, tt.wantErr)
			}
			if match {
				t.Error("Invalid hash should never match")
			}
		})
	}
}

func TestNeedsRehash(t *testing.T) {
	t.Parallel()

	hash, err := cheapParams.Hash("1234")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if NeedsRehash(hash, cheapParams) {
		t.Error("hash with matching params should not need rehash")
	}
	if !NeedsRehash(hash, DefaultParams) {
		t.Error("hash with weaker params should need rehash")
	}
	if !NeedsRehash("garbage", DefaultParams) {
		t.Error("invalid hash should need rehash")
	}
}

func TestQuickHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"api key", "qb_live_abc123_secretsecretsecretsecret1234"},
		{"short string", "abc"},
		{"empty string", ""},
		{"long string", strings.Repeat("x", 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hash := QuickHash(tt.input)
			if len(hash) != 32 {
				t.Errorf("Hash should be 32 chars, got: %d", len(hash))
			}
			if hash != QuickHash(tt.input) {
				t.Error("Same input should produce same hash")
			}
		})
	}

	if QuickHash("input-one") == QuickHash("input-two") {
		t.Error("Different input should produce different hash")
	}
}
