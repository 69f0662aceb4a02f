package password

import "testing"

func TestBcryptHasherRoundTrip(t *testing.T) {
	hasher := NewBcryptHasher(4) // min cost keeps the test fast

	hash, err := hasher.Hash("station-secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "station-secret" {
		t.Fatal("hash must not equal plaintext")
	}

	if err := hasher.Compare(hash, "station-secret"); err != nil {
		t.Fatalf("compare with correct password: %v", err)
	}
	if err := hasher.Compare(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch error for wrong password")
	}
}

func TestBcryptHasherRejectsEmptyPassword(t *testing.T) {
	hasher := NewBcryptHasher(0)
	if _, err := hasher.Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}
