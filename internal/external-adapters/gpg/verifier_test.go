package gpg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVerifier_ImportKeyFromFile_NonexistentFile(t *testing.T) {
	v := NewVerifier()

	err := v.ImportKeyFromFile("/nonexistent/key.asc")

	if err == nil || !strings.Contains(err.Error(), "failed to open key file") {
		t.Errorf("Expected 'failed to open key file' error, got: %v", err)
	}
}

func TestVerifier_ImportKeyFromFile_Invalid(t *testing.T) {
	v := NewVerifier()
	keyPath := filepath.Join(t.TempDir(), "invalid.asc")
	if err := os.WriteFile(keyPath, []byte("not a gpg key"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := v.ImportKeyFromFile(keyPath); err == nil {
		t.Fatal("Expected error for invalid key file, got nil")
	}
	if v.GetKeyringSize() != 0 {
		t.Errorf("keyring size = %d, want 0", v.GetKeyringSize())
	}
}

func TestVerifier_VerifySignatureFromFile_NoKeys(t *testing.T) {
	v := NewVerifier()

	err := v.VerifySignatureFromFile("/tmp/data", "/tmp/data.asc")

	if err == nil || !strings.Contains(err.Error(), "no public keys imported") {
		t.Errorf("Expected 'no public keys imported' error, got: %v", err)
	}
}

func TestVerifier_VerifySignatureFromFile_MissingFiles(t *testing.T) {
	signer, err := NewSigner(newTestEntity(t))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "public.asc")
	f, err := os.Create(pubPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := signer.WritePublicKey(f); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	v := NewVerifier()
	if err := v.ImportKeyFromFile(pubPath); err != nil {
		t.Fatalf("ImportKeyFromFile() error = %v", err)
	}

	err = v.VerifySignatureFromFile(filepath.Join(dir, "data"), filepath.Join(dir, "missing.asc"))
	if err == nil || !strings.Contains(err.Error(), "failed to open signature file") {
		t.Errorf("Expected 'failed to open signature file' error, got: %v", err)
	}
}
