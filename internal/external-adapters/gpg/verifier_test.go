package gpg

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// newTestKeys generates a key pair and returns it armored
func newTestKeys(t *testing.T) (public, private []byte) {
	t.Helper()
	entity, err := openpgp.NewEntity("Governance Board", "test", "board@example.com",
		&packet.Config{Algorithm: packet.PubKeyAlgoEdDSA})
	if err != nil {
		t.Fatalf("NewEntity() error = %v", err)
	}

	var pub bytes.Buffer
	w, err := armor.Encode(&pub, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var priv bytes.Buffer
	w, err = armor.Encode(&priv, openpgp.PrivateKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := entity.SerializePrivate(w, nil); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return pub.Bytes(), priv.Bytes()
}

func TestSignAndVerify_RoundTrip(t *testing.T) {
	public, private := newTestKeys(t)
	document := []byte(`{"bomFormat":"CycloneDX","specVersion":"1.4"}`)

	signer, err := NewSigner(bytes.NewReader(private), nil)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	var sig bytes.Buffer
	if err := signer.Sign(&sig, bytes.NewReader(document)); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !strings.HasPrefix(sig.String(), armoredSignaturePrefix) {
		t.Errorf("signature is not armored: %q", sig.String())
	}

	v := NewVerifier()
	if err := v.ImportKeys(bytes.NewReader(public)); err != nil {
		t.Fatalf("ImportKeys() error = %v", err)
	}
	fingerprint, err := v.Verify(bytes.NewReader(document), bytes.NewReader(sig.Bytes()))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if fingerprint != signer.Fingerprint() {
		t.Errorf("signer fingerprint = %s, want %s", fingerprint, signer.Fingerprint())
	}

	tampered := append(bytes.Clone(document), ' ')
	if _, err := v.Verify(bytes.NewReader(tampered), bytes.NewReader(sig.Bytes())); err == nil {
		t.Error("Verify() accepted a modified document")
	}
}

func TestVerifier_VerifySignatureFromFile(t *testing.T) {
	public, private := newTestKeys(t)
	dir := t.TempDir()
	bomPath := filepath.Join(dir, "bom.json")
	sigPath := bomPath + ".asc"
	keyPath := filepath.Join(dir, "board.asc")

	if err := os.WriteFile(bomPath, []byte("{}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, private, 0600); err != nil {
		t.Fatal(err)
	}
	signer, err := NewSignerFromFile(keyPath, nil)
	if err != nil {
		t.Fatalf("NewSignerFromFile() error = %v", err)
	}
	var sig bytes.Buffer
	if err := signer.Sign(&sig, strings.NewReader("{}\n")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(sigPath, sig.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}

	v := NewVerifier()
	if err := v.ImportKeys(bytes.NewReader(public)); err != nil {
		t.Fatal(err)
	}
	if _, err := v.VerifySignatureFromFile(bomPath, sigPath); err != nil {
		t.Errorf("VerifySignatureFromFile() error = %v", err)
	}
}

// Test importing key from nonexistent file
func TestVerifier_ImportKeyFromFile_NonexistentFile(t *testing.T) {
	v := NewVerifier()

	err := v.ImportKeyFromFile("/nonexistent/key.asc")

	if err == nil {
		t.Fatal("Expected error for nonexistent file, got nil")
	}

	if !strings.Contains(err.Error(), "failed to open key file") {
		t.Errorf("Expected 'failed to open key file' error, got: %v", err)
	}
}

// Test importing key from file with no keys
func TestVerifier_ImportKeyFromFile_EmptyFile(t *testing.T) {
	v := NewVerifier()
	tmpDir := t.TempDir()

	keyPath := filepath.Join(tmpDir, "empty.asc")
	if err := os.WriteFile(keyPath, []byte("not a gpg key"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := v.ImportKeyFromFile(keyPath); err == nil {
		t.Fatal("Expected error for invalid key file, got nil")
	}
}

// Test keyring size and clear operations
func TestVerifier_KeyringOperations(t *testing.T) {
	public, _ := newTestKeys(t)
	v := NewVerifier()

	if size := v.GetKeyringSize(); size != 0 {
		t.Errorf("Initial keyring size = %d, want 0", size)
	}
	if err := v.ImportKeys(bytes.NewReader(public)); err != nil {
		t.Fatal(err)
	}
	if size := v.GetKeyringSize(); size != 1 {
		t.Errorf("Keyring size after import = %d, want 1", size)
	}

	v.ClearKeyring()
	if size := v.GetKeyringSize(); size != 0 {
		t.Errorf("Keyring size after clear = %d, want 0", size)
	}
}

func TestVerifier_Verify_NoKeysImported(t *testing.T) {
	v := NewVerifier()
	_, err := v.Verify(strings.NewReader("data"), strings.NewReader("sig"))
	if err == nil || !strings.Contains(err.Error(), "no GPG keys imported") {
		t.Errorf("Expected 'no GPG keys imported' error, got: %v", err)
	}
}

func TestNewSigner_PublicKeyOnly(t *testing.T) {
	public, _ := newTestKeys(t)
	if _, err := NewSigner(bytes.NewReader(public), nil); err == nil {
		t.Error("NewSigner() accepted a public key")
	}
}
