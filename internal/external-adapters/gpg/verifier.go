// Package gpg signs and verifies exported BOM documents with OpenPGP detached signatures.
package gpg

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

const armoredSignaturePrefix = "-----BEGIN PGP SIGNATURE"

// Verifier implements GPG signature verification using ProtonMail's go-crypto
// A maintained, modern fork of golang.org/x/crypto/openpgp
// This is in external-adapters to isolate the external dependency
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier creates a new GPG verifier
func NewVerifier() *Verifier {
	return &Verifier{
		keyring: make(openpgp.EntityList, 0),
	}
}

// ImportKeys reads an armored or binary keyring
func (v *Verifier) ImportKeys(r io.Reader) error {
	br := bufio.NewReader(r)
	peek, _ := br.Peek(len("-----BEGIN"))

	var (
		entities openpgp.EntityList
		err      error
	)
	if string(peek) == "-----BEGIN" {
		entities, err = openpgp.ReadArmoredKeyRing(br)
	} else {
		entities, err = openpgp.ReadKeyRing(br)
	}
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	if len(entities) == 0 {
		return fmt.Errorf("no keys found")
	}

	v.keyring = append(v.keyring, entities...)
	return nil
}

// ImportKeyFromFile imports a GPG key from a file
func (v *Verifier) ImportKeyFromFile(keyPath string) error {
	//nolint:gosec // G304: keyPath is user-provided for GPG key import
	f, err := os.Open(keyPath)
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	return v.ImportKeys(f)
}

// Verify checks a detached signature, armored or binary, over data.
// It returns the primary key fingerprint of the signer.
func (v *Verifier) Verify(data, signature io.Reader) (string, error) {
	if len(v.keyring) == 0 {
		return "", fmt.Errorf("no GPG keys imported, call ImportKeys first")
	}

	sig := bufio.NewReader(signature)
	peek, _ := sig.Peek(len(armoredSignaturePrefix))

	var (
		signer *openpgp.Entity
		err    error
	)
	if string(peek) == armoredSignaturePrefix {
		signer, err = openpgp.CheckArmoredDetachedSignature(v.keyring, data, sig, nil)
	} else {
		signer, err = openpgp.CheckDetachedSignature(v.keyring, data, sig, nil)
	}
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}
	return fmt.Sprintf("%X", signer.PrimaryKey.Fingerprint), nil
}

// VerifySignatureFromFile verifies a detached signature from a local file
func (v *Verifier) VerifySignatureFromFile(filePath, sigPath string) (string, error) {
	//nolint:gosec // G304: sigPath is user-provided for GPG verification
	sigFile, err := os.Open(sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to open signature file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer sigFile.Close()

	//nolint:gosec // G304: filePath is user-provided for GPG verification
	dataFile, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open data file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer dataFile.Close()

	return v.Verify(dataFile, sigFile)
}

// GetKeyringSize returns the number of keys in the keyring
func (v *Verifier) GetKeyringSize() int {
	return len(v.keyring)
}

// ClearKeyring clears all imported keys
func (v *Verifier) ClearKeyring() {
	v.keyring = make(openpgp.EntityList, 0)
}
