package gpg

import (
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// Signer produces armored detached signatures with one private key
type Signer struct {
	entity *openpgp.Entity
}

// NewSigner reads an armored private key, decrypting it with passphrase when protected
func NewSigner(r io.Reader, passphrase []byte) (*Signer, error) {
	entities, err := openpgp.ReadArmoredKeyRing(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	for _, e := range entities {
		if e.PrivateKey == nil {
			continue
		}
		if e.PrivateKey.Encrypted {
			if len(passphrase) == 0 {
				return nil, fmt.Errorf("private key is passphrase protected")
			}
			if err := e.PrivateKey.Decrypt(passphrase); err != nil {
				return nil, fmt.Errorf("failed to decrypt private key: %w", err)
			}
			for _, sub := range e.Subkeys {
				if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
					if err := sub.PrivateKey.Decrypt(passphrase); err != nil {
						return nil, fmt.Errorf("failed to decrypt subkey: %w", err)
					}
				}
			}
		}
		return &Signer{entity: e}, nil
	}
	return nil, fmt.Errorf("no private key found")
}

// NewSignerFromFile reads the private key at keyPath
func NewSignerFromFile(keyPath string, passphrase []byte) (*Signer, error) {
	//nolint:gosec // G304: keyPath is user-provided for signing
	f, err := os.Open(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	return NewSigner(f, passphrase)
}

// Fingerprint returns the signing key's primary fingerprint
func (s *Signer) Fingerprint() string {
	return fmt.Sprintf("%X", s.entity.PrimaryKey.Fingerprint)
}

// Sign writes an armored detached signature of data to w
func (s *Signer) Sign(w io.Writer, data io.Reader) error {
	if err := openpgp.ArmoredDetachSign(w, s.entity, data, nil); err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}
	return nil
}
