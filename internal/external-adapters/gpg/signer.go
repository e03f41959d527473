package gpg

import (
	"fmt"
	"io"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// Signer writes armored detached signatures with a single private key
type Signer struct {
	entity *openpgp.Entity
}

// NewSigner wraps an already decrypted entity
func NewSigner(entity *openpgp.Entity) (*Signer, error) {
	if entity == nil || entity.PrivateKey == nil {
		return nil, fmt.Errorf("entity has no private key")
	}
	if entity.PrivateKey.Encrypted {
		return nil, fmt.Errorf("private key is encrypted")
	}
	return &Signer{entity: entity}, nil
}

// LoadSigner reads the first private key from keyPath, decrypting it with
// passphrase when it is protected
func LoadSigner(keyPath, passphrase string) (*Signer, error) {
	entities, err := readKeyRingFile(keyPath)
	if err != nil {
		return nil, err
	}

	var entity *openpgp.Entity
	for _, e := range entities {
		if e.PrivateKey != nil {
			entity = e
			break
		}
	}
	if entity == nil {
		return nil, fmt.Errorf("no private key found in %s", keyPath)
	}

	if err := decryptEntity(entity, []byte(passphrase)); err != nil {
		return nil, err
	}

	return NewSigner(entity)
}

// SignDetached writes an armored detached signature of message to w
func (s *Signer) SignDetached(w io.Writer, message io.Reader) error {
	if err := openpgp.ArmoredDetachSign(w, s.entity, message, nil); err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}
	return nil
}

// Fingerprint returns the signing key's fingerprint in upper-case hex
func (s *Signer) Fingerprint() string {
	return fmt.Sprintf("%X", s.entity.PrimaryKey.Fingerprint)
}

// WritePublicKey exports the armored public key matching the signer
func (s *Signer) WritePublicKey(w io.Writer) error {
	aw, err := armor.Encode(w, openpgp.PublicKeyType, nil)
	if err != nil {
		return fmt.Errorf("failed to create armor encoder: %w", err)
	}
	if err := s.entity.Serialize(aw); err != nil {
		return fmt.Errorf("failed to serialize public key: %w", err)
	}
	return aw.Close()
}

func decryptEntity(entity *openpgp.Entity, passphrase []byte) error {
	if entity.PrivateKey.Encrypted {
		if len(passphrase) == 0 {
			return fmt.Errorf("private key is encrypted and no passphrase was given")
		}
		if err := entity.PrivateKey.Decrypt(passphrase); err != nil {
			return fmt.Errorf("failed to decrypt private key: %w", err)
		}
	}
	for _, sub := range entity.Subkeys {
		if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
			if err := sub.PrivateKey.Decrypt(passphrase); err != nil {
				return fmt.Errorf("failed to decrypt subkey: %w", err)
			}
		}
	}
	return nil
}
