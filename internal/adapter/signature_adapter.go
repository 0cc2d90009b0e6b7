package adapter

import (
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"

	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// SignatureVerifier checks detached armored signatures over released
// artifacts against a local keyring.
type SignatureVerifier interface {
	// VerifyDetached checks that sigPath is a valid armored detached
	// signature of the file at path, made by a key in the keyring file.
	VerifyDetached(path, sigPath, keyringPath m.Path) error
}

// GPGVerifier implements SignatureVerifier with ProtonMail's go-crypto, the
// maintained fork of golang.org/x/crypto/openpgp.
type GPGVerifier struct{}

// NewGPGVerifier constructs a GPGVerifier.
func NewGPGVerifier() *GPGVerifier {
	return &GPGVerifier{}
}

// VerifyDetached checks an armored detached signature.
func (v *GPGVerifier) VerifyDetached(path, sigPath, keyringPath m.Path) error {
	keyring, err := loadKeyring(keyringPath)
	if err != nil {
		return err
	}

	// #nosec G304 - artifact path comes from the operator invocation
	data, err := os.Open(string(path))
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}

	defer func() { _ = data.Close() }()

	// #nosec G304 - signature path comes from the operator invocation
	sig, err := os.Open(string(sigPath))
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}

	defer func() { _ = sig.Close() }()

	if _, err := openpgp.CheckArmoredDetachedSignature(keyring, data, sig, nil); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}

	return nil
}

func loadKeyring(path m.Path) (openpgp.EntityList, error) {
	// #nosec G304 - keyring location is operator configuration
	f, err := os.Open(string(path))
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	defer func() { _ = f.Close() }()

	entities, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}

	if len(entities) == 0 {
		return nil, fmt.Errorf("keyring %s contains no keys", path)
	}

	return entities, nil
}
