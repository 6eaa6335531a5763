package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrSigningKeyAbsent = errors.New("no private key found for signing")
)

const ephemeralKeyBits = 2048

// KeyProvider defines the interface for providing cryptographic keys.
type KeyProvider interface {
	GetSigningKey() (*rsa.PrivateKey, error)
	SigningKeyID() string
	GetVerificationKey(kid string) (*rsa.PublicKey, error)
	ListVerificationKeys() map[string]*rsa.PublicKey
}

// DirKeyProvider reads PEM keys from a directory. The file name without
// extension is the kid.
type DirKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKey *rsa.PrivateKey
	signingKid string
}

// NewDirKeyProvider loads every PEM file in keyDir. preferredKid selects the
// signing key when several private keys are present.
func NewDirKeyProvider(keyDir, preferredKid string) (*DirKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read key directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	provider := &DirKeyProvider{
		keys: make(map[string]*rsa.PublicKey),
	}

	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}

		path := filepath.Join(keyDir, file.Name())
		keyData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
		}

		block, _ := pem.Decode(keyData)
		if block == nil {
			return nil, fmt.Errorf("failed to decode PEM block from %s", path)
		}
		kid := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))

		if private := parsePrivateKey(block.Bytes); private != nil {
			provider.keys[kid] = &private.PublicKey
			if provider.signingKey == nil || kid == preferredKid {
				provider.signingKey = private
				provider.signingKid = kid
			}
			continue
		}

		if public := parsePublicKey(block.Bytes); public != nil {
			provider.keys[kid] = public
			continue
		}

		return nil, fmt.Errorf("failed to parse key from file %s", path)
	}

	if provider.signingKey == nil {
		return nil, ErrSigningKeyAbsent
	}

	return provider, nil
}

func parsePrivateKey(der []byte) *rsa.PrivateKey {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey
		}
	}
	return nil
}

func parsePublicKey(der []byte) *rsa.PublicKey {
	if key, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return key
	}
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return rsaKey
		}
	}
	return nil
}

// GetSigningKey returns the private key for signing tokens.
func (p *DirKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.signingKey, nil
}

// SigningKeyID returns the kid of the signing key.
func (p *DirKeyProvider) SigningKeyID() string {
	return p.signingKid
}

// GetVerificationKey returns the public key for verifying tokens.
func (p *DirKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// ListVerificationKeys exposes all loaded public keys for JWKS publication.
func (p *DirKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	out := make(map[string]*rsa.PublicKey, len(p.keys))
	for kid, key := range p.keys {
		out[kid] = key
	}
	return out
}

// EphemeralKeyProvider holds a key generated at start-up. Tokens do not survive
// a restart.
type EphemeralKeyProvider struct {
	kid string
	key *rsa.PrivateKey
}

// NewEphemeralKeyProvider generates a fresh RSA key under kid.
func NewEphemeralKeyProvider(kid string) (*EphemeralKeyProvider, error) {
	key, err := rsa.GenerateKey(rand.Reader, ephemeralKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	if strings.TrimSpace(kid) == "" {
		kid = "ephemeral"
	}
	return &EphemeralKeyProvider{kid: kid, key: key}, nil
}

func (p *EphemeralKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) { return p.key, nil }

func (p *EphemeralKeyProvider) SigningKeyID() string { return p.kid }

func (p *EphemeralKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	if kid != p.kid {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return &p.key.PublicKey, nil
}

func (p *EphemeralKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	return map[string]*rsa.PublicKey{p.kid: &p.key.PublicKey}
}

// NewKeyProvider loads keys from keyDir. Outside production a missing or empty
// directory falls back to an ephemeral key.
func NewKeyProvider(env, keyDir, kid string) (KeyProvider, error) {
	provider, err := NewDirKeyProvider(keyDir, kid)
	if err == nil {
		return provider, nil
	}
	if env == "production" {
		return nil, err
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrSigningKeyAbsent) {
		return NewEphemeralKeyProvider(kid)
	}
	return nil, err
}
