package security

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrKeyIDMissing indicates a token or key without a kid.
	ErrKeyIDMissing = errors.New("jwt: missing key identifier")
	// ErrKeyNotRegistered indicates a kid the key ring does not know.
	ErrKeyNotRegistered = errors.New("jwt: key not registered")
)

// JWK is one RSA entry of the published key set.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWTManager is the key ring behind token signing, verification and the
// /.well-known/jwks.json document. Verification keys are learned from the
// provider on first use; the encoded key set is rebuilt only when one is added.
type JWTManager struct {
	provider KeyProvider

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
	jwks []byte
}

func NewJWTManager(provider KeyProvider) *JWTManager {
	m := &JWTManager{provider: provider, keys: make(map[string]*rsa.PublicKey)}
	if provider != nil {
		for kid, key := range provider.ListVerificationKeys() {
			_ = m.RegisterPublicKey(kid, key)
		}
	}
	return m
}

// Ready reports whether the manager can sign.
func (m *JWTManager) Ready() bool {
	return m != nil && m.provider != nil
}

// RegisterPublicKey adds a verification key, e.g. one being rotated in.
func (m *JWTManager) RegisterPublicKey(kid string, key *rsa.PublicKey) error {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return ErrKeyIDMissing
	}
	if key == nil {
		return fmt.Errorf("jwt: public key for %s is nil", kid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[kid] = key
	m.jwks = nil
	return nil
}

// SigningKey returns the active key and the kid to stamp into the header.
func (m *JWTManager) SigningKey() (string, *rsa.PrivateKey, error) {
	if !m.Ready() {
		return "", nil, fmt.Errorf("jwt: key provider not configured")
	}
	kid := m.provider.SigningKeyID()
	if kid == "" {
		return "", nil, ErrKeyIDMissing
	}
	key, err := m.provider.GetSigningKey()
	if err != nil {
		return "", nil, fmt.Errorf("jwt: get signing key: %w", err)
	}
	return kid, key, nil
}

// VerificationKey resolves a kid, asking the provider when the ring misses.
func (m *JWTManager) VerificationKey(kid string) (*rsa.PublicKey, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}

	m.mu.RLock()
	key, ok := m.keys[kid]
	m.mu.RUnlock()
	if ok {
		return key, nil
	}

	if m.provider != nil {
		if fetched, err := m.provider.GetVerificationKey(kid); err == nil {
			_ = m.RegisterPublicKey(kid, fetched)
			return fetched, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotRegistered, kid)
}

// Keyfunc plugs the ring into jwt.Parse.
func (m *JWTManager) Keyfunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("jwt: unexpected signing method %v", token.Header["alg"])
	}
	kid, _ := token.Header["kid"].(string)
	return m.VerificationKey(kid)
}

// JWKS returns the encoded key set, ordered by kid.
func (m *JWTManager) JWKS() ([]byte, error) {
	m.mu.RLock()
	cached := m.jwks
	m.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jwks != nil {
		return m.jwks, nil
	}

	kids := make([]string, 0, len(m.keys))
	for kid := range m.keys {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	doc := struct {
		Keys []JWK `json:"keys"`
	}{Keys: make([]JWK, 0, len(kids))}
	for _, kid := range kids {
		key := m.keys[kid]
		doc.Keys = append(doc.Keys, JWK{
			Kty: "RSA",
			Use: "sig",
			Alg: jwt.SigningMethodRS256.Alg(),
			Kid: kid,
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("jwt: encode key set: %w", err)
	}
	m.jwks = encoded
	return encoded, nil
}
