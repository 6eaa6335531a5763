package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hashes are stored in the PHC string format:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>
const phcPrefix = "$argon2id$"

var (
	// ErrMalformedHash is returned for stored values that are not argon2id PHC strings.
	ErrMalformedHash = errors.New("argon2: malformed hash")
	errWeakParams    = errors.New("argon2: parameters below minimum")
)

// Argon2Config holds the cost parameters for new hashes.
type Argon2Config struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config is 64 MiB, three passes, four lanes.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{Memory: 64 * 1024, Iterations: 3, Parallelism: 4, SaltLength: 16, KeyLength: 32}
}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < 8*1024:
		return fmt.Errorf("%w: memory %d KiB < 8192", errWeakParams, c.Memory)
	case c.Iterations < 1:
		return fmt.Errorf("%w: iterations must be positive", errWeakParams)
	case c.Parallelism < 1:
		return fmt.Errorf("%w: parallelism must be positive", errWeakParams)
	case c.SaltLength < 8:
		return fmt.Errorf("%w: salt %d bytes < 8", errWeakParams, c.SaltLength)
	case c.KeyLength < 16:
		return fmt.Errorf("%w: key %d bytes < 16", errWeakParams, c.KeyLength)
	}
	return nil
}

func (c Argon2Config) params() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", c.Memory, c.Iterations, c.Parallelism)
}

// Argon2Hasher implements port.PasswordHasher with argon2id.
type Argon2Hasher struct {
	cfg Argon2Config
}

func NewArgon2Hasher(cfg Argon2Config) (*Argon2Hasher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2Hasher{cfg: cfg}, nil
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2: read salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.cfg.Iterations, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)

	var b strings.Builder
	b.WriteString(phcPrefix)
	fmt.Fprintf(&b, "v=%d$%s$", argon2.Version, h.cfg.params())
	b.WriteString(base64.RawStdEncoding.EncodeToString(salt))
	b.WriteByte('$')
	b.WriteString(base64.RawStdEncoding.EncodeToString(key))
	return b.String(), nil
}

// Verify recomputes the key with the parameters stored in encoded, so hashes
// made under an older configuration still verify.
func (h *Argon2Hasher) Verify(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}
	stored, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), stored.salt, stored.cfg.Iterations, stored.cfg.Memory, stored.cfg.Parallelism, uint32(len(stored.key)))
	return subtle.ConstantTimeCompare(key, stored.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with parameters other than
// the hasher's current ones.
func (h *Argon2Hasher) NeedsRehash(encoded string) bool {
	stored, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	return stored.cfg.params() != h.cfg.params() ||
		uint32(len(stored.salt)) != h.cfg.SaltLength ||
		uint32(len(stored.key)) != h.cfg.KeyLength
}

type phcHash struct {
	cfg  Argon2Config
	salt []byte
	key  []byte
}

func parsePHC(encoded string) (phcHash, error) {
	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return phcHash{}, ErrMalformedHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return phcHash{}, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil || version != argon2.Version {
		return phcHash{}, fmt.Errorf("%w: version %q", ErrMalformedHash, fields[0])
	}

	var out phcHash
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &out.cfg.Memory, &out.cfg.Iterations, &out.cfg.Parallelism); err != nil {
		return phcHash{}, fmt.Errorf("%w: params %q", ErrMalformedHash, fields[1])
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(fields[2]); err != nil {
		return phcHash{}, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(fields[3]); err != nil {
		return phcHash{}, fmt.Errorf("%w: key: %v", ErrMalformedHash, err)
	}
	out.cfg.SaltLength = uint32(len(out.salt))
	out.cfg.KeyLength = uint32(len(out.key))
	if err := out.cfg.validate(); err != nil {
		return phcHash{}, err
	}
	return out, nil
}
