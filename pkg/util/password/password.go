package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"

	"github.com/Alijeyrad/consultorio_backend/config"
)

var (
	ErrInvalidHash         = errors.New("invalid password hash format")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
	ErrMismatch            = errors.New("password does not match")
	ErrTooShort            = errors.New("password too short")
)

// DefaultMinLength is the shortest secret accepted when none is configured.
const DefaultMinLength = 6

// Params defines the Argon2id parameters.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follows the OWASP argon2id recommendation.
func DefaultParams() Params {
	return Params{Memory: 64 * 1024, Iterations: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

// Hasher hashes and verifies secrets with a fixed parameter set.
type Hasher struct {
	params    Params
	minLength int
}

func NewHasher(p Params, minLength int) *Hasher {
	d := DefaultParams()
	if p.Memory == 0 {
		p.Memory = d.Memory
	}
	if p.Iterations == 0 {
		p.Iterations = d.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = d.Parallelism
	}
	if p.SaltLength == 0 {
		p.SaltLength = d.SaltLength
	}
	if p.KeyLength == 0 {
		p.KeyLength = d.KeyLength
	}
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return &Hasher{params: p, minLength: minLength}
}

// FromConfig builds a Hasher from the password and authentication sections.
// Low-memory mode caps memory at 32 MiB and adds an iteration.
func FromConfig(pc config.PasswordConfig, ac config.AuthenticationConfig) *Hasher {
	p := Params{
		Memory:      pc.MemoryKiB,
		Iterations:  pc.Iterations,
		Parallelism: pc.Parallelism,
		SaltLength:  pc.SaltLength,
		KeyLength:   pc.KeyLength,
	}
	if pc.LowMemoryMode {
		if p.Memory == 0 || p.Memory > 32*1024 {
			p.Memory = 32 * 1024
		}
		if p.Iterations == 0 {
			p.Iterations = DefaultParams().Iterations
		}
		p.Iterations++
	}
	return NewHasher(p, ac.MinPasswordLength)
}

func (h *Hasher) MinLength() int { return h.minLength }

// CheckPolicy counts characters, not bytes.
func (h *Hasher) CheckPolicy(secret string) error {
	if utf8.RuneCountInString(secret) < h.minLength {
		return fmt.Errorf("%w: minimum %d characters", ErrTooShort, h.minLength)
	}
	return nil
}

// Hash returns a PHC string: $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
func (h *Hasher) Hash(secret string) (string, error) {
	p := h.params
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify returns nil on match, ErrMismatch otherwise. The parameters
// encoded in the hash win over the Hasher's own.
func (h *Hasher) Verify(encoded, secret string) error {
	p, salt, want, err := decodeHash(encoded)
	if err != nil {
		return err
	}
	got := argon2.IDKey([]byte(secret), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	if subtle.ConstantTimeCompare(want, got) != 1 {
		return ErrMismatch
	}
	return nil
}

// NeedsRehash reports whether encoded was produced with other parameters.
func (h *Hasher) NeedsRehash(encoded string) bool {
	p, _, _, err := decodeHash(encoded)
	if err != nil {
		return true
	}
	return p.Memory != h.params.Memory ||
		p.Iterations != h.params.Iterations ||
		p.Parallelism != h.params.Parallelism ||
		p.KeyLength != h.params.KeyLength
}

// Generate returns a random URL-safe secret of the given length.
func Generate(length int) string {
	if length <= 0 {
		length = 16
	}
	b := make([]byte, (length*6+7)/8)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Errorf("failed to generate random password: %w", err))
	}
	encoded := base64.RawURLEncoding.EncodeToString(b)
	if len(encoded) > length {
		return encoded[:length]
	}
	return encoded
}

func decodeHash(encoded string) (Params, []byte, []byte, error) {
	var p Params
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return p, nil, nil, ErrIncompatibleVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	p.SaltLength = uint32(len(salt))

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}
