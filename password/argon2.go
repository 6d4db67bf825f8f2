package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	maxPassBytes          = 1024
	algorithmID           = "argon2id"
)

var (
	ErrEmptyPassword   = errors.New("password must not be empty")
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	ErrMalformedHash   = errors.New("malformed password hash")
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns interactive-login parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// MinimumConfig returns the cheapest accepted parameters. Meant for tests
// and load drivers, not for stored credentials.
func MinimumConfig() Config {
	return Config{
		Memory:      minMemoryKB,
		Time:        minTimeCost,
		Parallelism: minParallelism,
		SaltLength:  minSaltLength,
		KeyLength:   minKeyLength,
	}
}

// Hasher hashes and verifies passwords. It is safe for concurrent use.
type Hasher struct {
	config Config
}

// encoded is one PHC string:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
type encoded struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func NewHasher(cfg Config) (*Hasher, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Hasher{config: cfg}, nil
}

// Hash returns the PHC encoding of password under a fresh random salt.
// Strength policy is the caller's concern; only empty and oversized inputs
// are rejected.
func (h *Hasher) Hash(password string) (string, error) {
	if err := checkInput(password); err != nil {
		return "", err
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	e := encoded{
		memory:      h.config.Memory,
		time:        h.config.Time,
		parallelism: h.config.Parallelism,
		salt:        salt,
	}
	e.hash = e.derive(password, h.config.KeyLength)
	return e.String(), nil
}

// Verify reports whether password matches encodedHash. A malformed hash is
// an error, a mismatch is not.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	if len(password) > maxPassBytes {
		return false, ErrPasswordTooLong
	}
	e, err := parse(encodedHash)
	if err != nil {
		return false, err
	}
	computed := e.derive(password, uint32(len(e.hash)))
	return subtle.ConstantTimeCompare(computed, e.hash) == 1, nil
}

// NeedsRehash reports whether encodedHash was produced with weaker
// parameters than h.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	e, err := parse(encodedHash)
	if err != nil {
		return false, err
	}
	return h.config.Memory > e.memory ||
		h.config.Time > e.time ||
		h.config.Parallelism > e.parallelism ||
		h.config.KeyLength != uint32(len(e.hash)), nil
}

func (e encoded) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), e.salt, e.time, e.memory, e.parallelism, keyLen)
}

func (e encoded) String() string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		e.memory,
		e.time,
		e.parallelism,
		base64.RawStdEncoding.EncodeToString(e.salt),
		base64.RawStdEncoding.EncodeToString(e.hash),
	)
}

func parse(s string) (encoded, error) {
	var e encoded
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return e, ErrMalformedHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return e, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, parts[2])
	}
	if err := e.parseParams(parts[3]); err != nil {
		return e, err
	}

	var err error
	if e.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(e.salt) < int(minSaltLength) {
		return e, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if e.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(e.hash) < int(minKeyLength) {
		return e, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}
	return e, nil
}

func (e *encoded) parseParams(part string) error {
	var seen int
	for _, pair := range strings.Split(part, ",") {
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			return ErrMalformedHash
		}
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: parameter %s", ErrMalformedHash, key)
		}
		switch key {
		case "m":
			if uint32(n) < minMemoryKB {
				return fmt.Errorf("%w: memory below minimum", ErrMalformedHash)
			}
			e.memory = uint32(n)
		case "t":
			if uint32(n) < minTimeCost {
				return fmt.Errorf("%w: time below minimum", ErrMalformedHash)
			}
			e.time = uint32(n)
		case "p":
			if n < uint64(minParallelism) || n > 255 {
				return fmt.Errorf("%w: parallelism out of range", ErrMalformedHash)
			}
			e.parallelism = uint8(n)
		default:
			return fmt.Errorf("%w: unknown parameter %s", ErrMalformedHash, key)
		}
		seen++
	}
	if seen != 3 || e.memory == 0 || e.time == 0 || e.parallelism == 0 {
		return fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}
	return nil
}

func checkInput(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if len(password) > maxPassBytes {
		return ErrPasswordTooLong
	}
	return nil
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Memory < minMemoryKB:
		return errors.New("password memory must be >= 8192 KiB")
	case cfg.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return errors.New("password key length must be >= 16")
	}
	return nil
}
