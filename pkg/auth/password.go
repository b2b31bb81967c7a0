package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"

	DefaultBcryptCost = 12

	// Argon2MaxMemory caps m so a corrupt stored hash cannot exhaust memory (4 GiB)
	Argon2MaxMemory     = 4 * 1024 * 1024
	Argon2MaxIterations = 64
)

var (
	// ErrMismatchedPassword is returned when a password does not match its hash
	ErrMismatchedPassword = errors.New("password does not match")
	// ErrUnknownHashFormat is returned for stored hashes no supported algorithm produced
	ErrUnknownHashFormat = errors.New("unknown password hash format")
)

// Argon2Params are the tunable argon2id parameters.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Validate checks that the parameters can be fed to argon2.IDKey
func (p Argon2Params) Validate() error {
	if p.Parallelism < 1 {
		return fmt.Errorf("argon2 parallelism must be at least 1")
	}
	if p.Iterations < 1 || p.Iterations > Argon2MaxIterations {
		return fmt.Errorf("argon2 iterations must be between 1 and %d (got %d)", Argon2MaxIterations, p.Iterations)
	}
	if p.Memory < 8*uint32(p.Parallelism) || p.Memory > Argon2MaxMemory {
		return fmt.Errorf("argon2 memory must be between %d and %d KiB (got %d)", 8*uint32(p.Parallelism), Argon2MaxMemory, p.Memory)
	}
	if p.SaltLength < 1 || p.KeyLength < 1 {
		return fmt.Errorf("argon2 salt and key lengths must be positive")
	}
	return nil
}

// DefaultArgon2Params follows the OWASP argon2id baseline (64 MiB, t=3, p=2)
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// PasswordPolicy hashes new passwords with the configured algorithm and verifies
// hashes produced by any supported algorithm, so that a policy change can be rolled
// out through rehash-on-login.
type PasswordPolicy struct {
	Algorithm  string
	BcryptCost int
	Argon2     Argon2Params
}

// NewPasswordPolicy validates the algorithm identifier and fills in defaults.
func NewPasswordPolicy(algorithm string, bcryptCost int, argon Argon2Params) (*PasswordPolicy, error) {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm == "" {
		algorithm = AlgorithmBcrypt
	}
	if algorithm != AlgorithmBcrypt && algorithm != AlgorithmArgon2id {
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}

	if bcryptCost == 0 {
		bcryptCost = DefaultBcryptCost
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d (got %d)", bcrypt.MinCost, bcrypt.MaxCost, bcryptCost)
	}

	if argon == (Argon2Params{}) {
		argon = DefaultArgon2Params
	}
	if err := argon.Validate(); err != nil {
		return nil, err
	}
	if argon.SaltLength < 8 || argon.KeyLength < 16 {
		return nil, fmt.Errorf("argon2 salt must be at least 8 bytes and key at least 16 bytes")
	}

	return &PasswordPolicy{
		Algorithm:  algorithm,
		BcryptCost: bcryptCost,
		Argon2:     argon,
	}, nil
}

// Hash produces a new hash of password under the current policy
func (p *PasswordPolicy) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	if p.Algorithm == AlgorithmArgon2id {
		return hashArgon2id(password, p.Argon2)
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), p.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares password against a stored hash of any supported algorithm.
// Returns ErrMismatchedPassword when the password is wrong.
func (p *PasswordPolicy) Verify(hash, password string) error {
	switch {
	case isBcryptHash(hash):
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedPassword
		}
		return err
	case strings.HasPrefix(hash, "$argon2id$"):
		return verifyArgon2id(hash, password)
	default:
		return ErrUnknownHashFormat
	}
}

// NeedsRehash reports whether hash was produced under weaker or different
// parameters than the current policy.
func (p *PasswordPolicy) NeedsRehash(hash string) bool {
	if p.Algorithm == AlgorithmBcrypt {
		if !isBcryptHash(hash) {
			return true
		}
		cost, err := bcrypt.Cost([]byte(hash))
		if err != nil {
			return true
		}
		return cost < p.BcryptCost
	}

	params, _, _, err := decodeArgon2id(hash)
	if err != nil {
		return true
	}
	return params.Memory != p.Argon2.Memory ||
		params.Iterations != p.Argon2.Iterations ||
		params.Parallelism != p.Argon2.Parallelism ||
		params.KeyLength != p.Argon2.KeyLength
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

// hashArgon2id encodes as $argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
func hashArgon2id(password string, params Argon2Params) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyArgon2id(hash, password string) error {
	params, salt, key, err := decodeArgon2id(hash)
	if err != nil {
		return err
	}

	other := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	if subtle.ConstantTimeCompare(key, other) != 1 {
		return ErrMismatchedPassword
	}
	return nil
}

func decodeArgon2id(hash string) (Argon2Params, []byte, []byte, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != AlgorithmArgon2id {
		return Argon2Params{}, nil, nil, ErrUnknownHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Argon2Params{}, nil, nil, ErrUnknownHashFormat
	}
	if version != argon2.Version {
		return Argon2Params{}, nil, nil, fmt.Errorf("incompatible argon2 version %d", version)
	}

	var params Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return Argon2Params{}, nil, nil, ErrUnknownHashFormat
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, ErrUnknownHashFormat
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Argon2Params{}, nil, nil, ErrUnknownHashFormat
	}

	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	if params.Validate() != nil {
		return Argon2Params{}, nil, nil, ErrUnknownHashFormat
	}
	return params, salt, key, nil
}

// GenerateRandomHex returns n random bytes hex encoded
func GenerateRandomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateRandomToken returns n random bytes, URL-safe base64 encoded
func GenerateRandomToken(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
