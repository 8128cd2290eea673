package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const argonPrefix = "$argon2id$"

// ErrInvalidHash signals a malformed Argon2id hash string.
var ErrInvalidHash = errors.New("invalid argon2id hash")

// ArgonParams are the tunables as configured. Values are clamped to sane bounds.
type ArgonParams struct {
	MemoryKB    int
	Time        int
	Parallelism int
	SaltLen     int
	KeyLen      int
}

// Bounds applied to configured parameters and to parameters read back from a stored hash.
const (
	argonMinMemoryKB, argonMaxMemoryKB = 8, 512 * 1024
	argonMinTime, argonMaxTime         = 1, 10
	argonMinThreads, argonMaxThreads   = 1, 255
	argonMinSaltLen, argonMaxSaltLen   = 8, 64
	argonMinKeyLen, argonMaxKeyLen     = 16, 64
)

// argonParams are the values embedded into each hash string.
type argonParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
	saltLen     uint32
	keyLen      uint32
}

type Argon2Hasher struct {
	params argonParams
}

func NewArgon2Hasher(p ArgonParams) *Argon2Hasher {
	return &Argon2Hasher{params: argonParams{
		memory:      clampUint32(orDefault(p.MemoryKB, 64*1024), argonMinMemoryKB, argonMaxMemoryKB),
		time:        clampUint32(orDefault(p.Time, 1), argonMinTime, argonMaxTime),
		parallelism: uint8(clampInt(orDefault(p.Parallelism, 2), argonMinThreads, argonMaxThreads)),
		saltLen:     clampUint32(orDefault(p.SaltLen, 16), argonMinSaltLen, argonMaxSaltLen),
		keyLen:      clampUint32(orDefault(p.KeyLen, 32), argonMinKeyLen, argonMaxKeyLen),
	}}
}

func (h *Argon2Hasher) Recognizes(hash string) bool {
	return strings.HasPrefix(hash, argonPrefix)
}

func (h *Argon2Hasher) Hash(ctx context.Context, password string) (string, error) {
	return runCtx(ctx, func() (string, error) {
		p := h.params
		salt := make([]byte, p.saltLen)
		if _, err := rand.Read(salt); err != nil {
			return "", domain.ErrHashFailed(fmt.Errorf("generate salt: %w", err))
		}

		key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.parallelism, p.keyLen)

		return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
			argonPrefix, argon2.Version, p.memory, p.time, p.parallelism,
			base64.RawStdEncoding.EncodeToString(salt),
			base64.RawStdEncoding.EncodeToString(key),
		), nil
	})
}

// Verify returns (false, nil) on mismatch and ErrInvalidHash for malformed input.
func (h *Argon2Hasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	p, salt, want, err := decodeArgonHash(encoded)
	if err != nil {
		return false, err
	}
	return runCtx(ctx, func() (bool, error) {
		got := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.parallelism, p.keyLen)
		return subtle.ConstantTimeCompare(want, got) == 1, nil
	})
}

func decodeArgonHash(encoded string) (argonParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return argonParams{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonParams{}, nil, nil, ErrInvalidHash
	}

	var p argonParams
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return argonParams{}, nil, nil, ErrInvalidHash
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return argonParams{}, nil, nil, ErrInvalidHash
			}
			p.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return argonParams{}, nil, nil, ErrInvalidHash
			}
			p.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil {
				return argonParams{}, nil, nil, ErrInvalidHash
			}
			p.parallelism = uint8(n)
		}
	}
	// A stored hash must not be able to demand more work than we would ever configure.
	if !inRange(int(p.memory), argonMinMemoryKB, argonMaxMemoryKB) ||
		!inRange(int(p.time), argonMinTime, argonMaxTime) ||
		!inRange(int(p.parallelism), argonMinThreads, argonMaxThreads) {
		return argonParams{}, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || !inRange(len(key), argonMinKeyLen, argonMaxKeyLen) {
		return argonParams{}, nil, nil, ErrInvalidHash
	}

	p.saltLen = uint32(len(salt))
	p.keyLen = uint32(len(key))
	return p, salt, key, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func inRange(value, min, max int) bool {
	return value >= min && value <= max
}

func clampUint32(value, min, max int) uint32 {
	return uint32(clampInt(value, min, max))
}
