// Package password hashes user credentials with Argon2id.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Params are the Argon2id cost parameters encoded into every hash.
type Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultParams follows the OWASP baseline for interactive logins.
var DefaultParams = Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

const placeholderBytes = 24

type Hasher struct {
	params Params
}

func NewHasher(params Params) *Hasher {
	return &Hasher{params: params}
}

// Hash returns a PHC formatted Argon2id hash.
func (h *Hasher) Hash(password string) (string, error) {
	p := h.params
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the encoded hash.
func (h *Hasher) Verify(password, encoded string) bool {
	decoded, ok := decode(encoded)
	if !ok {
		return false
	}
	check := argon2.IDKey([]byte(password), decoded.salt, decoded.params.Time, decoded.params.Memory, decoded.params.Threads, uint32(len(decoded.key)))
	return subtle.ConstantTimeCompare(decoded.key, check) == 1
}

// NeedsRehash reports whether encoded was produced with weaker parameters than the hasher's.
func (h *Hasher) NeedsRehash(encoded string) bool {
	decoded, ok := decode(encoded)
	if !ok {
		return true
	}
	return decoded.params.Time < h.params.Time || decoded.params.Memory < h.params.Memory
}

// Placeholder returns a random credential for accounts that have not chosen one yet.
func Placeholder() (string, error) {
	buf := make([]byte, placeholderBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type decodedHash struct {
	params Params
	salt   []byte
	key    []byte
}

func decode(encoded string) (decodedHash, bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return decodedHash{}, false
	}

	var out decodedHash
	for _, kv := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return decodedHash{}, false
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return decodedHash{}, false
		}
		switch name {
		case "m":
			out.params.Memory = uint32(n)
		case "t":
			out.params.Time = uint32(n)
		case "p":
			if n > 255 {
				return decodedHash{}, false
			}
			out.params.Threads = uint8(n)
		default:
			return decodedHash{}, false
		}
	}
	if out.params.Memory == 0 || out.params.Time == 0 || out.params.Threads == 0 {
		return decodedHash{}, false
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return decodedHash{}, false
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(out.key) == 0 {
		return decodedHash{}, false
	}
	return out, true
}
