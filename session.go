package resourcez

import (
	"crypto/rand"
	"encoding/hex"
	mrand "math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Session identifies one usage episode. Immutable; a new session is always a
// new value.
type Session struct {
	id string
}

// IDGenerator produces session ids.
type IDGenerator func() string

// NewSession creates a session with a fresh id from gen.
// A nil gen uses RandomID.
func NewSession(gen IDGenerator) Session {
	if gen == nil {
		gen = RandomID
	}
	return Session{id: gen()}
}

// RestoreSession wraps an id loaded from storage.
func RestoreSession(id string) Session {
	return Session{id: id}
}

// ID returns the session id.
func (s Session) ID() string {
	return s.id
}

// IsZero reports whether s carries no id.
func (s Session) IsZero() bool {
	return s.id == ""
}

// Attributes returns the single attribute this session contributes for name.
func (s Session) Attributes(name string) map[string]any {
	return map[string]any{SessionKey(name): s.id}
}

// Resource returns Attributes as a Resource, ready to merge.
func (s Session) Resource(name string) *Resource {
	return &Resource{attrs: s.Attributes(name)}
}

// SessionKey returns the attribute and cookie key for a session name.
func SessionKey(name string) string {
	return "session." + name + ".id"
}

// RandomID returns 16 random bytes, hex encoded.
func RandomID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fall back to a time-derived id if crypto/rand fails.
		return hex.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return hex.EncodeToString(b)
}

// UUIDGenerator returns a random (version 4) UUID string.
func UUIDGenerator() string {
	return uuid.NewString()
}

// LegacyID returns an integer in [1,100]. Collisions are frequent; use only
// where ids must stay in the legacy id space.
func LegacyID() string {
	return strconv.Itoa(mrand.IntN(100) + 1)
}

// validSessionID reports whether id can be stored as a cookie value and
// restored verbatim: at most 256 bytes, each an RFC 6265 cookie-octet
// (printable ASCII except space, double quote, comma, semicolon and backslash).
func validSessionID(id string) bool {
	if id == "" || len(id) > 256 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c <= ' ' || c >= 0x7f || c == '"' || c == ',' || c == ';' || c == '\\' {
			return false
		}
	}
	return true
}
