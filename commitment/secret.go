package commitment

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const redacted = "[REDACTED]"

// Salt is the server secret mixed into voter tags. It never prints, marshals
// or logs its value.
type Salt struct {
	value string
}

var _ zerolog.LogObjectMarshaler = Salt{}

// NewSalt wraps a secret value.
func NewSalt(value string) Salt {
	return Salt{value: value}
}

// IsEmpty reports whether no secret is set.
func (s Salt) IsEmpty() bool {
	return s.value == ""
}

func (s Salt) reveal() string {
	return s.value
}

func (Salt) String() string {
	return redacted
}

func (Salt) GoString() string {
	return redacted
}

func (Salt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (Salt) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (Salt) MarshalZerologObject(e *zerolog.Event) {
	e.Str("salt", redacted)
}

// SecretStore provides the salt. Implementations may read it lazily.
type SecretStore interface {
	Salt() (Salt, error)
}

// StaticSecret is a salt known at startup, typically from configuration.
type StaticSecret struct {
	salt Salt
}

// NewStaticSecret returns a SecretStore holding value.
func NewStaticSecret(value string) *StaticSecret {
	return &StaticSecret{salt: NewSalt(value)}
}

func (s *StaticSecret) Salt() (Salt, error) {
	if s.salt.IsEmpty() {
		return Salt{}, fmt.Errorf("secret salt is not configured")
	}
	return s.salt, nil
}

// FileSecret reads the salt from a file the first time it is needed and
// keeps it. Surrounding whitespace is ignored. The salt must not change for
// the lifetime of an election, otherwise voter tags stop matching.
type FileSecret struct {
	path string

	once sync.Once
	salt Salt
	err  error
}

// NewFileSecret returns a SecretStore backed by path.
func NewFileSecret(path string) *FileSecret {
	return &FileSecret{path: path}
}

func (f *FileSecret) Salt() (Salt, error) {
	f.once.Do(func() {
		data, err := os.ReadFile(f.path)
		if err != nil {
			f.err = fmt.Errorf("read secret file: %w", err)
			return
		}
		v := strings.TrimSpace(string(data))
		if v == "" {
			f.err = fmt.Errorf("secret file %s is empty", f.path)
			return
		}
		f.salt = NewSalt(v)
	})
	return f.salt, f.err
}
