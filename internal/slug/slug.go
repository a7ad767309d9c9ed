package slug

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	DefaultLength = 6
	// MaxLength caps user chosen slugs.
	MaxLength = 64
)

var pattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Reserved lists the top level path segments the server routes itself.
// A link with one of these slugs could never be resolved.
var Reserved = []string{"api", "health", "login", "logout"}

var reserved = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Reserved))
	for _, s := range Reserved {
		m[s] = struct{}{}
	}
	return m
}()

// Valid reports whether s can be used as a custom slug.
func Valid(s string) bool {
	return len(s) <= MaxLength && pattern.MatchString(s)
}

// IsReserved reports whether s collides with a server route.
func IsReserved(s string) bool {
	_, ok := reserved[s]
	return ok
}

// Generator produces random alphanumeric slugs of a fixed length.
type Generator struct {
	length int
}

func NewGenerator(length int) *Generator {
	if length < 1 {
		length = DefaultLength
	}
	return &Generator{length: length}
}

// Generate uses crypto/rand so slugs are not predictable from earlier ones.
func (g *Generator) Generate() string {
	b := make([]byte, g.length)
	max := big.NewInt(int64(len(alphabet)))

	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = alphabet[n.Int64()]
	}

	return string(b)
}
