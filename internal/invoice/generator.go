// Package invoice allocates human-readable invoice numbers of the form
// INV-YYYYMMDD-XXXXXX. The date is always the UTC calendar date.
package invoice

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"time"
)

const (
	Prefix     = "INV"
	SuffixLen  = 6
	dateLayout = "20060102"
	alphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var numberPattern = regexp.MustCompile(`^INV-\d{8}-[A-Z0-9]{6}$`)

// Generator produces invoice numbers. Uniqueness is enforced by the
// ux_transactions_no_invoice constraint; callers retry on collision.
type Generator struct {
	now    func() time.Time
	random io.Reader
}

type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithRandom overrides the entropy source.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.random = r
		}
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{now: time.Now, random: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a fresh invoice number.
func (g *Generator) Generate() (string, error) {
	suffix := make([]byte, SuffixLen)
	max := big.NewInt(int64(len(alphabet)))
	for i := range suffix {
		n, err := rand.Int(g.random, max)
		if err != nil {
			return "", fmt.Errorf("generate invoice suffix: %w", err)
		}
		suffix[i] = alphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%s-%s", Prefix, g.now().UTC().Format(dateLayout), suffix), nil
}

// Valid reports whether s has the invoice number shape.
func Valid(s string) bool {
	return numberPattern.MatchString(s)
}
