// Package numbering mints human-readable work order numbers.
package numbering

import (
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "OS"

// Generator formats numbers as <PREFIX>-<YY><seq>, seq zero-padded to 4 digits.
//
// Generator does not allocate sequence values. Callers must obtain seq from an
// atomic source (a storage sequence); deriving it from a row count races when
// two creators run concurrently.
type Generator struct {
	prefix string
	clock  clockwork.Clock
}

// NewGenerator builds a generator. A nil clock uses the real clock.
func NewGenerator(prefix string, clock clockwork.Clock) *Generator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{prefix: prefix, clock: clock}
}

// Prefix returns the configured prefix.
func (g *Generator) Prefix() string {
	return g.prefix
}

// Next returns the number following existingCount work orders.
func (g *Generator) Next(existingCount int64) string {
	if existingCount < 0 {
		existingCount = 0
	}
	return g.Format(existingCount + 1)
}

// Format renders an already allocated sequence value.
func (g *Generator) Format(seq int64) string {
	return fmt.Sprintf("%s-%02d%04d", g.prefix, g.clock.Now().Year()%100, seq)
}
