package domain

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const bookingIDNodeLen = 6

// BookingIDGenerator issues ids shaped BKG, 16 digits, then a node suffix.
// The digits are the millisecond clock times 1000 plus a sequence within
// that millisecond, so ids from one generator never go backwards, even if
// the clock does. The node is random per generator and keeps ids from
// different processes, or from a restart, apart.
type BookingIDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	node string
	last int64
}

func NewBookingIDGenerator(now func() time.Time) *BookingIDGenerator {
	return NewBookingIDGeneratorWithNode(now, randomNode())
}

// NewBookingIDGeneratorWithNode fixes the node suffix. It is upper-cased and
// padded or cut to six characters.
func NewBookingIDGeneratorWithNode(now func() time.Time, node string) *BookingIDGenerator {
	if now == nil {
		now = time.Now
	}
	node = strings.ToUpper(node)
	if len(node) < bookingIDNodeLen {
		node += strings.Repeat("0", bookingIDNodeLen-len(node))
	}
	return &BookingIDGenerator{now: now, node: node[:bookingIDNodeLen]}
}

func (g *BookingIDGenerator) Node() string { return g.node }

func (g *BookingIDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.now().UnixMilli() * 1000
	if n <= g.last {
		n = g.last + 1
	}
	g.last = n
	return fmt.Sprintf("BKG%016d%s", n%1e16, g.node)
}

func randomNode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:bookingIDNodeLen]
}
