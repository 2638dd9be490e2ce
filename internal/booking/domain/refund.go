package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RefundTier grants Percent of the paid amount when the time left before
// departure is strictly greater than MinLead.
type RefundTier struct {
	MinLead time.Duration
	Percent int
}

type RefundPolicy struct {
	tiers []RefundTier
}

// DefaultRefundPolicy: full refund beyond 24h, half beyond 2h, nothing after.
func DefaultRefundPolicy() RefundPolicy {
	p, _ := NewRefundPolicy([]RefundTier{{MinLead: 24 * time.Hour, Percent: 100}, {MinLead: 2 * time.Hour, Percent: 50}})
	return p
}

// NewRefundPolicy rejects tiers that would let a later cancellation earn more
// than an earlier one.
func NewRefundPolicy(tiers []RefundTier) (RefundPolicy, error) {
	sorted := append([]RefundTier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinLead > sorted[j].MinLead })

	for i, t := range sorted {
		if t.MinLead < 0 {
			return RefundPolicy{}, fmt.Errorf("refund tier %d: negative lead time %s", i, t.MinLead)
		}
		if t.Percent < 0 || t.Percent > 100 {
			return RefundPolicy{}, fmt.Errorf("refund tier %s: percent %d out of range", t.MinLead, t.Percent)
		}
		if i > 0 {
			prev := sorted[i-1]
			if prev.MinLead == t.MinLead {
				return RefundPolicy{}, fmt.Errorf("refund tier %s: duplicate lead time", t.MinLead)
			}
			if t.Percent > prev.Percent {
				return RefundPolicy{}, fmt.Errorf("refund tier %s: %d%% exceeds %d%% of the longer lead %s", t.MinLead, t.Percent, prev.Percent, prev.MinLead)
			}
		}
	}
	return RefundPolicy{tiers: sorted}, nil
}

// ParseRefundPolicy reads tiers written as "24h:100,2h:50".
func ParseRefundPolicy(raw string) (RefundPolicy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NewRefundPolicy(nil)
	}
	var tiers []RefundTier
	for _, part := range strings.Split(raw, ",") {
		lead, pct, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return RefundPolicy{}, fmt.Errorf("refund tier %q: expected <duration>:<percent>", part)
		}
		d, err := time.ParseDuration(strings.TrimSpace(lead))
		if err != nil {
			return RefundPolicy{}, fmt.Errorf("refund tier %q: %w", part, err)
		}
		p, err := strconv.Atoi(strings.TrimSpace(pct))
		if err != nil {
			return RefundPolicy{}, fmt.Errorf("refund tier %q: %w", part, err)
		}
		tiers = append(tiers, RefundTier{MinLead: d, Percent: p})
	}
	return NewRefundPolicy(tiers)
}

func (p RefundPolicy) Tiers() []RefundTier {
	return append([]RefundTier(nil), p.tiers...)
}

func (p RefundPolicy) Percent(lead time.Duration) int {
	for _, t := range p.tiers {
		if lead > t.MinLead {
			return t.Percent
		}
	}
	return 0
}

func (p RefundPolicy) Refund(total Money, lead time.Duration) Money {
	return total.Percent(p.Percent(lead))
}

func (p RefundPolicy) String() string {
	parts := make([]string, len(p.tiers))
	for i, t := range p.tiers {
		parts[i] = fmt.Sprintf("%s:%d", t.MinLead, t.Percent)
	}
	return strings.Join(parts, ",")
}
