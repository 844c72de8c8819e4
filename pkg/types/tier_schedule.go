package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is one quantity band of a pre-order price schedule.
type Tier struct {
	Tier        int             `json:"tier"`
	MinQuantity int             `json:"min_quantity"`
	MaxQuantity *int            `json:"max_quantity,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Contains reports whether qty falls inside the tier's inclusive range.
func (t Tier) Contains(qty int) bool {
	if qty < t.MinQuantity {
		return false
	}
	return t.MaxQuantity == nil || qty <= *t.MaxQuantity
}

// TierSchedule is the ordered list of tiers stored as JSON on a design.
type TierSchedule []Tier

// TierViolation describes one rule a schedule breaks.
type TierViolation struct {
	Tier   int    `json:"tier"`
	Reason string `json:"reason"`
}

// TierScheduleError is returned by Validate and carries every violation found.
type TierScheduleError struct {
	Violations []TierViolation
}

func (e *TierScheduleError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("tier %d: %s", v.Tier, v.Reason))
	}
	return "invalid tier schedule: " + strings.Join(parts, "; ")
}

// Validate checks ordering, contiguity and price monotonicity.
func (s TierSchedule) Validate() error {
	if len(s) == 0 {
		return &TierScheduleError{Violations: []TierViolation{{Tier: 0, Reason: "schedule must contain at least one tier"}}}
	}

	var violations []TierViolation
	add := func(tier int, reason string) {
		violations = append(violations, TierViolation{Tier: tier, Reason: reason})
	}

	for i, tier := range s {
		if tier.Tier != i+1 {
			add(tier.Tier, fmt.Sprintf("expected tier number %d", i+1))
		}
		if tier.MinQuantity < 1 {
			add(tier.Tier, "min_quantity must be at least 1")
		}
		if tier.MaxQuantity != nil && *tier.MaxQuantity < tier.MinQuantity {
			add(tier.Tier, "max_quantity must not be below min_quantity")
		}
		if !tier.UnitPrice.IsPositive() {
			add(tier.Tier, "unit_price must be positive")
		}
		if !tier.UnitPrice.Equal(tier.UnitPrice.Round(2)) {
			add(tier.Tier, "unit_price must be a whole number of cents")
		}
		last := i == len(s)-1
		if tier.MaxQuantity == nil && !last {
			add(tier.Tier, "only the last tier may be unbounded")
		}
		if tier.MaxQuantity != nil && last {
			add(tier.Tier, "the last tier must be unbounded")
		}
		if i == 0 {
			continue
		}
		prev := s[i-1]
		if !tier.UnitPrice.LessThan(prev.UnitPrice) {
			add(tier.Tier, "unit_price must be lower than the previous tier")
		}
		if prev.MaxQuantity != nil && tier.MinQuantity != *prev.MaxQuantity+1 {
			add(tier.Tier, fmt.Sprintf("min_quantity must be %d to follow the previous tier", *prev.MaxQuantity+1))
		}
	}

	if len(violations) > 0 {
		return &TierScheduleError{Violations: violations}
	}
	return nil
}

// First returns the lowest tier.
func (s TierSchedule) First() (Tier, bool) {
	if len(s) == 0 {
		return Tier{}, false
	}
	return s[0], true
}

// Value implements driver.Valuer so the schedule persists as JSON.
func (s TierSchedule) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	payload, err := json.Marshal([]Tier(s))
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

// Scan implements sql.Scanner; stored schedules are validated on the way out.
func (s *TierSchedule) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("tier schedule: unsupported scan type %T", value)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		*s = nil
		return nil
	}

	var tiers []Tier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return fmt.Errorf("tier schedule: %w", err)
	}
	schedule := TierSchedule(tiers)
	if err := schedule.Validate(); err != nil {
		return err
	}
	*s = schedule
	return nil
}

// GormDataType keeps automigrations on a JSON column.
func (TierSchedule) GormDataType() string {
	return "json"
}
