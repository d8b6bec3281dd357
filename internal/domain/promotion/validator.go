package promotion

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reason names the check a promotion failed
type Reason string

const (
	ReasonNotFound       Reason = "not_found"
	ReasonInactive       Reason = "inactive"
	ReasonNotStarted     Reason = "not_started"
	ReasonExpired        Reason = "expired"
	ReasonUsageExhausted Reason = "usage_exhausted"
	ReasonNotApplicable  Reason = "not_applicable"
)

var reasonMessages = map[Reason]string{
	ReasonNotFound:       "Promotion code does not exist",
	ReasonInactive:       "Promotion is not active",
	ReasonNotStarted:     "Promotion has not started yet",
	ReasonExpired:        "Promotion has expired",
	ReasonUsageExhausted: "Promotion usage limit reached",
	ReasonNotApplicable:  "Promotion does not apply to the selected books",
}

// Result is the outcome of validating a code
type Result struct {
	Valid           bool            `json:"valid"`
	Reason          Reason          `json:"reason,omitempty"`
	Message         string          `json:"message"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Promotion       *Promotion      `json:"-"`
}

// Validate runs the checks in a fixed order and stops at the first failure.
// It has no side effects; usage is only counted after a successful checkout.
func Validate(p *Promotion, bookIDs []uuid.UUID, now time.Time) Result {
	if p == nil {
		return invalid(ReasonNotFound)
	}
	if p.Status != StatusActive {
		return invalid(ReasonInactive)
	}
	if now.Before(p.StartDate) {
		return invalid(ReasonNotStarted)
	}
	if now.After(p.EndDate) {
		return invalid(ReasonExpired)
	}
	if p.UsageCount >= p.UsageLimit {
		return invalid(ReasonUsageExhausted)
	}

	if applicable := p.ApplicableBookIDs(); len(applicable) > 0 {
		set := make(map[uuid.UUID]struct{}, len(applicable))
		for _, id := range applicable {
			set[id] = struct{}{}
		}
		matched := false
		for _, id := range bookIDs {
			if _, ok := set[id]; ok {
				matched = true
				break
			}
		}
		if !matched {
			return invalid(ReasonNotApplicable)
		}
	}

	return Result{
		Valid:           true,
		Message:         "Promotion applied",
		DiscountPercent: p.DiscountPercent,
		Promotion:       p,
	}
}

func invalid(reason Reason) Result {
	return Result{Reason: reason, Message: reasonMessages[reason]}
}

// Discount is subtotal × percent / 100 rounded half-up to a whole amount,
// clamped to [0, subtotal].
func Discount(subtotal int64, percent decimal.Decimal) int64 {
	if subtotal <= 0 || !percent.IsPositive() {
		return 0
	}
	d := decimal.NewFromInt(subtotal).
		Mul(percent).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	if d > subtotal {
		return subtotal
	}
	return d
}
