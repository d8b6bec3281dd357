package promotion

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func activePromotion(now time.Time) *Promotion {
	return &Promotion{
		Code:            "SPRING10",
		DiscountPercent: decimal.NewFromInt(10),
		StartDate:       now.Add(-24 * time.Hour),
		EndDate:         now.Add(24 * time.Hour),
		UsageCount:      0,
		UsageLimit:      5,
		Status:          StatusActive,
	}
}

func TestValidateChecksInOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	bookA, bookB := uuid.New(), uuid.New()

	tests := []struct {
		name     string
		mutate   func(p *Promotion)
		books    []uuid.UUID
		nilPromo bool
		want     Reason
	}{
		{name: "missing", nilPromo: true, want: ReasonNotFound},
		{
			name: "inactive wins over expired and exhausted",
			mutate: func(p *Promotion) {
				p.Status = StatusInactive
				p.EndDate = now.Add(-time.Hour)
				p.UsageCount = p.UsageLimit
			},
			want: ReasonInactive,
		},
		{
			name:   "not started",
			mutate: func(p *Promotion) { p.StartDate = now.Add(time.Hour) },
			want:   ReasonNotStarted,
		},
		{
			name: "expired wins over exhausted",
			mutate: func(p *Promotion) {
				p.EndDate = now.Add(-time.Hour)
				p.UsageCount = p.UsageLimit
			},
			want: ReasonExpired,
		},
		{
			name: "exhausted wins over not applicable",
			mutate: func(p *Promotion) {
				p.UsageCount = p.UsageLimit
				p.Books = []PromotionBook{{BookID: bookA}}
			},
			books: []uuid.UUID{bookB},
			want:  ReasonUsageExhausted,
		},
		{
			name:   "not applicable",
			mutate: func(p *Promotion) { p.Books = []PromotionBook{{BookID: bookA}} },
			books:  []uuid.UUID{bookB},
			want:   ReasonNotApplicable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p *Promotion
			if !tt.nilPromo {
				p = activePromotion(now)
				if tt.mutate != nil {
					tt.mutate(p)
				}
			}
			res := Validate(p, tt.books, now)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.want, res.Reason)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestValidateAccepts(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	bookA, bookB := uuid.New(), uuid.New()

	p := activePromotion(now)
	res := Validate(p, nil, now)
	assert.True(t, res.Valid)
	assert.True(t, res.DiscountPercent.Equal(decimal.NewFromInt(10)))

	p.Books = []PromotionBook{{BookID: bookA}}
	res = Validate(p, []uuid.UUID{bookB, bookA}, now)
	assert.True(t, res.Valid)

	// window bounds are inclusive
	p.StartDate = now
	p.EndDate = now
	assert.True(t, Validate(p, []uuid.UUID{bookA}, now).Valid)

	// one slot left is still valid
	p.UsageCount = p.UsageLimit - 1
	assert.True(t, Validate(p, []uuid.UUID{bookA}, now).Valid)
}

func TestDiscountRounding(t *testing.T) {
	tests := []struct {
		subtotal int64
		percent  string
		want     int64
	}{
		{250, "10", 25},
		{255, "10", 26}, // 25.5 rounds half-up
		{254, "10", 25}, // 25.4 rounds down
		{99999, "12.5", 12500},
		{100, "100", 100},
		{0, "10", 0},
		{100, "0", 0},
	}
	for _, tt := range tests {
		got := Discount(tt.subtotal, decimal.RequireFromString(tt.percent))
		assert.Equal(t, tt.want, got, "subtotal=%d percent=%s", tt.subtotal, tt.percent)
	}
}
