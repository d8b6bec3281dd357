// internal/domain/promotion/service.go
package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/pkg/database"
	"gorm.io/gorm"
)

// Service handles promotion management and code validation
type Service struct {
	db     *gorm.DB
	store  *Store
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewService creates a new promotion service
func NewService(db *gorm.DB, logger logrus.FieldLogger) *Service {
	return &Service{
		db:     db,
		store:  NewStore(),
		logger: logger,
		now:    time.Now,
	}
}

// CreatePromotionRequest represents promotion creation data
type CreatePromotionRequest struct {
	Code            string          `json:"code" binding:"required,max=50"`
	Name            string          `json:"name" binding:"required"`
	Description     string          `json:"description"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	StartDate       time.Time       `json:"start_date" binding:"required"`
	EndDate         time.Time       `json:"end_date" binding:"required"`
	UsageLimit      int             `json:"usage_limit" binding:"required,min=1"`
	BookIDs         []uuid.UUID     `json:"book_ids"`
}

// ValidateCodeRequest represents a code check before checkout
type ValidateCodeRequest struct {
	Code    string      `json:"code" binding:"required"`
	BookIDs []uuid.UUID `json:"book_ids"`
}

// UpdateStatusRequest changes a promotion's status
type UpdateStatusRequest struct {
	Status Status `json:"status" binding:"required"`
}

// CreatePromotion creates a promotion; codes are stored upper-case and unique
func (s *Service) CreatePromotion(ctx context.Context, req *CreatePromotionRequest) (*Promotion, error) {
	hundred := decimal.NewFromInt(100)
	if !req.DiscountPercent.IsPositive() || req.DiscountPercent.GreaterThan(hundred) {
		return nil, fmt.Errorf("discount_percent must be in (0, 100]")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, fmt.Errorf("end_date must be after start_date")
	}
	if req.UsageLimit <= 0 {
		return nil, fmt.Errorf("usage_limit must be positive")
	}

	p := &Promotion{
		Code:            NormalizeCode(req.Code),
		Name:            req.Name,
		Description:     req.Description,
		DiscountPercent: req.DiscountPercent,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		UsageLimit:      req.UsageLimit,
		Status:          StatusActive,
	}
	seen := make(map[uuid.UUID]bool, len(req.BookIDs))
	for _, id := range req.BookIDs {
		if !seen[id] {
			seen[id] = true
			p.Books = append(p.Books, PromotionBook{BookID: id})
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Promotion{}).Where("code = ?", p.Code).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check promotion code: %w", err)
		}
		if count > 0 {
			return ErrDuplicateCode
		}
		if err := tx.Create(p).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrDuplicateCode
			}
			return fmt.Errorf("failed to create promotion: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"promotion_id": p.ID,
		"code":         p.Code,
	}).Info("Promotion created")

	return p, nil
}

// GetPromotion retrieves a promotion by id
func (s *Service) GetPromotion(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	var p Promotion
	if err := s.db.WithContext(ctx).Preload("Books").Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromotionNotFound
		}
		return nil, fmt.Errorf("failed to retrieve promotion: %w", err)
	}
	return &p, nil
}

// ListPromotions lists promotions, optionally filtered by status
func (s *Service) ListPromotions(ctx context.Context, status Status) ([]Promotion, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var promotions []Promotion
	if err := q.Find(&promotions).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve promotions: %w", err)
	}
	return promotions, nil
}

// UpdateStatus activates, deactivates or expires a promotion
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Promotion, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid promotion status: %s", status)
	}

	res := s.db.WithContext(ctx).Model(&Promotion{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update promotion status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrPromotionNotFound
	}
	return s.GetPromotion(ctx, id)
}

// ValidateCode checks a code against the books the user intends to buy
func (s *Service) ValidateCode(ctx context.Context, code string, bookIDs []uuid.UUID) (*Result, error) {
	p, err := s.store.FindByCode(s.db.WithContext(ctx), code, false)
	if err != nil && !errors.Is(err, ErrPromotionNotFound) {
		return nil, err
	}

	result := Validate(p, bookIDs, s.now())
	return &result, nil
}
