// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/domain/book"
	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/domain/inventory"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/payment"
	"github.com/your-org/bookstore-backend/internal/domain/promotion"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db     *gorm.DB
	logger logrus.FieldLogger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, logger logrus.FieldLogger) *Migration {
	return &Migration{
		db:     db,
		logger: logger,
	}
}

// Models lists every table in dependency order
func Models() []interface{} {
	return []interface{}{
		// Catalog
		&book.Book{},
		&inventory.Movement{},

		// Promotions
		&promotion.Promotion{},
		&promotion.PromotionBook{},

		// Cart
		&cart.Cart{},
		&cart.CartItem{},

		// Orders
		&order.Order{},
		&order.OrderItem{},
		&order.OrderStatusHistory{},

		// Payments
		&payment.Payment{},
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.logger.Info("🔄 Running database auto-migrations...")

	for _, model := range Models() {
		m.logger.Debugf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.logger.Info("✅ Database auto-migrations completed successfully")
	return nil
}

// requiredIndexes back correctness guarantees, so a failure aborts startup
var requiredIndexes = []string{
	// At most one open payment per order
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_one_pending_per_order ON payments(order_id) WHERE status = 'PENDING'",
}

var performanceIndexes = []string{
	// Order indexes
	"CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",

	// Order items indexes
	"CREATE INDEX IF NOT EXISTS idx_order_items_book ON order_items(book_id)",

	// Order status history indexes
	"CREATE INDEX IF NOT EXISTS idx_order_status_histories_order ON order_status_histories(order_id, created_at DESC)",

	// Payment indexes
	"CREATE INDEX IF NOT EXISTS idx_payments_order_status ON payments(order_id, status)",
	"CREATE INDEX IF NOT EXISTS idx_payments_gateway_created ON payments(gateway, created_at DESC)",

	// Inventory indexes
	"CREATE INDEX IF NOT EXISTS idx_inventory_movements_book_created ON inventory_movements(book_id, created_at DESC)",

	// Promotion indexes
	"CREATE INDEX IF NOT EXISTS idx_promotions_status_window ON promotions(status, start_date, end_date)",
}

// CreateIndexes creates the partial unique index the payment flow relies on
// plus lookup indexes. Only the lookup indexes may fail softly.
func (m *Migration) CreateIndexes() error {
	m.logger.Info("🔄 Creating additional database indexes...")

	for _, indexSQL := range requiredIndexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			return fmt.Errorf("failed to create required index: %w", err)
		}
	}

	successCount := 0
	failCount := 0
	for _, indexSQL := range performanceIndexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.logger.WithError(err).Warn("⚠️ Failed to create index")
			failCount++
		} else {
			successCount++
		}
	}

	m.logger.Infof("✅ Created %d indexes successfully (%d failed)", successCount+len(requiredIndexes), failCount)
	return nil
}

// SeedInitialData inserts a small catalog and a promotion for development
func (m *Migration) SeedInitialData() error {
	m.logger.Info("🌱 Seeding initial data...")

	if err := m.seedBooks(); err != nil {
		return fmt.Errorf("failed to seed books: %w", err)
	}
	if err := m.seedPromotions(); err != nil {
		return fmt.Errorf("failed to seed promotions: %w", err)
	}

	m.logger.Info("✅ Initial data seeded successfully")
	return nil
}

func (m *Migration) seedBooks() error {
	books := []book.Book{
		{Title: "Dế Mèn Phiêu Lưu Ký", Author: "Tô Hoài", ISBN: "9786042088817", Price: 45000, StockQuantity: 120},
		{Title: "Số Đỏ", Author: "Vũ Trọng Phụng", ISBN: "9786049690631", Price: 68000, StockQuantity: 60},
		{Title: "Nhà Giả Kim", Author: "Paulo Coelho", ISBN: "9786045827024", Price: 79000, StockQuantity: 200},
		{Title: "Đắc Nhân Tâm", Author: "Dale Carnegie", ISBN: "9786045888964", Price: 86000, StockQuantity: 3},
	}

	for _, b := range books {
		var existing book.Book
		err := m.db.Where("isbn = ?", b.ISBN).First(&existing).Error
		switch {
		case err == nil:
			m.logger.Debugf("⏭️ Book already exists: %s", b.Title)
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := m.db.Create(&b).Error; err != nil {
				m.logger.WithError(err).Warnf("⚠️ Failed to create book %s", b.ISBN)
				continue
			}
			m.logger.Infof("✅ Created book: %s", b.Title)
		default:
			return err
		}
	}
	return nil
}

func (m *Migration) seedPromotions() error {
	var count int64
	if err := m.db.Model(&promotion.Promotion{}).Where("code = ?", "WELCOME10").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		m.logger.Debug("⏭️ Promotion WELCOME10 already exists")
		return nil
	}

	now := time.Now().UTC()
	promo := promotion.Promotion{
		Code:            "WELCOME10",
		Name:            "Welcome discount",
		Description:     "10% off the first order",
		DiscountPercent: decimal.NewFromInt(10),
		StartDate:       now.AddDate(0, 0, -1),
		EndDate:         now.AddDate(0, 3, 0),
		UsageLimit:      100,
		Status:          promotion.StatusActive,
	}
	if err := m.db.Create(&promo).Error; err != nil {
		return err
	}
	m.logger.Info("✅ Created promotion: WELCOME10")
	return nil
}

// GetTableInfo logs row counts per table
func (m *Migration) GetTableInfo() error {
	var tables []string
	if err := m.db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename").Scan(&tables).Error; err != nil {
		return err
	}

	totalRecords := int64(0)
	for _, table := range tables {
		var count int64
		m.db.Table(table).Count(&count)
		totalRecords += count
		m.logger.WithField("records", count).Debugf("📊 %s", table)
	}

	m.logger.WithFields(logrus.Fields{
		"tables":  len(tables),
		"records": totalRecords,
	}).Info("📈 Database tables information")
	return nil
}
