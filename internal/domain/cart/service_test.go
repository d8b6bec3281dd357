package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/domain/book"
	"github.com/your-org/bookstore-backend/internal/domain/inventory"
	"github.com/your-org/bookstore-backend/internal/pkg/database/dbtest"
	"gorm.io/gorm"
)

func setupCart(t *testing.T) (*Service, *gorm.DB, book.Book, book.Book) {
	t.Helper()
	db := dbtest.Open(t, &book.Book{}, &Cart{}, &CartItem{})
	x := book.Book{Title: "Book X", Price: 100, StockQuantity: 10}
	y := book.Book{Title: "Book Y", Price: 50, StockQuantity: 1}
	require.NoError(t, db.Create(&x).Error)
	require.NoError(t, db.Create(&y).Error)
	return NewService(db), db, x, y
}

func TestAddToCartCreatesCartLazilyAndMerges(t *testing.T) {
	svc, db, x, y := setupCart(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.AddToCart(ctx, userID, &AddToCartRequest{BookID: x.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, userID, &AddToCartRequest{BookID: x.ID, Quantity: 1})
	require.NoError(t, err)
	resp, err := svc.AddToCart(ctx, userID, &AddToCartRequest{BookID: y.ID, Quantity: 1})
	require.NoError(t, err)

	var carts int64
	require.NoError(t, db.Model(&Cart{}).Count(&carts).Error)
	assert.Equal(t, int64(1), carts)

	assert.Equal(t, 2, resp.Totals.ItemCount)
	assert.Equal(t, 3, resp.Totals.TotalQuantity)
	assert.Equal(t, int64(250), resp.Totals.SubTotal)
}

func TestAddToCartRejectsMoreThanStock(t *testing.T) {
	svc, _, _, y := setupCart(t)

	_, err := svc.AddToCart(context.Background(), uuid.New(), &AddToCartRequest{BookID: y.ID, Quantity: 2})
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
}

func TestAddToCartUnknownBook(t *testing.T) {
	svc, _, _, _ := setupCart(t)

	_, err := svc.AddToCart(context.Background(), uuid.New(), &AddToCartRequest{BookID: uuid.New(), Quantity: 1})
	assert.ErrorIs(t, err, book.ErrBookNotFound)
}

func TestUpdateAndRemoveItems(t *testing.T) {
	svc, _, x, y := setupCart(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.AddToCart(ctx, userID, &AddToCartRequest{BookID: x.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, userID, &AddToCartRequest{BookID: y.ID, Quantity: 1})
	require.NoError(t, err)

	resp, err := svc.UpdateCartItem(ctx, userID, x.ID, &UpdateCartItemRequest{Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(450), resp.Totals.SubTotal)

	resp, err = svc.RemoveFromCart(ctx, userID, y.ID)
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, x.ID, resp.Items[0].BookID)

	_, err = svc.RemoveFromCart(ctx, userID, y.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)

	require.NoError(t, svc.ClearCart(ctx, userID))
	resp, err = svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}

func TestStoreItemsSubset(t *testing.T) {
	svc, db, x, y := setupCart(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.AddToCart(ctx, userID, &AddToCartRequest{BookID: x.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, userID, &AddToCartRequest{BookID: y.ID, Quantity: 1})
	require.NoError(t, err)

	store := NewStore()
	items, err := store.Items(db, userID, []uuid.UUID{y.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, y.ID, items[0].BookID)

	require.NoError(t, store.Clear(db, userID, []uuid.UUID{y.ID}))
	items, err = store.Items(db, userID, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, x.ID, items[0].BookID)

	none, err := store.Items(db, uuid.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}
