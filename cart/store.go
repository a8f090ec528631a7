package cart

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ErrInvalidQuantity is returned when adding zero or negative quantities
var ErrInvalidQuantity = goerrors.New("quantity must be positive", goerrors.CategoryValidation).
	WithTextCode("INVALID_QUANTITY").
	WithCode(goerrors.CodeBadRequest)

// SessionCart returns the anonymous cart for sessionID, creating it on
// first use.
func (r *Reconciler) SessionCart(ctx context.Context, sessionID string) (*Cart, error) {
	existing, err := findCart(ctx, r.db, false, "session_id = ? AND user_id IS NULL", sessionID)
	if err != nil || existing != nil {
		return existing, err
	}

	c := &Cart{ID: uuid.New(), SessionID: sessionID}
	if _, err := r.db.NewInsert().Model(c).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create session cart")
	}
	return c, nil
}

// UserCart returns the cart owned by userID, creating it on first use.
func (r *Reconciler) UserCart(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	existing, err := findCart(ctx, r.db, false, "user_id = ?", userID)
	if err != nil || existing != nil {
		return existing, err
	}

	owner := userID
	c := &Cart{ID: uuid.New(), UserID: &owner}
	if _, err := r.db.NewInsert().Model(c).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user cart")
	}
	return c, nil
}

// FindBySession returns the anonymous cart or nil
func (r *Reconciler) FindBySession(ctx context.Context, sessionID string) (*Cart, error) {
	return findCart(ctx, r.db, false, "session_id = ? AND user_id IS NULL", sessionID)
}

// FindByUser returns the user's cart or nil
func (r *Reconciler) FindByUser(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	return findCart(ctx, r.db, false, "user_id = ?", userID)
}

// AddItem increments the product quantity in the cart
func (r *Reconciler) AddItem(ctx context.Context, cartID uuid.UUID, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	res, err := r.db.NewUpdate().
		Model((*Item)(nil)).
		Set("quantity = quantity + ?", quantity).
		Set("updated_at = ?", time.Now().UTC()).
		Where("cart_id = ?", cartID).
		Where("product_id = ?", productID).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update cart item")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	item := &Item{
		ID:        uuid.New(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
	}
	if _, err := r.db.NewInsert().Model(item).Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert cart item")
	}
	return nil
}

// Quantities maps product id to quantity for a cart
func (r *Reconciler) Quantities(ctx context.Context, cartID uuid.UUID) (map[string]int, error) {
	var items []*Item
	if err := r.db.NewSelect().
		Model(&items).
		Where("cart_id = ?", cartID).
		Scan(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list cart items")
	}

	out := make(map[string]int, len(items))
	for _, item := range items {
		out[item.ProductID] = item.Quantity
	}
	return out, nil
}
