// Package cart persists shopping carts and merges the anonymous session cart
// into the user's cart at login.
package cart

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Reconciler owns the cart tables
type Reconciler struct {
	db *bun.DB
	// lockRows takes row locks on the carts being merged. SQLite has no
	// SELECT ... FOR UPDATE and serializes writers anyway.
	lockRows bool
}

// NewReconciler creates a new reconciler over db
func NewReconciler(db *bun.DB) *Reconciler {
	return &Reconciler{db: db, lockRows: db.Dialect().Name() == dialect.PG}
}

// MergeCartsOnLogin folds the cart of sessionID into the cart of userID in
// a single transaction. Both carts are row locked first, so overlapping
// logins of one session merge once: the second sees no anonymous cart.
//   - empty session id or no anonymous cart: nothing happens
//   - user has no cart: the anonymous cart is re-keyed to the user
//   - both exist: quantities are summed per product into the user cart and
//     the anonymous cart is deleted
func (r *Reconciler) MergeCartsOnLogin(ctx context.Context, sessionID string, userID uuid.UUID) error {
	if sessionID == "" || userID == uuid.Nil {
		return nil
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		anon, err := findCart(ctx, tx, r.lockRows, "session_id = ? AND user_id IS NULL", sessionID)
		if err != nil {
			return err
		}
		if anon == nil {
			return nil
		}

		owned, err := findCart(ctx, tx, r.lockRows, "user_id = ?", userID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		if owned == nil {
			_, err = tx.NewUpdate().
				Model((*Cart)(nil)).
				Set("user_id = ?", userID).
				Set("session_id = NULL").
				Set("updated_at = ?", now).
				Where("id = ?", anon.ID).
				Exec(ctx)
			return err
		}

		return mergeInto(ctx, tx, anon, owned, now)
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to merge carts on login").
			WithMetadata(map[string]any{
				"session_id": sessionID,
				"user_id":    userID.String(),
			})
	}
	return nil
}

func mergeInto(ctx context.Context, tx bun.Tx, anon, owned *Cart, now time.Time) error {
	var anonItems []*Item
	if err := tx.NewSelect().
		Model(&anonItems).
		Where("cart_id = ?", anon.ID).
		OrderExpr("product_id ASC").
		Scan(ctx); err != nil {
		return err
	}

	for _, item := range anonItems {
		existing := &Item{}
		err := tx.NewSelect().
			Model(existing).
			Where("cart_id = ?", owned.ID).
			Where("product_id = ?", item.ProductID).
			Limit(1).
			Scan(ctx)

		switch {
		case err == nil:
			_, err = tx.NewUpdate().
				Model((*Item)(nil)).
				Set("quantity = quantity + ?", item.Quantity).
				Set("updated_at = ?", now).
				Where("id = ?", existing.ID).
				Exec(ctx)
			if err != nil {
				return err
			}
		case errors.Is(err, sql.ErrNoRows):
			moved := &Item{
				ID:        uuid.New(),
				CartID:    owned.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			}
			if _, err := tx.NewInsert().Model(moved).Exec(ctx); err != nil {
				return err
			}
		default:
			return err
		}
	}

	if _, err := tx.NewDelete().
		Model((*Item)(nil)).
		Where("cart_id = ?", anon.ID).
		Exec(ctx); err != nil {
		return err
	}

	_, err := tx.NewDelete().
		Model((*Cart)(nil)).
		Where("id = ?", anon.ID).
		Exec(ctx)
	return err
}

// findCart returns nil, nil when no cart matches
func findCart(ctx context.Context, tx bun.IDB, lock bool, where string, args ...any) (*Cart, error) {
	record := &Cart{}
	err := cartQuery(tx, record, lock, where, args...).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// cartQuery selects one cart. lock adds FOR UPDATE and only makes sense
// inside a transaction.
func cartQuery(tx bun.IDB, record *Cart, lock bool, where string, args ...any) *bun.SelectQuery {
	q := tx.NewSelect().
		Model(record).
		Where(where, args...).
		Limit(1)
	if lock {
		q = q.For("UPDATE")
	}
	return q
}
