package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Cart belongs either to an anonymous session or to a user, never both
type Cart struct {
	bun.BaseModel `bun:"table:carts,alias:crt"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	UserID        *uuid.UUID `bun:"user_id,type:uuid" json:"user_id,omitempty"`
	SessionID     string     `bun:"session_id,nullzero" json:"session_id,omitempty"`
	Items         []*Item    `bun:"rel:has-many,join:id=cart_id" json:"items,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Item is a product line; (cart_id, product_id) is unique
type Item struct {
	bun.BaseModel `bun:"table:cart_items,alias:itm"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	CartID        uuid.UUID  `bun:"cart_id,notnull,type:uuid" json:"cart_id"`
	ProductID     string     `bun:"product_id,notnull" json:"product_id"`
	Quantity      int        `bun:"quantity,notnull" json:"quantity"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
