package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/storefront-api/internal/model"
)

// CartRepository stores one cart document per user. Save replaces the whole
// item list, so concurrent writers resolve as last write wins.
type CartRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	Save(ctx context.Context, cart *model.Cart) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

func (r *pgCartRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	cart := &model.Cart{UserID: userID}
	var raw []byte
	// The no-op update makes RETURNING yield the existing row on conflict.
	err := r.pool.QueryRow(ctx,
		`INSERT INTO carts (user_id, items, updated_at) VALUES ($1, '[]'::jsonb, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING items, updated_at`,
		userID,
	).Scan(&raw, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	if err := json.Unmarshal(raw, &cart.Items); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	return cart, nil
}

func (r *pgCartRepo) Save(ctx context.Context, cart *model.Cart) error {
	items := cart.Items
	if items == nil {
		items = []model.CartItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO carts (user_id, items, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET items = EXCLUDED.items, updated_at = NOW()
		 RETURNING updated_at`,
		cart.UserID, raw,
	).Scan(&cart.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (r *pgCartRepo) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE carts SET items = '[]'::jsonb, updated_at = NOW() WHERE user_id = $1`, userID,
	)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
