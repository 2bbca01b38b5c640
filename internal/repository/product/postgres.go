package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger}
}

const productColumns = `id::text, slug, name, COALESCE(description, ''), price::text, original_price::text, stock,
       COALESCE(category, ''), status, sizes, colors, COALESCE(image, ''), rating, reviews, created_at, updated_at`

func (r *postgresRepo) List(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		q += ` WHERE status = 'active'`
	}
	q += ` ORDER BY created_at DESC, name ASC`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Error().Err(err).Bool("active_only", activeOnly).Msg("product repo: list")
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.Debug().Bool("active_only", activeOnly).Int("count", len(result)).Msg("product repo: list")
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id::text = $1`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, err
	}
	return p, nil
}

func (r *postgresRepo) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	colors, err := json.Marshal(colorsOrEmpty(p.Colors))
	if err != nil {
		return domain.Product{}, err
	}
	q := `
INSERT INTO products (slug, name, description, price, original_price, stock, category, status, sizes, colors, image, rating, reviews)
VALUES ($1, $2, NULLIF($3, ''), $4::numeric, $5::numeric, $6, NULLIF($7, ''), $8, $9, $10, NULLIF($11, ''), $12, $13)
RETURNING ` + productColumns
	out, err := scanProduct(r.pool.QueryRow(ctx, q,
		p.Slug, p.Name, p.Description, p.Price.String(), optionalAmount(p.OriginalPrice), p.Stock,
		p.Category, string(p.Status), sizesOrEmpty(p.Sizes), colors, p.Image, p.Rating, p.Reviews,
	))
	return out, r.mapWriteErr(err, p.Slug)
}

func (r *postgresRepo) Update(ctx context.Context, p domain.Product) (domain.Product, error) {
	colors, err := json.Marshal(colorsOrEmpty(p.Colors))
	if err != nil {
		return domain.Product{}, err
	}
	q := `
UPDATE products SET
    slug = $2, name = $3, description = NULLIF($4, ''), price = $5::numeric, original_price = $6::numeric,
    stock = $7, category = NULLIF($8, ''), status = $9, sizes = $10, colors = $11, image = NULLIF($12, ''),
    rating = $13, reviews = $14, updated_at = now()
WHERE id::text = $1
RETURNING ` + productColumns
	out, err := scanProduct(r.pool.QueryRow(ctx, q,
		p.ID, p.Slug, p.Name, p.Description, p.Price.String(), optionalAmount(p.OriginalPrice), p.Stock,
		p.Category, string(p.Status), sizesOrEmpty(p.Sizes), colors, p.Image, p.Rating, p.Reviews,
	))
	return out, r.mapWriteErr(err, p.Slug)
}

func (r *postgresRepo) Upsert(ctx context.Context, p domain.Product) (domain.Product, error) {
	colors, err := json.Marshal(colorsOrEmpty(p.Colors))
	if err != nil {
		return domain.Product{}, err
	}
	q := `
INSERT INTO products (slug, name, description, price, original_price, stock, category, status, sizes, colors, image, rating, reviews)
VALUES ($1, $2, NULLIF($3, ''), $4::numeric, $5::numeric, $6, NULLIF($7, ''), $8, $9, $10, NULLIF($11, ''), $12, $13)
ON CONFLICT (slug) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    original_price = EXCLUDED.original_price,
    stock = EXCLUDED.stock,
    category = EXCLUDED.category,
    status = EXCLUDED.status,
    sizes = EXCLUDED.sizes,
    colors = EXCLUDED.colors,
    image = EXCLUDED.image,
    rating = EXCLUDED.rating,
    reviews = EXCLUDED.reviews,
    updated_at = now()
RETURNING ` + productColumns
	out, err := scanProduct(r.pool.QueryRow(ctx, q,
		p.Slug, p.Name, p.Description, p.Price.String(), optionalAmount(p.OriginalPrice), p.Stock,
		p.Category, string(p.Status), sizesOrEmpty(p.Sizes), colors, p.Image, p.Rating, p.Reviews,
	))
	if err != nil {
		r.logger.Error().Err(err).Str("slug", p.Slug).Msg("product repo: upsert")
		return domain.Product{}, err
	}
	r.logger.Debug().Str("slug", out.Slug).Str("id", out.ID).Msg("product repo: upserted")
	return out, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) mapWriteErr(err error, slug string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrAlreadyExists
	}
	r.logger.Error().Err(err).Str("slug", slug).Msg("product repo: write")
	return err
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p             domain.Product
		price         string
		originalPrice *string
		status        string
		colors        []byte
	)
	err := row.Scan(
		&p.ID, &p.Slug, &p.Name, &p.Description, &price, &originalPrice, &p.Stock,
		&p.Category, &status, &p.Sizes, &colors, &p.Image, &p.Rating, &p.Reviews, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Product{}, fmt.Errorf("product %s: decode price: %w", p.ID, err)
	}
	if originalPrice != nil {
		v, err := decimal.NewFromString(*originalPrice)
		if err != nil {
			return domain.Product{}, fmt.Errorf("product %s: decode original price: %w", p.ID, err)
		}
		p.OriginalPrice = &v
	}
	if len(colors) > 0 {
		if err := json.Unmarshal(colors, &p.Colors); err != nil {
			return domain.Product{}, fmt.Errorf("product %s: decode colors: %w", p.ID, err)
		}
	}
	p.Status = domain.ProductStatus(status)
	return p, nil
}

func optionalAmount(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func sizesOrEmpty(sizes []string) []string {
	if sizes == nil {
		return []string{}
	}
	return sizes
}

func colorsOrEmpty(colors []domain.Color) []domain.Color {
	if colors == nil {
		return []domain.Color{}
	}
	return colors
}
