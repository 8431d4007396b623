package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
)

// ProductRepository persists shop products and their claims.
type ProductRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	// Create assigns the next display order automatically.
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
	Reorder(ctx context.Context, orderedIDs []int64) error
	SetImage(ctx context.Context, id int64, imageURL string) (*domain.Product, error)

	RecentClaims(ctx context.Context, limit int) ([]domain.ProductClaim, error)
	ClaimsByProduct(ctx context.Context, productID int64) ([]domain.ProductClaim, error)
	// UpdateClaimStatus updates the claim and bumps the owning product's
	// completed/cancelled counters in the same transaction.
	UpdateClaimStatus(ctx context.Context, claimID int64, status domain.ClaimStatus, note string) (*domain.ProductClaim, error)
}

type productRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewProductRepository creates a SQL-backed product store.
func NewProductRepository(db *sql.DB, log *slog.Logger) ProductRepository {
	return &productRepository{
		db:  db,
		log: log,
	}
}

const productColumns = `id, name, description, price, image_url, active, sort_order,
	claims, completed_claims, cancelled_claims, created_at`

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products ORDER BY sort_order`, productColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logError("list", 0, err)
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}

	return products, rows.Err()
}

func (r *productRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("get_by_id", id, err)
		return nil, fmt.Errorf("select product: %w", err)
	}

	return p, nil
}

func (r *productRepository) Create(ctx context.Context, p *domain.Product) error {
	const query = `
		INSERT INTO products (name, description, price, image_url, active, sort_order, created_at)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(sort_order) + 1, 0) FROM products), $6)
		RETURNING id, sort_order
	`

	if err := r.db.QueryRowContext(
		ctx,
		query,
		p.Name,
		p.Description,
		p.Price,
		p.ImageURL,
		p.Active,
		p.CreatedAt,
	).Scan(&p.ID, &p.Order); err != nil {
		r.logError("create", 0, err)
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

func (r *productRepository) Update(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	query := fmt.Sprintf(`
		UPDATE products
		SET name = $2, description = $3, price = $4, active = $5
		WHERE id = $1
		RETURNING %s`, productColumns)

	updated, err := scanProduct(r.db.QueryRowContext(ctx, query, p.ID, p.Name, p.Description, p.Price, p.Active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("update", p.ID, err)
		return nil, fmt.Errorf("update product: %w", err)
	}

	return updated, nil
}

func (r *productRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		r.logError("delete", id, err)
		return fmt.Errorf("delete product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *productRepository) Reorder(ctx context.Context, orderedIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback()

	for i, id := range orderedIDs {
		if _, err := tx.ExecContext(ctx, `UPDATE products SET sort_order = $2 WHERE id = $1`, id, i); err != nil {
			r.logError("reorder", id, err)
			return fmt.Errorf("reorder product %d: %w", id, err)
		}
	}

	return tx.Commit()
}

func (r *productRepository) SetImage(ctx context.Context, id int64, imageURL string) (*domain.Product, error) {
	query := fmt.Sprintf(`
		UPDATE products SET image_url = $2 WHERE id = $1
		RETURNING %s`, productColumns)

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id, imageURL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("set_image", id, err)
		return nil, fmt.Errorf("set product image: %w", err)
	}

	return p, nil
}

const claimColumns = `c.id, c.product_id, c.user_id, c.status, c.note, c.created_at`

func (r *productRepository) RecentClaims(ctx context.Context, limit int) ([]domain.ProductClaim, error) {
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`
		SELECT %s, %s
		FROM product_claims c
		JOIN products p ON p.id = c.product_id
		ORDER BY c.created_at DESC
		LIMIT $1`, claimColumns, prefixedProductColumns("p"))

	return r.queryClaims(ctx, query, limit)
}

func (r *productRepository) ClaimsByProduct(ctx context.Context, productID int64) ([]domain.ProductClaim, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s
		FROM product_claims c
		JOIN products p ON p.id = c.product_id
		WHERE c.product_id = $1
		ORDER BY c.created_at DESC`, claimColumns, prefixedProductColumns("p"))

	return r.queryClaims(ctx, query, productID)
}

func (r *productRepository) UpdateClaimStatus(ctx context.Context, claimID int64, status domain.ClaimStatus, note string) (*domain.ProductClaim, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim update: %w", err)
	}
	defer tx.Rollback()

	var claim domain.ProductClaim
	if err := tx.QueryRowContext(ctx, `
		UPDATE product_claims SET status = $2, note = $3
		WHERE id = $1
		RETURNING id, product_id, user_id, status, note, created_at`,
		claimID, status, note,
	).Scan(&claim.ID, &claim.ProductID, &claim.UserID, &claim.Status, &claim.Note, &claim.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("update_claim", claimID, err)
		return nil, fmt.Errorf("update claim: %w", err)
	}

	switch status {
	case domain.ClaimCompleted:
		_, err = tx.ExecContext(ctx, `UPDATE products SET completed_claims = completed_claims + 1 WHERE id = $1`, claim.ProductID)
	case domain.ClaimCancelled:
		_, err = tx.ExecContext(ctx, `UPDATE products SET cancelled_claims = cancelled_claims + 1 WHERE id = $1`, claim.ProductID)
	}
	if err != nil {
		r.logError("update_claim_stats", claim.ProductID, err)
		return nil, fmt.Errorf("update product claim stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim update: %w", err)
	}

	product, err := r.GetByID(ctx, claim.ProductID)
	if err == nil {
		claim.Product = product
	}

	return &claim, nil
}

func (r *productRepository) queryClaims(ctx context.Context, query string, args ...any) ([]domain.ProductClaim, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logError("query_claims", 0, err)
		return nil, fmt.Errorf("select claims: %w", err)
	}
	defer rows.Close()

	var claims []domain.ProductClaim
	for rows.Next() {
		var claim domain.ProductClaim
		var product domain.Product

		if err := rows.Scan(
			&claim.ID,
			&claim.ProductID,
			&claim.UserID,
			&claim.Status,
			&claim.Note,
			&claim.CreatedAt,
			&product.ID,
			&product.Name,
			&product.Description,
			&product.Price,
			&product.ImageURL,
			&product.Active,
			&product.Order,
			&product.Stats.Claims,
			&product.Stats.CompletedClaims,
			&product.Stats.CancelledClaims,
			&product.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}

		claim.Product = &product
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}

func (r *productRepository) logError(operation string, id int64, err error) {
	if r.log == nil {
		return
	}

	r.log.Error("product repository operation failed",
		slog.String("operation", operation),
		slog.Int64("id", id),
		slog.Any("error", err),
	)
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product

	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.ImageURL,
		&p.Active,
		&p.Order,
		&p.Stats.Claims,
		&p.Stats.CompletedClaims,
		&p.Stats.CancelledClaims,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}

	return &p, nil
}

func prefixedProductColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.name, %[1]s.description, %[1]s.price, %[1]s.image_url,
		%[1]s.active, %[1]s.sort_order, %[1]s.claims, %[1]s.completed_claims,
		%[1]s.cancelled_claims, %[1]s.created_at`, alias)
}
