package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

const productColumns = `
	id, name, seller_email, image_path, size_label, care_notes,
	price_minor, stock, sold, deleted_at, delete_reason,
	created_at, updated_at`

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepository{db: store.DB()}
}

func (r *catalogRepository) Create(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (
			id, name, seller_email, image_path, size_label, care_notes,
			price_minor, stock, sold, deleted_at, delete_reason,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		product.ID, product.Name, product.SellerEmail, product.ImagePath,
		product.SizeLabel, product.CareNotes,
		product.PriceMinor, product.Stock, product.Sold,
		nullTime(product.DeletedAt), nullString(product.DeleteReason),
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

func (r *catalogRepository) Get(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)

	return scanProduct(row)
}

func (r *catalogRepository) List(filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR seller_email = $1)
		  AND ($2 OR deleted_at IS NULL)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, filter.SellerEmail, filter.IncludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

func (r *catalogRepository) SoftDelete(id, reason string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET deleted_at = $2,
		    delete_reason = $3,
		    updated_at = $2
		WHERE id = $1
	`, id, now, nullString(reason))
	if err != nil {
		return fmt.Errorf("soft delete product: %w", err)
	}

	return requireProductAffected(res)
}

func (r *catalogRepository) Restore(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET deleted_at = NULL,
		    delete_reason = NULL,
		    updated_at = $2
		WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("restore product: %w", err)
	}

	return requireProductAffected(res)
}

func requireProductAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for product update: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p            domain.Product
		deletedAt    sql.NullTime
		deleteReason sql.NullString
	)

	err := row.Scan(
		&p.ID, &p.Name, &p.SellerEmail, &p.ImagePath, &p.SizeLabel, &p.CareNotes,
		&p.PriceMinor, &p.Stock, &p.Sold, &deletedAt, &deleteReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("scan product: %w", err)
	}

	if deletedAt.Valid {
		d := deletedAt.Time.UTC()
		p.DeletedAt = &d
	}
	if deleteReason.Valid {
		p.DeleteReason = deleteReason.String
	}

	return p, nil
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)
