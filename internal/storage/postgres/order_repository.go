package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

const orderColumns = `
	id, user_id, user_email, user_name, address,
	payment_method, status, total_minor, payment_ref,
	inventory_applied_at, inventory_reverted_at,
	version, created_at, updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
// Репозиторий только читает: все мутации заказов идут через Store.WithinTx.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, err
	}

	items, err := loadOrderItems(ctx, r.db, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) GetByPaymentRef(ref string) (domain.Order, error) {
	if ref == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE payment_ref = $1
	`, ref)

	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, err
	}

	items, err := loadOrderItems(ctx, r.db, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) ListByUser(userID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", userID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders by user: %w", err)
	}
	defer rows.Close()

	return r.collectOrders(ctx, rows)
}

func (r *orderRepository) List(limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $1", limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	return r.collectOrders(ctx, rows)
}

func (r *orderRepository) collectOrders(ctx context.Context, rows *sql.Rows) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		items, err := loadOrderItems(ctx, r.db, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

// rowScanner покрывает *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order      domain.Order
		method     string
		status     string
		paymentRef sql.NullString
		appliedAt  sql.NullTime
		revertedAt sql.NullTime
	)

	err := row.Scan(
		&order.ID, &order.UserID, &order.UserEmail, &order.UserName, &order.Address,
		&method, &status, &order.TotalMinor, &paymentRef,
		&appliedAt, &revertedAt,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}

	order.PaymentMethod = domain.PaymentMethod(method)
	order.Status = domain.OrderStatus(status)
	if paymentRef.Valid {
		order.PaymentRef = paymentRef.String
	}
	if appliedAt.Valid {
		t := appliedAt.Time.UTC()
		order.InventoryAppliedAt = &t
	}
	if revertedAt.Valid {
		t := revertedAt.Time.UTC()
		order.InventoryRevertedAt = &t
	}

	return order, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadOrderItems(ctx context.Context, q queryer, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, image_path,
		       unit_price_minor, qty, subtotal_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.ImagePath,
			&item.UnitPriceMinor, &item.Qty, &item.SubtotalMinor, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
