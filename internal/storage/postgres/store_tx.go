package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/nursery/internal/domain"
)

// WithinTx выполняет fn в одной SQL-транзакции. Чтения ForUpdate внутри fn
// держат блокировки строк до коммита, поэтому проверка маркеров инвентаря и
// списание остатков атомарны между конкурентными экземплярами сервиса.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.StoreTx) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	st := &sqlStoreTx{ctx: ctx, tx: tx}
	if err := fn(st); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqlStoreTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqlStoreTx) OrderForUpdate(id string) (domain.Order, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, err
	}

	items, err := loadOrderItems(t.ctx, t.tx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (t *sqlStoreTx) ProductForUpdate(id string) (domain.Product, error) {
	var (
		p            domain.Product
		deletedAt    sql.NullTime
		deleteReason sql.NullString
	)

	err := t.tx.QueryRowContext(t.ctx, `
		SELECT id, name, seller_email, image_path, size_label, care_notes,
		       price_minor, stock, sold, deleted_at, delete_reason,
		       created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&p.ID, &p.Name, &p.SellerEmail, &p.ImagePath, &p.SizeLabel, &p.CareNotes,
		&p.PriceMinor, &p.Stock, &p.Sold, &deletedAt, &deleteReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product for update: %w", err)
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

func (t *sqlStoreTx) InsertOrder(order domain.Order) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO orders (
			id, user_id, user_email, user_name, address,
			payment_method, status, total_minor, payment_ref,
			inventory_applied_at, inventory_reverted_at,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		order.ID, order.UserID, order.UserEmail, order.UserName, order.Address,
		string(order.PaymentMethod), string(order.Status), order.TotalMinor, nullString(order.PaymentRef),
		nullTime(order.InventoryAppliedAt), nullTime(order.InventoryRevertedAt),
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err := t.tx.ExecContext(t.ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, product_name, image_path,
				unit_price_minor, qty, subtotal_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			item.ID, order.ID, item.ProductID, item.ProductName, item.ImagePath,
			item.UnitPriceMinor, item.Qty, item.SubtotalMinor, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

func (t *sqlStoreTx) AdjustProduct(id string, stockDelta, soldDelta int64) error {
	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE products
		SET stock = stock + $2,
		    sold = sold + $3,
		    updated_at = $4
		WHERE id = $1
	`, id, stockDelta, soldDelta, time.Now().UTC())
	if err != nil {
		// CHECK (stock >= 0) — последний рубеж против ухода остатка в минус.
		if isCheckViolation(err) {
			return domain.ErrProductStockNegative
		}
		return fmt.Errorf("adjust product counters: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for product adjust: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

func (t *sqlStoreTx) SaveOrderReconciliation(order domain.Order) error {
	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE orders
		SET status = $2,
		    payment_ref = $3,
		    inventory_applied_at = $4,
		    inventory_reverted_at = $5,
		    version = version + 1,
		    updated_at = $6
		WHERE id = $1
		  AND version = $7
	`,
		order.ID,
		string(order.Status),
		nullString(order.PaymentRef),
		nullTime(order.InventoryAppliedAt),
		nullTime(order.InventoryRevertedAt),
		time.Now().UTC(),
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("save order reconciliation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for order save: %w", err)
	}
	if affected == 0 {
		exists, err := t.orderExists(order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

func (t *sqlStoreTx) EnqueueOutbox(msg domain.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	if _, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,'pending',0,$6,$7)
	`,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, now, now,
	); err != nil {
		return fmt.Errorf("enqueue outbox message in tx: %w", err)
	}

	return nil
}

func (t *sqlStoreTx) orderExists(id string) (bool, error) {
	var found string
	err := t.tx.QueryRowContext(t.ctx, `SELECT id FROM orders WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514"
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ domain.Store = (*Store)(nil)
var _ domain.StoreTx = (*sqlStoreTx)(nil)
