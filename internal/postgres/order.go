package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vardenhq/varden/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that OrderStore implements domain.OrderStore.
var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a new PostgreSQL-backed order store.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// FindOrder returns the order snapshot with its line items.
func (s *OrderStore) FindOrder(ctx context.Context, orderID string) (*domain.OrderSnapshot, error) {
	const orderQuery = `
		SELECT id, currency, total_cents, refunded_total_cents,
		       payment_intent_id, charge_id, processor_account_id, created_at
		FROM orders
		WHERE id = $1`

	var order domain.OrderSnapshot
	err := s.pool.QueryRow(ctx, orderQuery, orderID).Scan(
		&order.ID,
		&order.Currency,
		&order.TotalCents,
		&order.RefundedTotalCents,
		&order.PaymentIntentID,
		&order.ChargeID,
		&order.ProcessorAccountID,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, "order.find", "failed to get order")
	}

	const itemsQuery = `
		SELECT item_id, quantity, unit_amount_cents, amount_total_cents,
		       amount_tax_cents, product_name
		FROM order_items
		WHERE order_id = $1
		ORDER BY item_id`

	rows, err := s.pool.Query(ctx, itemsQuery, orderID)
	if err != nil {
		return nil, domain.Internal(err, "order.find", "failed to list order items")
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ItemID,
			&item.Quantity,
			&item.UnitAmountCents,
			&item.AmountTotalCents,
			&item.AmountTaxCents,
			&item.ProductName,
		); err != nil {
			return nil, domain.Internal(err, "order.find", "failed to scan order item")
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.find", "failed to read order items")
	}

	return &order, nil
}

// ListRefundsForOrder returns the order's refund audit records, oldest
// first. Pass nil statuses for all records.
func (s *OrderStore) ListRefundsForOrder(ctx context.Context, orderID string, statuses []domain.RefundStatus) ([]domain.RefundRecord, error) {
	query := `
		SELECT id, order_id, processor_refund_id, amount_cents, status,
		       selections, restocking_fee_cents, refund_shipping_cents,
		       reason, notes, idempotency_key, created_at
		FROM refunds
		WHERE order_id = $1`
	args := []any{orderID}

	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, status := range statuses {
			values[i] = string(status)
		}
		query += ` AND status = ANY($2)`
		args = append(args, values)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Internal(err, "refund.list", "failed to list refunds")
	}
	defer rows.Close()

	var records []domain.RefundRecord
	for rows.Next() {
		record, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "refund.list", "failed to read refunds")
	}

	return records, nil
}

// CreateRefundRecord appends one immutable refund audit record.
func (s *OrderStore) CreateRefundRecord(ctx context.Context, record domain.RefundRecord) (*domain.RefundRecord, error) {
	selections, err := domain.MarshalSelections(record.Selections)
	if err != nil {
		return nil, domain.Internal(err, "refund.create_record", "failed to encode selections")
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	const query = `
		INSERT INTO refunds (
			id, order_id, processor_refund_id, amount_cents, status,
			selections, restocking_fee_cents, refund_shipping_cents,
			reason, notes, idempotency_key
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	err = s.pool.QueryRow(ctx, query,
		record.ID,
		record.OrderID,
		record.ProcessorRefundID,
		record.AmountCents,
		string(record.Status),
		selections,
		record.RestockingFeeCents,
		record.RefundShippingCents,
		string(record.Reason),
		record.Notes,
		record.IdempotencyKey,
	).Scan(&record.CreatedAt)
	if err != nil {
		return nil, domain.Internal(err, "refund.create_record", "failed to insert refund record")
	}

	return &record, nil
}

// ReserveRefundable atomically claims amountCents of the order's remaining
// refundable balance. The conditional update is the concurrency control: a
// competing refund that committed first shrinks the balance and makes this
// update miss.
func (s *OrderStore) ReserveRefundable(ctx context.Context, orderID string, amountCents int64) error {
	const query = `
		UPDATE orders
		SET refunded_total_cents = refunded_total_cents + $2
		WHERE id = $1
		  AND refunded_total_cents + $2 <= total_cents`

	tag, err := s.pool.Exec(ctx, query, orderID, amountCents)
	if err != nil {
		return domain.Internal(err, "refund.reserve", "failed to reserve refundable balance")
	}
	if tag.RowsAffected() == 0 {
		// Either the order is gone or the balance moved under us.
		if _, findErr := s.FindOrder(ctx, orderID); findErr != nil {
			return findErr
		}
		return domain.Unprocessable("refund.reserve",
			fmt.Sprintf("refund of %d cents exceeds the order's remaining refundable balance", amountCents))
	}
	return nil
}

// ReleaseRefundable hands a reservation back after a failed or voided
// processor call.
func (s *OrderStore) ReleaseRefundable(ctx context.Context, orderID string, amountCents int64) error {
	const query = `
		UPDATE orders
		SET refunded_total_cents = GREATEST(refunded_total_cents - $2, 0)
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, orderID, amountCents)
	if err != nil {
		return domain.Internal(err, "refund.release", "failed to release refundable balance")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// scanRefund maps one refunds row, decoding persisted selections through
// the normalizing boundary so legacy untagged entries come back classified.
func scanRefund(row pgx.Row) (*domain.RefundRecord, error) {
	var (
		record     domain.RefundRecord
		status     string
		reason     string
		selections []byte
	)
	if err := row.Scan(
		&record.ID,
		&record.OrderID,
		&record.ProcessorRefundID,
		&record.AmountCents,
		&status,
		&selections,
		&record.RestockingFeeCents,
		&record.RefundShippingCents,
		&reason,
		&record.Notes,
		&record.IdempotencyKey,
		&record.CreatedAt,
	); err != nil {
		return nil, domain.Internal(err, "refund.scan", "failed to scan refund record")
	}

	record.Status = domain.RefundStatus(status)
	record.Reason = domain.RefundReason(reason)

	decoded, err := domain.UnmarshalSelections(selections)
	if err != nil {
		return nil, domain.Internal(err, "refund.scan", "failed to decode selections")
	}
	record.Selections = decoded

	return &record, nil
}
