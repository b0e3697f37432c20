package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

const orderColumns = `id, user_id, status, payment_method, total, created_at, updated_at`

var errOrderExists = errors.New("order already exists")

type orderWriter struct {
	q querier
}

func (w orderWriter) InsertOrder(ctx context.Context, order domain.Order) error {
	_, err := w.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		order.ID, order.UserID, string(order.Status), nullablePaymentMethod(order.PaymentMethod),
		order.Total, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", errOrderExists, order.ID)
		}
		return classifyError("insert order", err)
	}
	return nil
}

func (w orderWriter) InsertLine(ctx context.Context, orderID string, line domain.OrderLine) error {
	_, err := w.q.ExecContext(ctx, `
		INSERT INTO order_lines (id, order_id, product_id, product_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, line.ID, orderID, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrOrderNotFound
		}
		return classifyError("insert order line", err)
	}
	return nil
}

func (w orderWriter) LockOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := scanOrder(w.q.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, classifyError("lock order", err)
	}

	orders := []domain.Order{order}
	if err := attachDetails(ctx, w.q, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (w orderWriter) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	res, err := w.q.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
	`, id, string(status), at)
	if err != nil {
		return classifyError("update order status", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return classifyError("rows affected", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (w orderWriter) RecordPayment(ctx context.Context, payment domain.Payment) (bool, error) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}

	res, err := w.q.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, amount, method, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id) DO NOTHING
	`,
		payment.ID, payment.OrderID, payment.Amount, nullablePaymentMethod(payment.Method),
		string(payment.Status), payment.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, domain.ErrOrderNotFound
		}
		return false, classifyError("insert payment", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, classifyError("rows affected", err)
	}
	return affected == 1, nil
}

var _ domain.OrderTx = orderWriter{}

// Get возвращает заказ с позициями и записью об оплате.
func (s *Store) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	orders, err := s.queryOrders(ctx, `WHERE id = $1`, 0, id)
	if err != nil {
		return domain.Order{}, err
	}
	if len(orders) == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return orders[0], nil
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.queryOrders(ctx, `WHERE user_id = $1`, limit, userID)
}

// ListAll возвращает все заказы, новые первыми.
func (s *Store) ListAll(ctx context.Context, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.queryOrders(ctx, ``, limit)
}

// ListByStatus возвращает заказы в статусе status, новые первыми.
func (s *Store) ListByStatus(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.queryOrders(ctx, `WHERE status = $1`, limit, string(status))
}

func (s *Store) queryOrders(ctx context.Context, where string, limit int, args ...any) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ` + where + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyError("list orders", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, classifyError("scan order row", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("iterate order rows", err)
	}

	if err := attachDetails(ctx, s.db, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func scanOrder(row interface{ Scan(...any) error }) (domain.Order, error) {
	var (
		order  domain.Order
		status string
		method sql.NullString
	)
	if err := row.Scan(
		&order.ID, &order.UserID, &status, &method,
		&order.Total, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentMethod = parseNullablePaymentMethod(method)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

// attachDetails загружает позиции и оплаты для набора заказов двумя запросами.
func attachDetails(ctx context.Context, q querier, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
		index[order.ID] = i
	}

	lineRows, err := q.QueryContext(ctx, `
		SELECT order_id, id, product_id, product_name, quantity, unit_price
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, seq
	`, ids)
	if err != nil {
		return classifyError("load order lines", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var (
			orderID string
			line    domain.OrderLine
		)
		if err := lineRows.Scan(&orderID, &line.ID, &line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice); err != nil {
			return classifyError("scan order line", err)
		}
		i := index[orderID]
		orders[i].Lines = append(orders[i].Lines, line)
	}
	if err := lineRows.Err(); err != nil {
		return classifyError("iterate order lines", err)
	}

	paymentRows, err := q.QueryContext(ctx, `
		SELECT id, order_id, amount, method, status, created_at
		FROM payments
		WHERE order_id = ANY($1)
	`, ids)
	if err != nil {
		return classifyError("load payments", err)
	}
	defer paymentRows.Close()

	for paymentRows.Next() {
		var (
			payment domain.Payment
			method  sql.NullString
			status  string
		)
		if err := paymentRows.Scan(&payment.ID, &payment.OrderID, &payment.Amount, &method, &status, &payment.CreatedAt); err != nil {
			return classifyError("scan payment", err)
		}
		payment.Method = parseNullablePaymentMethod(method)
		payment.Status = domain.PaymentStatus(status)
		payment.CreatedAt = payment.CreatedAt.UTC()
		orders[index[payment.OrderID]].Payment = &payment
	}
	if err := paymentRows.Err(); err != nil {
		return classifyError("iterate payments", err)
	}
	return nil
}

func nullablePaymentMethod(method *domain.PaymentMethod) sql.NullString {
	if method == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*method), Valid: true}
}

func parseNullablePaymentMethod(raw sql.NullString) *domain.PaymentMethod {
	if !raw.Valid {
		return nil
	}
	method := domain.PaymentMethod(raw.String)
	return &method
}

var _ domain.OrderReader = (*Store)(nil)
