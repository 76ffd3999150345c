package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements the order persistence interfaces on top of a pgx pool.
type Store struct{ DB *pgxpool.Pool }

var (
	_ orders.Store             = (*Store)(nil)
	_ orders.AddressBook       = (*Store)(nil)
	_ orders.OrderDataProvider = (*Store)(nil)
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const orderColumns = `id, user_id, status, payment_method, subtotal, freight, discount, total,
	payment_id, payment_type, paid_at, expires_at, created_at, idempotency_key`

const (
	uniqueViolation       = "23505"
	idempotencyConstraint = "orders_user_idempotency_key"
)

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txStore{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	return getOrder(ctx, s.DB, orderID, false)
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID int64) ([]*orders.Order, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*orders.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return []*orders.Order{}, nil
	}

	ids := make([]string, len(out))
	byID := make(map[string]*orders.Order, len(out))
	for i, o := range out {
		ids[i] = o.ID
		byID[o.ID] = o
	}
	items, err := loadItems(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		o := byID[it.OrderID]
		o.Items = append(o.Items, it)
	}
	return out, nil
}

func (s *Store) FindOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*orders.Order, error) {
	var id string
	err := s.DB.QueryRow(ctx, `SELECT id FROM orders WHERE user_id=$1 AND idempotency_key=$2`, userID, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return getOrder(ctx, s.DB, id, false)
}

// MarkPaid only touches rows still PENDING, so concurrent settlements
// serialize on the row and the loser sees zero rows affected.
func (s *Store) MarkPaid(ctx context.Context, orderID string, st orders.Settlement) (bool, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return false, nil
	}
	ct, err := s.DB.Exec(ctx, `
		UPDATE orders
		SET status='PAID', payment_id=$2, payment_type=$3, paid_at=$4
		WHERE id=$1 AND status='PENDING'`,
		orderID, st.PaymentID, st.PaymentType, st.PaidAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (s *Store) GetDefaultAddress(ctx context.Context, userID int64) (*orders.Address, error) {
	var a orders.Address
	err := s.DB.QueryRow(ctx, `
		SELECT id, user_id, zip_code, is_default FROM addresses
		WHERE user_id=$1 AND is_default LIMIT 1`, userID).
		Scan(&a.ID, &a.UserID, &a.ZipCode, &a.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNoDefaultAddress
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) GetOrderData(ctx context.Context, orderID string) (*orders.OrderData, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, orders.ErrNotFound
	}
	var d orders.OrderData
	var status, method string
	err := s.DB.QueryRow(ctx, `
		SELECT o.id, o.status, o.payment_method, o.total, u.email, u.name, u.cpf
		FROM orders o JOIN users u ON u.id = o.user_id
		WHERE o.id=$1`, orderID).
		Scan(&d.OrderID, &status, &method, &d.Total, &d.Email, &d.Name, &d.TaxID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Status = orders.Status(status)
	d.PaymentMethod = orders.PaymentMethod(method)
	return &d, nil
}

// txStore is the transaction-scoped handle given to WithTx callbacks.
type txStore struct{ q querier }

func (t *txStore) GetStockWithProduct(ctx context.Context, stockID string) (*orders.StockWithProduct, error) {
	var sp orders.StockWithProduct
	err := t.q.QueryRow(ctx, `
		SELECT s.id, s.product_id, s.size, s.color, s.quantity,
		       p.id, p.name, p.price, p.weight, p.height, p.width, p.length
		FROM stocks s JOIN products p ON p.id = s.product_id
		WHERE s.id=$1
		FOR UPDATE OF s`, stockID).
		Scan(&sp.Stock.ID, &sp.Stock.ProductID, &sp.Stock.Size, &sp.Stock.Color, &sp.Stock.Quantity,
			&sp.Product.ID, &sp.Product.Name, &sp.Product.Price,
			&sp.Product.Weight, &sp.Product.Height, &sp.Product.Width, &sp.Product.Length)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (t *txStore) DecrementStock(ctx context.Context, stockID string, qty int) error {
	ct, err := t.q.Exec(ctx, `UPDATE stocks SET quantity = quantity - $2 WHERE id=$1 AND quantity >= $2`, stockID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrInsufficientStock
	}
	return nil
}

func (t *txStore) IncrementStock(ctx context.Context, stockID string, qty int) error {
	_, err := t.q.Exec(ctx, `UPDATE stocks SET quantity = quantity + $2 WHERE id=$1`, stockID, qty)
	return err
}

func (t *txStore) InsertOrder(ctx context.Context, o *orders.Order) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO orders(`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.UserID, string(o.Status), string(o.PaymentMethod),
		o.Subtotal, o.Freight, o.Discount, o.Total,
		o.PaymentID, o.PaymentType, o.PaidAt, o.ExpiresAt, o.CreatedAt, o.IdempotencyKey)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == idempotencyConstraint {
		return orders.ErrDuplicateOrder
	}
	if err != nil {
		return err
	}

	for i, it := range o.Items {
		if _, err := t.q.Exec(ctx, `
			INSERT INTO order_items(id, order_id, position, product_id, product_name, product_price,
			                        stock_id, size, color, quantity)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			it.ID, o.ID, i, it.ProductID, it.ProductName, it.ProductPrice,
			it.StockID, it.Size, it.Color, it.Quantity); err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
	}
	return nil
}

func (t *txStore) GetOrderForUpdate(ctx context.Context, orderID string) (*orders.Order, error) {
	return getOrder(ctx, t.q, orderID, true)
}

func (t *txStore) SetStatus(ctx context.Context, orderID string, from, to orders.Status) (bool, error) {
	ct, err := t.q.Exec(ctx, `UPDATE orders SET status=$3 WHERE id=$1 AND status=$2`,
		orderID, string(from), string(to))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func getOrder(ctx context.Context, q querier, orderID string, lock bool) (*orders.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, orders.ErrNotFound
	}
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if lock {
		sql += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	o, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (*orders.Order, error) {
		return scanOrder(row)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := loadItems(ctx, q, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func scanOrder(row pgx.Row) (*orders.Order, error) {
	var (
		o              orders.Order
		status, method string
	)
	err := row.Scan(&o.ID, &o.UserID, &status, &method,
		&o.Subtotal, &o.Freight, &o.Discount, &o.Total,
		&o.PaymentID, &o.PaymentType, &o.PaidAt, &o.ExpiresAt, &o.CreatedAt, &o.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	o.Status = orders.Status(status)
	o.PaymentMethod = orders.PaymentMethod(method)
	o.Items = []orders.OrderItem{}
	return &o, nil
}

func loadItems(ctx context.Context, q querier, orderIDs []string) ([]orders.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_name, product_price, stock_id, size, color, quantity
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (orders.OrderItem, error) {
		var it orders.OrderItem
		err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductPrice,
			&it.StockID, &it.Size, &it.Color, &it.Quantity)
		return it, err
	})
}
