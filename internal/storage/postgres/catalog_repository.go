package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type catalogRepository struct {
	q querier
}

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Stock)
	return p, err
}

func (r catalogRepository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := scanProduct(r.q.QueryRowContext(ctx, `
		SELECT id, name, unit_price, stock
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, classifyError("select product", err)
	}
	return product, nil
}

// LockProducts берёт FOR UPDATE на товары в порядке id, чтобы встречные резервы не зацикливались.
func (r catalogRepository) LockProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, unit_price, stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, sorted)
	if err != nil {
		return nil, classifyError("lock products", err)
	}
	defer rows.Close()

	result := make(map[string]domain.Product, len(sorted))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, classifyError("scan product", err)
		}
		result[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("iterate products", err)
	}
	return result, nil
}

// DecrementStock уменьшает остаток одним UPDATE с условием stock >= amount.
func (r catalogRepository) DecrementStock(ctx context.Context, cmd domain.ReserveStock) (domain.Product, error) {
	if err := cmd.Validate(); err != nil {
		return domain.Product{}, err
	}

	product, err := scanProduct(r.q.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND stock >= $2
		RETURNING id, name, unit_price, stock
	`, cmd.ProductID, cmd.Amount))
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, classifyError("decrement stock", err)
	}

	current, err := r.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{}, &domain.InsufficientStockError{
		ProductID: cmd.ProductID,
		Requested: cmd.Amount,
		Available: current.Stock,
	}
}

// CatalogRepository: администрирование каталога вне транзакций движка.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию CatalogAdmin.
func NewCatalogRepository(store *Store) *CatalogRepository {
	return &CatalogRepository{db: store.DB()}
}

// UpsertProduct создаёт или обновляет товар.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product.ID = strings.TrimSpace(product.ID)
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	saved, err := scanProduct(r.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, unit_price, stock, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    unit_price = EXCLUDED.unit_price,
		    stock = EXCLUDED.stock,
		    updated_at = NOW()
		RETURNING id, name, unit_price, stock
	`, product.ID, product.Name, product.UnitPrice.Round(2), product.Stock))
	if err != nil {
		return domain.Product{}, classifyError("upsert product", err)
	}
	return saved, nil
}

// GetProduct возвращает зафиксированное состояние товара.
func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return catalogRepository{q: r.db}.GetProduct(ctx, id)
}

// AddLine добавляет товар в корзину; повторное добавление суммирует количество.
func (r *CatalogRepository) AddLine(ctx context.Context, userID string, line domain.CartLine) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrUserRequired
	}
	if err := line.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity, added_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, userID, line.ProductID, line.Quantity)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrProductNotFound
		}
		return classifyError("add cart line", err)
	}
	return nil
}

// CartLines возвращает корзину пользователя без блокировки.
func (r *CatalogRepository) CartLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return queryCartLines(ctx, r.db, userID, false)
}

var (
	_ domain.CatalogTx    = catalogRepository{}
	_ domain.CatalogAdmin = (*CatalogRepository)(nil)
	_ domain.CartWriter   = (*CatalogRepository)(nil)
)

type cartRepository struct {
	q querier
}

// Lines читает корзину FOR UPDATE: параллельное оформление той же корзины ждёт фиксации.
func (r cartRepository) Lines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return queryCartLines(ctx, r.q, userID, true)
}

func (r cartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return classifyError("clear cart", err)
	}
	return nil
}

func queryCartLines(ctx context.Context, q querier, userID string, forUpdate bool) ([]domain.CartLine, error) {
	query := `
		SELECT product_id, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY id`
	if forUpdate {
		query += " FOR UPDATE"
	}

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, classifyError("select cart", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Quantity); err != nil {
			return nil, classifyError("scan cart line", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("iterate cart lines", err)
	}
	return lines, nil
}

var _ domain.CartTx = cartRepository{}
