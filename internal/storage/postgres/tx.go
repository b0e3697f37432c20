package postgres

import (
	"database/sql"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// pgTx раздаёт репозитории, работающие поверх одной *sql.Tx.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Catalog() domain.CatalogTx { return catalogRepository{q: t.tx} }

func (t *pgTx) Cart() domain.CartTx { return cartRepository{q: t.tx} }

func (t *pgTx) Orders() domain.OrderTx { return orderWriter{q: t.tx} }

func (t *pgTx) Outbox() domain.OutboxWriter { return outboxWriter{q: t.tx} }

func (t *pgTx) Timeline() domain.TimelineWriter { return timelineWriter{q: t.tx} }

var _ domain.Tx = (*pgTx)(nil)
