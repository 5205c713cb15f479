package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chamarodfai/pos-api/internal/database"
	"github.com/chamarodfai/pos-api/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// Errors returned by the order service.
var (
	ErrEmptyItems      = errors.New("items are required")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	ErrInvalidRange    = errors.New("start must not be after end")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to append orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// OrderReader defines the DB methods needed to read the ledger.
// Satisfied by *database.Queries.
type OrderReader interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, limit int32) ([]database.Order, error)
	ListOrdersBetween(ctx context.Context, arg database.ListOrdersBetweenParams) ([]database.Order, error)
	ListOrderItemsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
}

// OrderListener is told about every committed order. Listeners run on a
// background worker, after CreateOrder has returned. A listener error is
// logged; the order stays committed.
type OrderListener interface {
	OrderCreated(ctx context.Context, order model.Order) error
}

const (
	listenerQueueSize = 256
	listenerTimeout   = 5 * time.Second
)

// OrderService is the order ledger: it appends finalized carts and reads
// them back for listings and reports.
type OrderService struct {
	pool      TxBeginner
	newStore  NewOrderStore
	reader    OrderReader
	logger    *zap.Logger
	listeners []OrderListener

	mu     sync.RWMutex
	closed bool
	queue  chan model.Order
	done   chan struct{}
}

// NewOrderService creates a new OrderService and starts the worker that
// notifies listeners. Call Close to drain it.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, reader OrderReader, logger *zap.Logger, listeners ...OrderListener) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &OrderService{
		pool:      pool,
		newStore:  newStore,
		reader:    reader,
		logger:    logger,
		listeners: listeners,
		queue:     make(chan model.Order, listenerQueueSize),
		done:      make(chan struct{}),
	}
	go s.notifyLoop()
	return s
}

// Close stops accepting notifications and waits until every queued order
// has been handed to the listeners.
func (s *OrderService) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *OrderService) notifyLoop() {
	defer close(s.done)
	for order := range s.queue {
		for _, l := range s.listeners {
			s.notify(l, order)
		}
	}
}

func (s *OrderService) notify(l OrderListener, order model.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
	defer cancel()
	if err := l.OrderCreated(ctx, order.Clone()); err != nil {
		s.logger.Warn("order listener failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
	}
}

// enqueue never blocks the caller. A full queue drops the notification.
func (s *OrderService) enqueue(order model.Order) {
	if len(s.listeners) == 0 {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("order service closed, listeners not notified",
			zap.String("order_id", order.ID.String()))
		return
	}
	select {
	case s.queue <- order:
	default:
		s.logger.Warn("order listener queue full, dropping notification",
			zap.String("order_id", order.ID.String()))
	}
}

// CreateOrder writes the order and its line items in one transaction and
// returns the stored order with its assigned id and timestamp.
func (s *OrderService) CreateOrder(ctx context.Context, order model.Order) (model.Order, error) {
	if len(order.Items) == 0 {
		return model.Order{}, ErrEmptyItems
	}
	for i, li := range order.Items {
		if li.Quantity <= 0 {
			return model.Order{}, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	saved, err := s.createOrderTx(ctx, order)
	if err != nil {
		return model.Order{}, err
	}

	s.logger.Info("order created",
		zap.String("order_id", saved.ID.String()),
		zap.Int("items", len(saved.Items)),
		zap.String("total", saved.Total.StringFixed(2)))

	s.enqueue(saved.Clone())
	return saved, nil
}

// createOrderTx executes the full order insert in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, order model.Order) (model.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	params := database.CreateOrderParams{
		Subtotal:  DecimalToNumeric(order.Subtotal),
		Discount:  DecimalToNumeric(order.Discount),
		Total:     DecimalToNumeric(order.Total),
		CreatedAt: TimeOrNull(order.CreatedAt),
	}
	if p := order.Promotion; p != nil {
		params.PromotionID = pgtype.UUID{Bytes: p.ID, Valid: true}
		params.PromotionName = pgtype.Text{String: p.Name, Valid: true}
		params.PromotionType = pgtype.Text{String: p.Kind.String(), Valid: true}
		params.PromotionValue = DecimalToNumeric(p.Value)
	}

	row, err := store.CreateOrder(ctx, params)
	if err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}

	itemRows := make([]database.OrderItem, 0, len(order.Items))
	for i, li := range order.Items {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    row.ID,
			Position:   int32(i),
			MenuItemID: li.ItemID,
			Name:       li.Name,
			Price:      DecimalToNumeric(li.UnitPrice),
			Cost:       DecimalToNumeric(li.UnitCost),
			Quantity:   int32(li.Quantity),
			Subtotal:   DecimalToNumeric(li.LineTotal()),
			TotalCost:  DecimalToNumeric(li.LineCost()),
		})
		if err != nil {
			return model.Order{}, fmt.Errorf("create order item: %w", err)
		}
		itemRows = append(itemRows, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	return OrderFromRows(row, itemRows), nil
}

// GetOrder returns one order with its items. A missing order yields an
// error wrapping pgx.ErrNoRows.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (model.Order, error) {
	row, err := s.reader.GetOrder(ctx, id)
	if err != nil {
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}
	orders, err := s.attachItems(ctx, []database.Order{row})
	if err != nil {
		return model.Order{}, err
	}
	return orders[0], nil
}

// ListOrders returns the most recent orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := s.reader.ListOrders(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return s.attachItems(ctx, rows)
}

// OrdersBetween returns every order created within [start, end].
func (s *OrderService) OrdersBetween(ctx context.Context, start, end time.Time) ([]model.Order, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}
	rows, err := s.reader.ListOrdersBetween(ctx, database.ListOrdersBetweenParams{Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("list orders between: %w", err)
	}
	return s.attachItems(ctx, rows)
}

func (s *OrderService) attachItems(ctx context.Context, rows []database.Order) ([]model.Order, error) {
	if len(rows) == 0 {
		return []model.Order{}, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	items, err := s.reader.ListOrderItemsByOrderIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	byOrder := make(map[uuid.UUID][]database.OrderItem, len(rows))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}

	out := make([]model.Order, len(rows))
	for i, r := range rows {
		out[i] = OrderFromRows(r, byOrder[r.ID])
	}
	return out, nil
}
