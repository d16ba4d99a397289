package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/storefront/internal/events"
	"github.com/dukerupert/storefront/internal/repository"
)

// memStore is an in-memory repository.Store. ExecTx serialises
// transactions and rolls every table back when fn fails, which is enough
// to observe the all-or-nothing behaviour the services rely on.
type memStore struct {
	*memData
	mu sync.Mutex
}

type memData struct {
	products  map[uuid.UUID]repository.Product
	orders    map[uuid.UUID]repository.Order
	items     map[uuid.UUID][]repository.OrderItem
	history   map[uuid.UUID][]repository.OrderStatusHistory
	processed map[string]string
	seq       int64
	historyID int64

	// failOn makes the named method return the error.
	failOn map[string]error
}

var _ repository.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{memData: &memData{
		products:  make(map[uuid.UUID]repository.Product),
		orders:    make(map[uuid.UUID]repository.Order),
		items:     make(map[uuid.UUID][]repository.OrderItem),
		history:   make(map[uuid.UUID][]repository.OrderStatusHistory),
		processed: make(map[string]string),
		failOn:    make(map[string]error),
	}}
}

func (s *memStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.memData.clone()
	if err := fn(s.memData); err != nil {
		s.memData = snapshot
		return err
	}
	return nil
}

func (d *memData) clone() *memData {
	c := &memData{
		products:  make(map[uuid.UUID]repository.Product, len(d.products)),
		orders:    make(map[uuid.UUID]repository.Order, len(d.orders)),
		items:     make(map[uuid.UUID][]repository.OrderItem, len(d.items)),
		history:   make(map[uuid.UUID][]repository.OrderStatusHistory, len(d.history)),
		processed: make(map[string]string, len(d.processed)),
		seq:       d.seq,
		historyID: d.historyID,
		failOn:    d.failOn,
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.items {
		c.items[k] = append([]repository.OrderItem(nil), v...)
	}
	for k, v := range d.history {
		c.history[k] = append([]repository.OrderStatusHistory(nil), v...)
	}
	for k, v := range d.processed {
		c.processed[k] = v
	}
	return c
}

func (d *memData) fail(method string) error {
	return d.failOn[method]
}

// Test helpers.

func (d *memData) addProduct(name string, priceCents int64, stock int32) repository.Product {
	p := repository.Product{
		ID:         uuid.New(),
		Name:       name,
		ImageUrl:   "https://img.example.com/" + strings.ToLower(name) + ".jpg",
		PriceCents: priceCents,
		Stock:      stock,
		CreatedAt:  timestamptz(time.Now()),
		UpdatedAt:  timestamptz(time.Now()),
	}
	d.products[p.ID] = p
	return p
}

func (d *memData) stock(id uuid.UUID) int32 {
	return d.products[id].Stock
}

func (d *memData) order(id uuid.UUID) repository.Order {
	return d.orders[id]
}

func (d *memData) historyOf(id uuid.UUID) []repository.OrderStatusHistory {
	return d.history[id]
}

// Products

func (d *memData) CreateProduct(ctx context.Context, arg repository.CreateProductParams) (repository.Product, error) {
	if err := d.fail("CreateProduct"); err != nil {
		return repository.Product{}, err
	}
	return d.addProduct(arg.Name, arg.PriceCents, arg.Stock), nil
}

func (d *memData) GetProduct(ctx context.Context, id uuid.UUID) (repository.Product, error) {
	p, ok := d.products[id]
	if !ok {
		return repository.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (d *memData) GetProductForUpdate(ctx context.Context, id uuid.UUID) (repository.Product, error) {
	if err := d.fail("GetProductForUpdate"); err != nil {
		return repository.Product{}, err
	}
	return d.GetProduct(ctx, id)
}

func (d *memData) DecrementProductStock(ctx context.Context, arg repository.DecrementProductStockParams) (int64, error) {
	if err := d.fail("DecrementProductStock"); err != nil {
		return 0, err
	}
	p, ok := d.products[arg.ID]
	if !ok || p.Stock < arg.Quantity {
		return 0, nil
	}
	p.Stock -= arg.Quantity
	d.products[arg.ID] = p
	return 1, nil
}

func (d *memData) IncrementProductStock(ctx context.Context, arg repository.IncrementProductStockParams) (int64, error) {
	if err := d.fail("IncrementProductStock"); err != nil {
		return 0, err
	}
	p, ok := d.products[arg.ID]
	if !ok {
		return 0, nil
	}
	p.Stock += arg.Quantity
	d.products[arg.ID] = p
	return 1, nil
}

func (d *memData) AdjustProductStock(ctx context.Context, arg repository.AdjustProductStockParams) (repository.Product, error) {
	if err := d.fail("AdjustProductStock"); err != nil {
		return repository.Product{}, err
	}
	p, ok := d.products[arg.ID]
	if !ok || p.Stock+arg.Delta < 0 {
		return repository.Product{}, pgx.ErrNoRows
	}
	p.Stock += arg.Delta
	d.products[arg.ID] = p
	return p, nil
}

// Orders

func (d *memData) NextOrderSequence(ctx context.Context) (int64, error) {
	d.seq++
	return d.seq, nil
}

func (d *memData) CreateOrder(ctx context.Context, arg repository.CreateOrderParams) (repository.Order, error) {
	if err := d.fail("CreateOrder"); err != nil {
		return repository.Order{}, err
	}
	o := repository.Order{
		ID:                 uuid.New(),
		OrderNumber:        arg.OrderNumber,
		CustomerName:       arg.CustomerName,
		CustomerEmail:      arg.CustomerEmail,
		CustomerPhone:      arg.CustomerPhone,
		ShippingLine1:      arg.ShippingLine1,
		ShippingLine2:      arg.ShippingLine2,
		ShippingCity:       arg.ShippingCity,
		ShippingState:      arg.ShippingState,
		ShippingPostalCode: arg.ShippingPostalCode,
		ShippingCountry:    arg.ShippingCountry,
		SubtotalCents:      arg.SubtotalCents,
		ShippingCents:      arg.ShippingCents,
		TaxCents:           arg.TaxCents,
		TotalCents:         arg.TotalCents,
		Currency:           arg.Currency,
		Status:             arg.Status,
		PaymentMethod:      arg.PaymentMethod,
		PaymentStatus:      arg.PaymentStatus,
		CustomerNotes:      arg.CustomerNotes,
		CreatedAt:          arg.CreatedAt,
		UpdatedAt:          arg.CreatedAt,
	}
	d.orders[o.ID] = o
	return o, nil
}

func (d *memData) CreateOrderItem(ctx context.Context, arg repository.CreateOrderItemParams) (repository.OrderItem, error) {
	if err := d.fail("CreateOrderItem"); err != nil {
		return repository.OrderItem{}, err
	}
	item := repository.OrderItem{
		ID:             uuid.New(),
		OrderID:        arg.OrderID,
		ProductID:      arg.ProductID,
		ProductName:    arg.ProductName,
		ProductImage:   arg.ProductImage,
		Quantity:       arg.Quantity,
		UnitPriceCents: arg.UnitPriceCents,
		TotalCents:     arg.TotalCents,
		Position:       arg.Position,
	}
	d.items[arg.OrderID] = append(d.items[arg.OrderID], item)
	return item, nil
}

func (d *memData) CreateOrderStatusHistory(ctx context.Context, arg repository.CreateOrderStatusHistoryParams) (repository.OrderStatusHistory, error) {
	d.historyID++
	h := repository.OrderStatusHistory{
		ID:        d.historyID,
		OrderID:   arg.OrderID,
		Status:    arg.Status,
		Note:      arg.Note,
		CreatedAt: timestamptz(time.Now()),
	}
	d.history[arg.OrderID] = append(d.history[arg.OrderID], h)
	return h, nil
}

func (d *memData) GetOrder(ctx context.Context, id uuid.UUID) (repository.Order, error) {
	o, ok := d.orders[id]
	if !ok {
		return repository.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (d *memData) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (repository.Order, error) {
	return d.GetOrder(ctx, id)
}

func (d *memData) GetOrderByPaymentIntentID(ctx context.Context, paymentIntentID string) (repository.Order, error) {
	for _, o := range d.orders {
		if o.ExternalPaymentIntentID.Valid && o.ExternalPaymentIntentID.String == paymentIntentID {
			return o, nil
		}
	}
	return repository.Order{}, pgx.ErrNoRows
}

func (d *memData) GetOrderByPaymentIntentIDForUpdate(ctx context.Context, paymentIntentID string) (repository.Order, error) {
	if err := d.fail("GetOrderByPaymentIntentIDForUpdate"); err != nil {
		return repository.Order{}, err
	}
	return d.GetOrderByPaymentIntentID(ctx, paymentIntentID)
}

func (d *memData) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]repository.OrderItem, error) {
	return append([]repository.OrderItem(nil), d.items[orderID]...), nil
}

func (d *memData) ListOrderStatusHistory(ctx context.Context, orderID uuid.UUID) ([]repository.OrderStatusHistory, error) {
	return append([]repository.OrderStatusHistory(nil), d.history[orderID]...), nil
}

func (d *memData) sortedOrders(keep func(repository.Order) bool) []repository.Order {
	var out []repository.Order
	for _, o := range d.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Time.Equal(out[j].CreatedAt.Time) {
			return out[i].CreatedAt.Time.After(out[j].CreatedAt.Time)
		}
		return out[i].OrderNumber > out[j].OrderNumber
	})
	return out
}

func (d *memData) ListOrders(ctx context.Context, arg repository.ListOrdersParams) ([]repository.Order, error) {
	all := d.sortedOrders(func(o repository.Order) bool {
		if arg.Status.Valid && o.Status != arg.Status.String {
			return false
		}
		if arg.PaymentStatus.Valid && o.PaymentStatus != arg.PaymentStatus.String {
			return false
		}
		if arg.Email.Valid && !strings.EqualFold(o.CustomerEmail, arg.Email.String) {
			return false
		}
		return true
	})
	start := min(int(arg.Offset), len(all))
	end := min(start+int(arg.Limit), len(all))
	return all[start:end], nil
}

func (d *memData) ListOrdersByCustomerEmail(ctx context.Context, email string) ([]repository.Order, error) {
	return d.sortedOrders(func(o repository.Order) bool {
		return strings.EqualFold(o.CustomerEmail, email)
	}), nil
}

func (d *memData) ListStalePendingCardOrders(ctx context.Context, arg repository.ListStalePendingCardOrdersParams) ([]repository.Order, error) {
	out := d.sortedOrders(func(o repository.Order) bool {
		return o.PaymentMethod == "card" &&
			o.Status == "pending" &&
			o.PaymentStatus == "pending" &&
			!o.ExternalPaymentIntentID.Valid &&
			o.CreatedAt.Time.Before(arg.CreatedBefore.Time)
	})
	if len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (d *memData) UpdateOrderStatus(ctx context.Context, arg repository.UpdateOrderStatusParams) (repository.Order, error) {
	if err := d.fail("UpdateOrderStatus"); err != nil {
		return repository.Order{}, err
	}
	o, ok := d.orders[arg.ID]
	if !ok {
		return repository.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	o.PaymentStatus = arg.PaymentStatus
	o.UpdatedAt = timestamptz(time.Now())
	d.orders[arg.ID] = o
	return o, nil
}

func (d *memData) SetOrderPaymentIntent(ctx context.Context, arg repository.SetOrderPaymentIntentParams) (int64, error) {
	o, ok := d.orders[arg.ID]
	if !ok || o.ExternalPaymentIntentID.Valid {
		return 0, nil
	}
	o.ExternalPaymentIntentID = pgtype.Text{String: arg.ExternalPaymentIntentID, Valid: true}
	d.orders[arg.ID] = o
	return 1, nil
}

func (d *memData) UpdateOrderPaymentDetails(ctx context.Context, arg repository.UpdateOrderPaymentDetailsParams) error {
	o, ok := d.orders[arg.ID]
	if !ok {
		return nil
	}
	if arg.ExternalChargeID.Valid {
		o.ExternalChargeID = arg.ExternalChargeID
	}
	if arg.ExternalCustomerID.Valid {
		o.ExternalCustomerID = arg.ExternalCustomerID
	}
	d.orders[arg.ID] = o
	return nil
}

func (d *memData) DeleteOrder(ctx context.Context, id uuid.UUID) (int64, error) {
	if _, ok := d.orders[id]; !ok {
		return 0, nil
	}
	delete(d.orders, id)
	delete(d.items, id)
	delete(d.history, id)
	return 1, nil
}

func (d *memData) InsertProcessedWebhookEvent(ctx context.Context, arg repository.InsertProcessedWebhookEventParams) (int64, error) {
	if _, ok := d.processed[arg.EventID]; ok {
		return 0, nil
	}
	d.processed[arg.EventID] = arg.EventType
	return 1, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var errDatabase = errors.New("connection reset by peer")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
