// Package memory is an in-process storage backend. Units of work are
// serialized and rolled back by restoring a snapshot; reads outside a unit of
// work may observe writes of the running one.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/bom"
	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/procurement"
	"github.com/odyssey-erp/odyssey-stock/internal/production"
	"github.com/odyssey-erp/odyssey-stock/internal/sales"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
	"github.com/odyssey-erp/odyssey-stock/internal/storage"
)

type state struct {
	products   map[int64]catalog.Product
	colors     map[int64]catalog.Color
	customers  map[int64]catalog.Customer
	movements  []ledger.Movement
	edges      map[int64]map[int64]bom.Edge
	purchases  map[int64]procurement.Order
	sales      map[int64]sales.Order
	production map[int64]production.Order
	seq        map[string]int64
}

func newState() state {
	return state{
		products:   make(map[int64]catalog.Product),
		colors:     make(map[int64]catalog.Color),
		customers:  make(map[int64]catalog.Customer),
		edges:      make(map[int64]map[int64]bom.Edge),
		purchases:  make(map[int64]procurement.Order),
		sales:      make(map[int64]sales.Order),
		production: make(map[int64]production.Order),
		seq:        make(map[string]int64),
	}
}

// clone copies every map. Stored values are never mutated in place, so a
// shallow copy of each map is a consistent snapshot; movements only grow.
func (s state) clone() state {
	c := state{
		products:   cloneMap(s.products),
		colors:     cloneMap(s.colors),
		customers:  cloneMap(s.customers),
		movements:  s.movements[:len(s.movements):len(s.movements)],
		edges:      make(map[int64]map[int64]bom.Edge, len(s.edges)),
		purchases:  cloneMap(s.purchases),
		sales:      cloneMap(s.sales),
		production: cloneMap(s.production),
		seq:        cloneMap(s.seq),
	}
	for k, v := range s.edges {
		c.edges[k] = cloneMap(v)
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Backend is the in-memory storage backend.
type Backend struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	data  state
	clock shared.Clock
}

// New returns an empty backend.
func New(clock shared.Clock) *Backend {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Backend{data: newState(), clock: clock}
}

var _ storage.Backend = (*Backend)(nil)

// WithTx implements storage.Backend.
func (b *Backend) WithTx(ctx context.Context, fn func(context.Context, storage.Tx) error) error {
	b.txMu.Lock()
	defer b.txMu.Unlock()

	b.mu.Lock()
	snapshot := b.data.clone()
	b.mu.Unlock()

	if err := fn(ctx, b); err != nil {
		b.mu.Lock()
		b.data = snapshot
		b.mu.Unlock()
		return err
	}
	return nil
}

// Reader implements storage.Backend.
func (b *Backend) Reader() storage.Tx {
	return b
}

// Close implements storage.Backend.
func (b *Backend) Close() {}

func (b *Backend) next(table string) int64 {
	b.data.seq[table]++
	return b.data.seq[table]
}

// ============================================================================
// CATALOG
// ============================================================================

func (b *Backend) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.data.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (b *Backend) GetProductByCode(ctx context.Context, code string) (catalog.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.data.products {
		if p.Code == code {
			return p, nil
		}
	}
	return catalog.Product{}, catalog.ErrProductNotFound
}

func (b *Backend) ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]catalog.Product, 0)
	for _, p := range b.data.products {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (b *Backend) CreateProduct(ctx context.Context, p catalog.Product) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p.ID = b.next("products")
	b.data.products[p.ID] = p
	return p.ID, nil
}

func (b *Backend) UpdateProduct(ctx context.Context, p catalog.Product) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data.products[p.ID]; !ok {
		return catalog.ErrProductNotFound
	}
	b.data.products[p.ID] = p
	return nil
}

func (b *Backend) GetColor(ctx context.Context, id int64) (catalog.Color, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.data.colors[id]
	if !ok {
		return catalog.Color{}, catalog.ErrColorNotFound
	}
	return c, nil
}

func (b *Backend) ListColors(ctx context.Context) ([]catalog.Color, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]catalog.Color, 0, len(b.data.colors))
	for _, c := range b.data.colors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *Backend) CreateColor(ctx context.Context, c catalog.Color) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.ID = b.next("colors")
	b.data.colors[c.ID] = c
	return c.ID, nil
}

func (b *Backend) GetCustomer(ctx context.Context, id int64) (catalog.Customer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.data.customers[id]
	if !ok {
		return catalog.Customer{}, catalog.ErrCustomerNotFound
	}
	return c, nil
}

func (b *Backend) ListCustomers(ctx context.Context) ([]catalog.Customer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]catalog.Customer, 0, len(b.data.customers))
	for _, c := range b.data.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (b *Backend) CreateCustomer(ctx context.Context, c catalog.Customer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.ID = b.next("customers")
	b.data.customers[c.ID] = c
	return c.ID, nil
}

func (b *Backend) FindStoreCustomer(ctx context.Context) (catalog.Customer, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.data.customers {
		if c.Kind == catalog.CustomerKindStore {
			return c, true, nil
		}
	}
	return catalog.Customer{}, false, nil
}

// ============================================================================
// LEDGER
// ============================================================================

func (b *Backend) AppendMovement(ctx context.Context, m ledger.Movement) (ledger.Movement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m.ID = b.next("movements")
	m.CreatedAt = b.clock.Now()
	b.data.movements = append(b.data.movements, m)
	return m, nil
}

func (b *Backend) ScanMovements(ctx context.Context, filter ledger.Filter) ([]ledger.Movement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ledger.Movement, 0)
	for _, m := range b.data.movements {
		if filter.Matches(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SumMovements implements ledger.Summer.
func (b *Backend) SumMovements(ctx context.Context, filter ledger.Filter) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := decimal.Zero
	for _, m := range b.data.movements {
		if filter.Matches(m) {
			total = total.Add(m.Quantity)
		}
	}
	return total, nil
}

// ============================================================================
// BOM
// ============================================================================

func (b *Backend) ListEdges(ctx context.Context, fabricatedID int64) ([]bom.Edge, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]bom.Edge, 0, len(b.data.edges[fabricatedID]))
	for _, e := range b.data.edges[fabricatedID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InputID < out[j].InputID })
	return out, nil
}

func (b *Backend) UpsertEdge(ctx context.Context, edge bom.Edge) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	inputs := cloneMap(b.data.edges[edge.FabricatedID])
	inputs[edge.InputID] = edge
	b.data.edges[edge.FabricatedID] = inputs
	return nil
}

func (b *Backend) DeleteEdge(ctx context.Context, fabricatedID, inputID int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data.edges[fabricatedID][inputID]; !ok {
		return false, nil
	}
	inputs := cloneMap(b.data.edges[fabricatedID])
	delete(inputs, inputID)
	b.data.edges[fabricatedID] = inputs
	return true, nil
}

// ============================================================================
// PRODUCTION
// ============================================================================

func (b *Backend) GetProductionOrder(ctx context.Context, id int64) (production.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.data.production[id]
	if !ok {
		return production.Order{}, production.ErrOrderNotFound
	}
	o.Lines = append([]production.Line(nil), o.Lines...)
	return o, nil
}

func (b *Backend) ListProductionOrders(ctx context.Context, filter production.ListFilter) ([]production.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]production.Order, 0)
	for _, o := range b.data.production {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		o.Lines = append([]production.Line(nil), o.Lines...)
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (b *Backend) InsertProductionOrder(ctx context.Context, order production.Order) (production.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order.ID = b.next("production_orders")
	lines := make([]production.Line, len(order.Lines))
	for i, l := range order.Lines {
		l.ID = b.next("production_lines")
		l.OrderID = order.ID
		lines[i] = l
	}
	order.Lines = lines
	b.data.production[order.ID] = order
	return order, nil
}

func (b *Backend) LockProductionOrder(ctx context.Context, id int64) (production.Order, error) {
	return b.GetProductionOrder(ctx, id)
}

func (b *Backend) MarkProductionDone(ctx context.Context, id int64, doneAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.data.production[id]
	if !ok {
		return production.ErrOrderNotFound
	}
	o.Status = production.StatusDone
	o.DoneAt = &doneAt
	b.data.production[id] = o
	return nil
}

// ============================================================================
// PURCHASES
// ============================================================================

func (b *Backend) GetPurchase(ctx context.Context, id int64) (procurement.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.data.purchases[id]
	if !ok {
		return procurement.Order{}, procurement.ErrOrderNotFound
	}
	o.Lines = append([]procurement.Line(nil), o.Lines...)
	return o, nil
}

func (b *Backend) ListPurchases(ctx context.Context, filter procurement.ListFilter) ([]procurement.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]procurement.Order, 0)
	for _, o := range b.data.purchases {
		if filter.Matches(o) {
			o.Lines = append([]procurement.Line(nil), o.Lines...)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (b *Backend) InsertPurchase(ctx context.Context, order procurement.Order) (procurement.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order.ID = b.next("purchase_orders")
	order.Lines = b.numberPurchaseLines(order.ID, order.Lines)
	b.data.purchases[order.ID] = order
	return order, nil
}

func (b *Backend) numberPurchaseLines(orderID int64, lines []procurement.Line) []procurement.Line {
	out := make([]procurement.Line, len(lines))
	for i, l := range lines {
		l.ID = b.next("purchase_lines")
		l.OrderID = orderID
		out[i] = l
	}
	return out
}

func (b *Backend) LockPurchase(ctx context.Context, id int64) (procurement.Order, error) {
	return b.GetPurchase(ctx, id)
}

func (b *Backend) UpdatePurchaseHeader(ctx context.Context, order procurement.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.data.purchases[order.ID]
	if !ok {
		return procurement.ErrOrderNotFound
	}
	order.Lines = current.Lines
	b.data.purchases[order.ID] = order
	return nil
}

func (b *Backend) ReplacePurchaseLines(ctx context.Context, orderID int64, lines []procurement.Line) ([]procurement.Line, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.data.purchases[orderID]
	if !ok {
		return nil, procurement.ErrOrderNotFound
	}
	current.Lines = b.numberPurchaseLines(orderID, lines)
	b.data.purchases[orderID] = current
	return append([]procurement.Line(nil), current.Lines...), nil
}

func (b *Backend) SetLineReceived(ctx context.Context, line procurement.Line) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.data.purchases[line.OrderID]
	if !ok {
		return procurement.ErrOrderNotFound
	}
	lines := append([]procurement.Line(nil), current.Lines...)
	for i := range lines {
		if lines[i].ID == line.ID {
			lines[i].QuantityReceived = line.QuantityReceived
			current.Lines = lines
			b.data.purchases[line.OrderID] = current
			return nil
		}
	}
	return procurement.ErrLineNotFound
}

// ============================================================================
// SALES
// ============================================================================

func (b *Backend) GetSale(ctx context.Context, id int64) (sales.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.data.sales[id]
	if !ok {
		return sales.Order{}, sales.ErrOrderNotFound
	}
	o.Lines = append([]sales.Line(nil), o.Lines...)
	return o, nil
}

func (b *Backend) ListSales(ctx context.Context, filter sales.ListFilter) ([]sales.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]sales.Order, 0)
	for _, o := range b.data.sales {
		if filter.Matches(o) {
			o.Lines = append([]sales.Line(nil), o.Lines...)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (b *Backend) InsertSale(ctx context.Context, order sales.Order) (sales.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order.ID = b.next("sales_orders")
	order.Lines = b.numberSaleLines(order.ID, order.Lines)
	b.data.sales[order.ID] = order
	return order, nil
}

func (b *Backend) numberSaleLines(orderID int64, lines []sales.Line) []sales.Line {
	out := make([]sales.Line, len(lines))
	for i, l := range lines {
		l.ID = b.next("sales_lines")
		l.OrderID = orderID
		out[i] = l
	}
	return out
}

func (b *Backend) LockSale(ctx context.Context, id int64) (sales.Order, error) {
	return b.GetSale(ctx, id)
}

func (b *Backend) UpdateSaleHeader(ctx context.Context, order sales.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.data.sales[order.ID]
	if !ok {
		return sales.ErrOrderNotFound
	}
	order.Lines = current.Lines
	b.data.sales[order.ID] = order
	return nil
}

func (b *Backend) ReplaceSaleLines(ctx context.Context, orderID int64, lines []sales.Line) ([]sales.Line, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.data.sales[orderID]
	if !ok {
		return nil, sales.ErrOrderNotFound
	}
	current.Lines = b.numberSaleLines(orderID, lines)
	b.data.sales[orderID] = current
	return append([]sales.Line(nil), current.Lines...), nil
}

// LockProducts is a no-op: units of work are already serialized.
func (b *Backend) LockProducts(ctx context.Context, ids []int64) error {
	return nil
}
