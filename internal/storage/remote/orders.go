package remote

import (
	"context"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-stock/internal/procurement"
	"github.com/odyssey-erp/odyssey-stock/internal/production"
	"github.com/odyssey-erp/odyssey-stock/internal/sales"
)

// Orders are stored as one document each, lines embedded.

// ============================================================================
// PRODUCTION
// ============================================================================

func (r *repo) GetProductionOrder(ctx context.Context, orderID int64) (production.Order, error) {
	var o production.Order
	found, err := r.load(ctx, r.b.key("production_order", id(orderID)), &o)
	if err != nil {
		return production.Order{}, err
	}
	if !found {
		return production.Order{}, production.ErrOrderNotFound
	}
	return o, nil
}

func (r *repo) ListProductionOrders(ctx context.Context, filter production.ListFilter) ([]production.Order, error) {
	all, err := loadAll[production.Order](ctx, r, r.b.key("production_orders"), "production_order")
	if err != nil {
		return nil, err
	}
	orders := make([]production.Order, 0, len(all))
	for _, o := range all {
		if filter.Status == "" || o.Status == filter.Status {
			orders = append(orders, o)
		}
	}
	sortDesc(orders, func(o production.Order) int64 { return o.ID })
	return orders, nil
}

func (r *repo) InsertProductionOrder(ctx context.Context, order production.Order) (production.Order, error) {
	orderID, err := r.nextID(ctx, "production_order")
	if err != nil {
		return production.Order{}, err
	}
	order.ID = orderID
	for i := range order.Lines {
		if order.Lines[i].ID, err = r.nextID(ctx, "production_line"); err != nil {
			return production.Order{}, err
		}
		order.Lines[i].OrderID = orderID
	}
	if err := r.save(ctx, r.b.key("production_order", id(orderID)), order); err != nil {
		return production.Order{}, err
	}
	return order, r.index(ctx, r.b.key("production_orders"), orderID)
}

func (r *repo) LockProductionOrder(ctx context.Context, orderID int64) (production.Order, error) {
	if err := r.lock(ctx, "production_order:"+id(orderID)); err != nil {
		return production.Order{}, err
	}
	return r.GetProductionOrder(ctx, orderID)
}

func (r *repo) MarkProductionDone(ctx context.Context, orderID int64, doneAt time.Time) error {
	o, err := r.GetProductionOrder(ctx, orderID)
	if err != nil {
		return err
	}
	o.Status = production.StatusDone
	o.DoneAt = &doneAt
	return r.save(ctx, r.b.key("production_order", id(orderID)), o)
}

// ============================================================================
// PURCHASES
// ============================================================================

func (r *repo) GetPurchase(ctx context.Context, orderID int64) (procurement.Order, error) {
	var o procurement.Order
	found, err := r.load(ctx, r.b.key("purchase", id(orderID)), &o)
	if err != nil {
		return procurement.Order{}, err
	}
	if !found {
		return procurement.Order{}, procurement.ErrOrderNotFound
	}
	return o, nil
}

func (r *repo) ListPurchases(ctx context.Context, filter procurement.ListFilter) ([]procurement.Order, error) {
	all, err := loadAll[procurement.Order](ctx, r, r.b.key("purchases"), "purchase")
	if err != nil {
		return nil, err
	}
	orders := make([]procurement.Order, 0, len(all))
	for _, o := range all {
		if filter.Matches(o) {
			orders = append(orders, o)
		}
	}
	sortDesc(orders, func(o procurement.Order) int64 { return o.ID })
	return orders, nil
}

func (r *repo) numberPurchaseLines(ctx context.Context, orderID int64, lines []procurement.Line) ([]procurement.Line, error) {
	out := make([]procurement.Line, len(lines))
	for i, l := range lines {
		lineID, err := r.nextID(ctx, "purchase_line")
		if err != nil {
			return nil, err
		}
		l.ID, l.OrderID = lineID, orderID
		out[i] = l
	}
	return out, nil
}

func (r *repo) InsertPurchase(ctx context.Context, order procurement.Order) (procurement.Order, error) {
	orderID, err := r.nextID(ctx, "purchase")
	if err != nil {
		return procurement.Order{}, err
	}
	order.ID = orderID
	if order.Lines, err = r.numberPurchaseLines(ctx, orderID, order.Lines); err != nil {
		return procurement.Order{}, err
	}
	if err := r.save(ctx, r.b.key("purchase", id(orderID)), order); err != nil {
		return procurement.Order{}, err
	}
	return order, r.index(ctx, r.b.key("purchases"), orderID)
}

func (r *repo) LockPurchase(ctx context.Context, orderID int64) (procurement.Order, error) {
	if err := r.lock(ctx, "purchase:"+id(orderID)); err != nil {
		return procurement.Order{}, err
	}
	return r.GetPurchase(ctx, orderID)
}

func (r *repo) UpdatePurchaseHeader(ctx context.Context, order procurement.Order) error {
	current, err := r.GetPurchase(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Lines = current.Lines
	return r.save(ctx, r.b.key("purchase", id(order.ID)), order)
}

func (r *repo) ReplacePurchaseLines(ctx context.Context, orderID int64, lines []procurement.Line) ([]procurement.Line, error) {
	current, err := r.GetPurchase(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Lines, err = r.numberPurchaseLines(ctx, orderID, lines); err != nil {
		return nil, err
	}
	if err := r.save(ctx, r.b.key("purchase", id(orderID)), current); err != nil {
		return nil, err
	}
	return current.Lines, nil
}

func (r *repo) SetLineReceived(ctx context.Context, line procurement.Line) error {
	current, err := r.GetPurchase(ctx, line.OrderID)
	if err != nil {
		return err
	}
	for i := range current.Lines {
		if current.Lines[i].ID == line.ID {
			current.Lines[i].QuantityReceived = line.QuantityReceived
			return r.save(ctx, r.b.key("purchase", id(line.OrderID)), current)
		}
	}
	return procurement.ErrLineNotFound
}

// ============================================================================
// SALES
// ============================================================================

func (r *repo) GetSale(ctx context.Context, orderID int64) (sales.Order, error) {
	var o sales.Order
	found, err := r.load(ctx, r.b.key("sale", id(orderID)), &o)
	if err != nil {
		return sales.Order{}, err
	}
	if !found {
		return sales.Order{}, sales.ErrOrderNotFound
	}
	return o, nil
}

func (r *repo) ListSales(ctx context.Context, filter sales.ListFilter) ([]sales.Order, error) {
	all, err := loadAll[sales.Order](ctx, r, r.b.key("sales"), "sale")
	if err != nil {
		return nil, err
	}
	orders := make([]sales.Order, 0, len(all))
	for _, o := range all {
		if filter.Matches(o) {
			orders = append(orders, o)
		}
	}
	sortDesc(orders, func(o sales.Order) int64 { return o.ID })
	return orders, nil
}

func (r *repo) numberSaleLines(ctx context.Context, orderID int64, lines []sales.Line) ([]sales.Line, error) {
	out := make([]sales.Line, len(lines))
	for i, l := range lines {
		lineID, err := r.nextID(ctx, "sale_line")
		if err != nil {
			return nil, err
		}
		l.ID, l.OrderID = lineID, orderID
		out[i] = l
	}
	return out, nil
}

func (r *repo) InsertSale(ctx context.Context, order sales.Order) (sales.Order, error) {
	orderID, err := r.nextID(ctx, "sale")
	if err != nil {
		return sales.Order{}, err
	}
	order.ID = orderID
	if order.Lines, err = r.numberSaleLines(ctx, orderID, order.Lines); err != nil {
		return sales.Order{}, err
	}
	if err := r.save(ctx, r.b.key("sale", id(orderID)), order); err != nil {
		return sales.Order{}, err
	}
	return order, r.index(ctx, r.b.key("sales"), orderID)
}

func (r *repo) LockSale(ctx context.Context, orderID int64) (sales.Order, error) {
	if err := r.lock(ctx, "sale:"+id(orderID)); err != nil {
		return sales.Order{}, err
	}
	return r.GetSale(ctx, orderID)
}

func (r *repo) UpdateSaleHeader(ctx context.Context, order sales.Order) error {
	current, err := r.GetSale(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Lines = current.Lines
	return r.save(ctx, r.b.key("sale", id(order.ID)), order)
}

func (r *repo) ReplaceSaleLines(ctx context.Context, orderID int64, lines []sales.Line) ([]sales.Line, error) {
	current, err := r.GetSale(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Lines, err = r.numberSaleLines(ctx, orderID, lines); err != nil {
		return nil, err
	}
	if err := r.save(ctx, r.b.key("sale", id(orderID)), current); err != nil {
		return nil, err
	}
	return current.Lines, nil
}

// LockProducts leases every product in ascending id order.
func (r *repo) LockProducts(ctx context.Context, ids []int64) error {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, productID := range sorted {
		if err := r.lock(ctx, "product:"+id(productID)); err != nil {
			return err
		}
	}
	return nil
}
