package remote

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
)

func (r *repo) GetProduct(ctx context.Context, productID int64) (catalog.Product, error) {
	var p catalog.Product
	found, err := r.load(ctx, r.b.key("product", id(productID)), &p)
	if err != nil {
		return catalog.Product{}, err
	}
	if !found {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (r *repo) GetProductByCode(ctx context.Context, code string) (catalog.Product, error) {
	raw, err := r.b.rdb.Get(ctx, r.b.key("product_code", code)).Result()
	if errors.Is(err, redis.Nil) {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	if err != nil {
		return catalog.Product{}, err
	}
	productID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return catalog.Product{}, err
	}
	return r.GetProduct(ctx, productID)
}

func (r *repo) ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	all, err := loadAll[catalog.Product](ctx, r, r.b.key("products"), "product")
	if err != nil {
		return nil, err
	}
	products := make([]catalog.Product, 0, len(all))
	for _, p := range all {
		if filter.Matches(p) {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Code < products[j].Code })
	return products, nil
}

func (r *repo) CreateProduct(ctx context.Context, p catalog.Product) (int64, error) {
	productID, err := r.nextID(ctx, "product")
	if err != nil {
		return 0, err
	}
	ok, err := r.claim(ctx, r.b.key("product_code", p.Code), id(productID))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, catalog.ErrDuplicateCode.WithProducts(p.Code)
	}
	p.ID = productID
	if err := r.save(ctx, r.b.key("product", id(productID)), p); err != nil {
		return 0, err
	}
	return productID, r.index(ctx, r.b.key("products"), productID)
}

func (r *repo) UpdateProduct(ctx context.Context, p catalog.Product) error {
	current, err := r.GetProduct(ctx, p.ID)
	if err != nil {
		return err
	}
	if current.Code != p.Code {
		ok, err := r.claim(ctx, r.b.key("product_code", p.Code), id(p.ID))
		if err != nil {
			return err
		}
		if !ok {
			return catalog.ErrDuplicateCode.WithProducts(p.Code)
		}
		if err := r.release(ctx, r.b.key("product_code", current.Code)); err != nil {
			return err
		}
	}
	return r.save(ctx, r.b.key("product", id(p.ID)), p)
}

func (r *repo) GetColor(ctx context.Context, colorID int64) (catalog.Color, error) {
	var c catalog.Color
	found, err := r.load(ctx, r.b.key("color", id(colorID)), &c)
	if err != nil {
		return catalog.Color{}, err
	}
	if !found {
		return catalog.Color{}, catalog.ErrColorNotFound
	}
	return c, nil
}

func (r *repo) ListColors(ctx context.Context) ([]catalog.Color, error) {
	return loadAll[catalog.Color](ctx, r, r.b.key("colors"), "color")
}

func (r *repo) CreateColor(ctx context.Context, c catalog.Color) (int64, error) {
	colorID, err := r.nextID(ctx, "color")
	if err != nil {
		return 0, err
	}
	ok, err := r.claim(ctx, r.b.key("color_name", strings.ToLower(c.Name)), id(colorID))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, catalog.ErrDuplicateColor
	}
	c.ID = colorID
	if err := r.save(ctx, r.b.key("color", id(colorID)), c); err != nil {
		return 0, err
	}
	return colorID, r.index(ctx, r.b.key("colors"), colorID)
}

func (r *repo) GetCustomer(ctx context.Context, customerID int64) (catalog.Customer, error) {
	var c catalog.Customer
	found, err := r.load(ctx, r.b.key("customer", id(customerID)), &c)
	if err != nil {
		return catalog.Customer{}, err
	}
	if !found {
		return catalog.Customer{}, catalog.ErrCustomerNotFound
	}
	return c, nil
}

func (r *repo) ListCustomers(ctx context.Context) ([]catalog.Customer, error) {
	customers, err := loadAll[catalog.Customer](ctx, r, r.b.key("customers"), "customer")
	if err != nil {
		return nil, err
	}
	sort.SliceStable(customers, func(i, j int) bool {
		return strings.ToLower(customers[i].Name) < strings.ToLower(customers[j].Name)
	})
	return customers, nil
}

func (r *repo) CreateCustomer(ctx context.Context, c catalog.Customer) (int64, error) {
	customerID, err := r.nextID(ctx, "customer")
	if err != nil {
		return 0, err
	}
	if c.Kind == catalog.CustomerKindStore {
		ok, err := r.claim(ctx, r.b.key("customer_store"), id(customerID))
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, catalog.ErrDuplicateStoreCustomer
		}
	}
	c.ID = customerID
	if err := r.save(ctx, r.b.key("customer", id(customerID)), c); err != nil {
		return 0, err
	}
	return customerID, r.index(ctx, r.b.key("customers"), customerID)
}

func (r *repo) FindStoreCustomer(ctx context.Context) (catalog.Customer, bool, error) {
	raw, err := r.b.rdb.Get(ctx, r.b.key("customer_store")).Result()
	if errors.Is(err, redis.Nil) {
		return catalog.Customer{}, false, nil
	}
	if err != nil {
		return catalog.Customer{}, false, err
	}
	customerID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return catalog.Customer{}, false, err
	}
	c, err := r.GetCustomer(ctx, customerID)
	if err != nil {
		return catalog.Customer{}, false, err
	}
	return c, true, nil
}
