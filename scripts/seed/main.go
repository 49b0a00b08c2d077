package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/app"
	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/procurement"
)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	container, err := app.Build(ctx, cfg, app.NewLogger(cfg), nil)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer container.Close()
	s := container.Services

	fmt.Println("→ Seeding colors...")
	colors := make(map[string]int64)
	for _, name := range []string{"Preto", "Branco", "Cinza", "Azul"} {
		c, err := s.Catalog.CreateColor(ctx, name)
		if errors.Is(err, catalog.ErrDuplicateColor) {
			continue
		}
		if err != nil {
			log.Fatalf("seed color %s: %v", name, err)
		}
		colors[name] = c.ID
	}

	fmt.Println("→ Seeding customers...")
	if _, err := s.Catalog.CreateCustomer(ctx, "Loja", catalog.CustomerKindStore); err != nil && !errors.Is(err, catalog.ErrDuplicateStoreCustomer) {
		log.Fatalf("seed loja customer: %v", err)
	}

	fmt.Println("→ Seeding products...")
	products := make(map[string]int64)
	for _, p := range []catalog.ProductInput{
		{Code: "SOFA-3L", Description: "Sofá 3 lugares", Kind: catalog.ProductKindFabricated, TrackedByColor: true, SalePrice: dec("3200")},
		{Code: "TECIDO-SUEDE", Description: "Tecido suede (m)", Unit: "M", Kind: catalog.ProductKindRawMaterial, TrackedByColor: true, PurchasePrice: dec("38.90"), ReorderMin: dec("40")},
		{Code: "ESPUMA-D33", Description: "Espuma D33 (placa)", Kind: catalog.ProductKindRawMaterial, PurchasePrice: dec("120"), ReorderMin: dec("10")},
		{Code: "PE-MADEIRA", Description: "Pé de madeira", Kind: catalog.ProductKindRawMaterial, PurchasePrice: dec("9.50"), ReorderMin: dec("24")},
		{Code: "CADEIRA-JANTAR", Description: "Cadeira de jantar", Kind: catalog.ProductKindResale, PurchasePrice: dec("180"), SalePrice: dec("349"), ReorderMin: dec("6")},
	} {
		created, err := s.Catalog.CreateProduct(ctx, p)
		if errors.Is(err, catalog.ErrDuplicateCode) {
			existing, getErr := s.Catalog.GetProductByCode(ctx, p.Code)
			if getErr != nil {
				log.Fatalf("lookup product %s: %v", p.Code, getErr)
			}
			products[p.Code] = existing.ID
			continue
		}
		if err != nil {
			log.Fatalf("seed product %s: %v", p.Code, err)
		}
		products[p.Code] = created.ID
	}

	fmt.Println("→ Seeding BOM...")
	for input, qty := range map[string]string{"TECIDO-SUEDE": "9", "ESPUMA-D33": "4", "PE-MADEIRA": "6"} {
		if _, err := s.BOM.UpsertEdge(ctx, products["SOFA-3L"], products[input], dec(qty)); err != nil {
			log.Fatalf("seed bom edge %s: %v", input, err)
		}
	}

	if len(colors) == 0 {
		fmt.Println("✓ Catalog already seeded, skipping stock")
		return
	}

	fmt.Println("→ Seeding opening stock...")
	cinza := colors["Cinza"]
	purchase, err := s.Procurement.Create(ctx, procurement.CreateInput{
		SupplierID: 1,
		Kind:       procurement.KindDirectReceipt,
		Note:       "estoque inicial",
		Lines: []procurement.LineInput{
			{ProductID: products["TECIDO-SUEDE"], ColorID: &cinza, Quantity: dec("60"), UnitPrice: dec("38.90")},
			{ProductID: products["ESPUMA-D33"], Quantity: dec("12"), UnitPrice: dec("120")},
			{ProductID: products["PE-MADEIRA"], Quantity: dec("48"), UnitPrice: dec("9.50")},
		},
	})
	if err != nil {
		log.Fatalf("seed opening purchase: %v", err)
	}
	if _, err := s.Ledger.Adjust(ctx, ledger.AdjustInput{ProductID: products["CADEIRA-JANTAR"], Quantity: dec("8"), Note: "contagem inicial"}); err != nil {
		log.Fatalf("seed adjustment: %v", err)
	}

	fmt.Printf("✓ Seed complete (opening purchase %d)\n", purchase.ID)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
