package sqlstore

import (
	"context"
	"fmt"
	"log"

	"github.com/TatisVivas/zakekeSample/internal/domain"
)

// SeedProducts are the demo catalog entries loaded by `merchlab migrate --seed`.
// Currency is filled in by Seed.
var SeedProducts = []domain.Product{
	{
		Code:         "1001",
		Name:         "Tote Bag Blanca",
		Description:  "Tote bag de algodón lista para personalizar.",
		ImageURL:     "/totebag-sample.png",
		BasePrice:    45000,
		Customizable: true,
		ModelCode:    "1001",
	},
	{
		Code:        "1002",
		Name:        "Tote Bag Negra",
		Description: "Tote bag de algodón color negro.",
		ImageURL:    "/totebag-sample.jpg",
		BasePrice:   48000,
	},
	{
		Code:        "1003",
		Name:        "Camiseta Unisex Blanca",
		Description: "Camiseta básica lista para personalizar.",
		ImageURL:    "/totebag-sample.png",
		BasePrice:   35000,
	},
}

// SeedOptions are keyed by product code.
var SeedOptions = map[string][]domain.ProductOption{
	"1001": {
		{Code: "10", Name: "Color", Values: []domain.ProductOptionValue{
			{Code: "101", Name: "Blanco"}, {Code: "102", Name: "Negro"}, {Code: "103", Name: "Rojo"},
		}},
	},
	"1002": {
		{Code: "20", Name: "Color", Values: []domain.ProductOptionValue{
			{Code: "201", Name: "Negro"}, {Code: "202", Name: "Azul"},
		}},
		{Code: "21", Name: "Talla", Values: []domain.ProductOptionValue{
			{Code: "211", Name: "S"}, {Code: "212", Name: "M"}, {Code: "213", Name: "L"},
		}},
	},
	"1003": {
		{Code: "30", Name: "Talla", Values: []domain.ProductOptionValue{
			{Code: "301", Name: "S"}, {Code: "302", Name: "M"}, {Code: "303", Name: "L"}, {Code: "304", Name: "XL"},
		}},
		{Code: "31", Name: "Color", Values: []domain.ProductOptionValue{
			{Code: "311", Name: "Blanco"}, {Code: "312", Name: "Gris"},
		}},
	},
}

// Seed upserts the demo catalog. Safe to run repeatedly.
func (s *Store) Seed(ctx context.Context, currency string) error {
	for _, p := range SeedProducts {
		p.Currency = currency
		if err := s.UpsertProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.Code, err)
		}
		log.Printf("sqlstore: seeded product code=%s", p.Code)
	}
	for code, opts := range SeedOptions {
		if err := s.UpsertProductOptions(ctx, code, opts); err != nil {
			return fmt.Errorf("seed options %s: %w", code, err)
		}
	}
	return nil
}
