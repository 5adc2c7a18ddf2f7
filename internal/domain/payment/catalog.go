// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package payment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ManuGH/sessionforge/internal/domain/model"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/price"
)

// creditsMetadataKey is the Stripe Price metadata key the catalog reads the
// credit count from. A package without this key falls back to parsing its
// product name as an integer.
const creditsMetadataKey = "credits"

// Catalog resolves the purchasable {credits, price} bundles from the
// payments provider's product catalog, rather than hardcoding them.
type Catalog struct{}

// NewCatalog constructs a Catalog.
func NewCatalog() *Catalog { return &Catalog{} }

// ListPackages returns every active, catalog-published CreditPackage.
func (c *Catalog) ListPackages(ctx context.Context) ([]model.CreditPackage, error) {
	params := &stripe.PriceListParams{Active: stripe.Bool(true)}
	params.AddExpand("data.product")
	params.Context = ctx

	var packages []model.CreditPackage
	iter := price.List(params)
	for iter.Next() {
		p := iter.Price()
		pkg, err := resolvePackage(p)
		if err != nil {
			continue
		}
		packages = append(packages, pkg)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("payment: list catalog prices: %w", err)
	}
	return packages, nil
}

// resolvePackage maps one Stripe Price (with its Product expanded) to a
// CreditPackage, reading the credit count from price metadata first and
// falling back to parsing the product's display name as an integer.
func resolvePackage(p *stripe.Price) (model.CreditPackage, error) {
	if p.Product == nil {
		return model.CreditPackage{}, fmt.Errorf("payment: price %q has no expanded product", p.ID)
	}

	credits, err := creditsForPrice(p)
	if err != nil {
		return model.CreditPackage{}, err
	}

	return model.CreditPackage{
		ID:       p.ID,
		Name:     p.Product.Name,
		Credits:  credits,
		Price:    p.UnitAmount,
		Currency: string(p.Currency),
	}, nil
}

func creditsForPrice(p *stripe.Price) (int, error) {
	if raw, ok := p.Metadata[creditsMetadataKey]; ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err == nil {
			return n, nil
		}
	}
	// Fallback: the product's display name is the credit count, e.g. "50".
	n, err := strconv.Atoi(p.Product.Name)
	if err != nil {
		return 0, fmt.Errorf("payment: cannot resolve credits for price %q: no metadata and name %q is not an integer", p.ID, p.Product.Name)
	}
	return n, nil
}
