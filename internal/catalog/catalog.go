// Package catalog holds the immutable set of products offered by the bot.
package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// CurrencySymbol prefixes every rendered price.
	CurrencySymbol = "R$"
	// MaxCodeLength keeps "buy:<code>" within Telegram's 64-byte callback data.
	MaxCodeLength = 64 - len("buy:")
)

var (
	// ErrEmptyCatalog indicates that no products were provided.
	ErrEmptyCatalog = errors.New("catalog has no products")
	// ErrDuplicateCode indicates that two products share the same code.
	ErrDuplicateCode = errors.New("duplicate product code")
	// ErrInvalidProduct indicates a product with a missing or oversized code, a missing name or a non-positive price.
	ErrInvalidProduct = errors.New("invalid product")
)

// Product is a purchasable catalog entry.
type Product struct {
	Code        string
	Name        string
	Description string
	Price       decimal.Decimal
}

// FormattedPrice renders the product price with the currency symbol.
func (p Product) FormattedPrice() string {
	return FormatPrice(p.Price)
}

// FormatPrice renders an amount as "R$ 49.90".
func FormatPrice(amount decimal.Decimal) string {
	return CurrencySymbol + " " + amount.StringFixed(2)
}

// Catalog is a read-only, ordered product table.
type Catalog struct {
	order  []string
	byCode map[string]Product
}

// New validates products and builds a Catalog preserving declaration order.
func New(products ...Product) (*Catalog, error) {
	if len(products) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		order:  make([]string, 0, len(products)),
		byCode: make(map[string]Product, len(products)),
	}

	for _, p := range products {
		if p.Code == "" || p.Name == "" || !p.Price.IsPositive() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProduct, p.Code)
		}
		if len(p.Code) > MaxCodeLength {
			return nil, fmt.Errorf("%w: code %q is longer than %d bytes", ErrInvalidProduct, p.Code, MaxCodeLength)
		}
		if _, exists := c.byCode[p.Code]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCode, p.Code)
		}

		c.order = append(c.order, p.Code)
		c.byCode[p.Code] = p
	}

	return c, nil
}

// Default returns the built-in product table.
func Default() *Catalog {
	c, err := New(
		Product{
			Code:        "vip",
			Name:        "Assinatura VIP",
			Description: "Acesso mensal ao conteúdo exclusivo e suporte prioritário.",
			Price:       decimal.RequireFromString("49.90"),
		},
		Product{
			Code:        "pacote_plus",
			Name:        "Pacote Plus",
			Description: "Inclui tudo do VIP + bônus semanais e lives fechadas.",
			Price:       decimal.RequireFromString("79.90"),
		},
		Product{
			Code:        "consultoria",
			Name:        "Consultoria 1:1",
			Description: "Sessão individual de 60 minutos para acelerar seus resultados.",
			Price:       decimal.RequireFromString("149.90"),
		},
	)
	if err != nil {
		panic(err)
	}

	return c
}

// Get returns the product registered under code.
func (c *Catalog) Get(code string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}

	p, ok := c.byCode[code]
	return p, ok
}

// List returns all products in declaration order.
func (c *Catalog) List() []Product {
	if c == nil {
		return nil
	}

	products := make([]Product, 0, len(c.order))
	for _, code := range c.order {
		products = append(products, c.byCode[code])
	}

	return products
}

// Len reports the number of products.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}
