package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_GetReturnsListedProducts(t *testing.T) {
	c := Default()

	for _, p := range c.List() {
		got, ok := c.Get(p.Code)
		require.True(t, ok, p.Code)
		assert.Equal(t, p, got)
		assert.True(t, got.Price.IsPositive(), "price of %s must be positive", p.Code)
	}
}

func TestDefault_ReferenceTable(t *testing.T) {
	c := Default()
	products := c.List()

	require.Len(t, products, 3)

	expected := []struct {
		code  string
		name  string
		price string
	}{
		{code: "vip", name: "Assinatura VIP", price: "R$ 49.90"},
		{code: "pacote_plus", name: "Pacote Plus", price: "R$ 79.90"},
		{code: "consultoria", name: "Consultoria 1:1", price: "R$ 149.90"},
	}

	for i, want := range expected {
		assert.Equal(t, want.code, products[i].Code)
		assert.Equal(t, want.name, products[i].Name)
		assert.Equal(t, want.price, products[i].FormattedPrice())
	}
}

func TestGet_Unknown(t *testing.T) {
	_, ok := Default().Get("nope")
	assert.False(t, ok)
}

func TestNew_Validation(t *testing.T) {
	price := decimal.RequireFromString("10")

	testCases := []struct {
		name     string
		products []Product
		wantErr  error
	}{
		{name: "empty", products: nil, wantErr: ErrEmptyCatalog},
		{
			name: "duplicate code",
			products: []Product{
				{Code: "a", Name: "A", Price: price},
				{Code: "a", Name: "B", Price: price},
			},
			wantErr: ErrDuplicateCode,
		},
		{
			name:     "zero price",
			products: []Product{{Code: "a", Name: "A", Price: decimal.Zero}},
			wantErr:  ErrInvalidProduct,
		},
		{
			name:     "code too long for callback data",
			products: []Product{{Code: strings.Repeat("c", MaxCodeLength+1), Name: "A", Price: price}},
			wantErr:  ErrInvalidProduct,
		},
		{
			name:     "missing name",
			products: []Product{{Code: "a", Price: price}},
			wantErr:  ErrInvalidProduct,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.products...)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	_, err := New(Product{Code: strings.Repeat("c", MaxCodeLength), Name: "A", Price: price})
	assert.NoError(t, err)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "R$ 5.00", FormatPrice(decimal.NewFromInt(5)))
	assert.Equal(t, "R$ 0.10", FormatPrice(decimal.RequireFromString("0.1")))
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses built-in table", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 3, c.Len())
	})

	t.Run("yaml file keeps declaration order", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		content := `products:
  - code: mentoria
    name: Mentoria
    description: Grupo fechado
    price: "199.00"
  - code: ebook
    name: E-book
    price: "19.9"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		c, err := Load(path)
		require.NoError(t, err)

		products := c.List()
		require.Len(t, products, 2)
		assert.Equal(t, "mentoria", products[0].Code)
		assert.Equal(t, "R$ 19.90", products[1].FormattedPrice())
	})

	t.Run("bad price", func(t *testing.T) {
		_, err := Parse([]byte("products:\n  - code: x\n    name: X\n    price: abc\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
