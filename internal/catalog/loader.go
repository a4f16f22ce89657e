package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type fileProduct struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
}

type fileCatalog struct {
	Products []fileProduct `yaml:"products"`
}

// Load returns the catalog stored in the YAML file at path, or the built-in
// table when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var raw fileCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}

	products := make([]Product, 0, len(raw.Products))
	for _, item := range raw.Products {
		price, err := decimal.NewFromString(strings.TrimSpace(item.Price))
		if err != nil {
			return nil, fmt.Errorf("catalog: product %q price %q: %w", item.Code, item.Price, err)
		}

		products = append(products, Product{
			Code:        strings.TrimSpace(item.Code),
			Name:        strings.TrimSpace(item.Name),
			Description: strings.TrimSpace(item.Description),
			Price:       price,
		})
	}

	return New(products...)
}
