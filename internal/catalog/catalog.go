// Package catalog holds the closed vocabulary the intake matchers run
// against: the size ladder, the color palette with its inflected aliases,
// product-type patterns, unlock phrases, and the personalization
// vocabulary.
//
// The vocabulary ships as an embedded CUE document and can be overridden
// from a CUE file on disk, validated against the same schema, so the
// palette can grow without a rebuild.
package catalog

import (
	"fmt"

	"github.com/textilio/intake/internal/textnorm"
)

// Alias maps a canonical name to the folded tokens that mean it in chat.
type Alias struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// Product is one orderable product type and the folded patterns that
// introduce it ("tricou", "t-shirt", ...).
type Product struct {
	Name     string   `json:"name"`
	Patterns []string `json:"patterns"`
}

// Catalog is the full intake vocabulary.
type Catalog struct {
	Sizes          []string  `json:"sizes"`
	Colors         []Alias   `json:"colors"`
	Products       []Product `json:"products"`
	UnlockPhrases  []string  `json:"unlock_phrases"`
	Techniques     []Alias   `json:"techniques"`
	Zones          []Alias   `json:"zones"`
	DisablePhrases []string  `json:"disable_phrases"`

	sizeIndex  map[string]string // folded token -> catalog spelling
	colorIndex map[string]string // folded alias -> canonical name
}

// finalize builds lookup indexes and checks the invariants the engine
// relies on: a non-empty size ladder and unique canonical colors.
func (c *Catalog) finalize() error {
	if len(c.Sizes) == 0 {
		return fmt.Errorf("catalog: empty size ladder")
	}

	c.sizeIndex = make(map[string]string, len(c.Sizes))
	for _, size := range c.Sizes {
		c.sizeIndex[textnorm.Fold(size)] = size
	}

	c.colorIndex = make(map[string]string)
	seen := make(map[string]bool, len(c.Colors))
	for _, color := range c.Colors {
		folded := textnorm.Fold(color.Name)
		if seen[folded] {
			return fmt.Errorf("catalog: duplicate canonical color %q", color.Name)
		}
		seen[folded] = true

		// The canonical name itself is always a valid alias.
		c.colorIndex[folded] = color.Name
		for _, alias := range color.Aliases {
			c.colorIndex[textnorm.Fold(alias)] = color.Name
		}
	}

	return nil
}

// CanonicalSize returns the catalog spelling for a folded size token.
func (c *Catalog) CanonicalSize(token string) (string, bool) {
	size, ok := c.sizeIndex[textnorm.Fold(token)]
	return size, ok
}

// CanonicalColor resolves a folded alias to its canonical color name.
func (c *Catalog) CanonicalColor(alias string) (string, bool) {
	name, ok := c.colorIndex[textnorm.Fold(alias)]
	return name, ok
}
