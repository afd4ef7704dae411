package catalog

import (
	"github.com/shopspring/decimal"
)

type OptionType string

const (
	OptionOneOf  OptionType = "oneOf"
	OptionManyOf OptionType = "manyOf"
)

func (t OptionType) String() string {
	return string(t)
}

// Value is one selectable entry of a product option.
type Value struct {
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// Matches compares both fields; prices are compared numerically.
func (v Value) Matches(other Value) bool {
	return v.Title == other.Title && v.Price.Equal(other.Price)
}

type ProductOption struct {
	Tag    string     `json:"tag"`
	Type   OptionType `json:"type"`
	Values []Value    `json:"values"`
}

type Product struct {
	Store   string          `json:"store"`
	Branch  string          `json:"branch"`
	Name    string          `json:"name"`
	Image   string          `json:"image,omitempty"`
	Options []ProductOption `json:"options"`
}

type Store struct {
	Name           string           `json:"name"`
	Vendor         string           `json:"vendor"`
	StreakDiscount *decimal.Decimal `json:"streakDiscount,omitempty"`
}

type Branch struct {
	Store string `json:"store"`
	Name  string `json:"name"`
}

type Class struct {
	Name   string `json:"name"`
	Vendor string `json:"vendor"`
}
