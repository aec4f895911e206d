package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Currency is an opaque tag; the engine never converts between currencies.
type Currency string

func (c Currency) String() string { return string(c) }

// MinorUnits returns the number of decimal places of the currency's minor unit.
func (c Currency) MinorUnits() int32 {
	switch c {
	case "JPY", "KRW", "VND":
		return 0
	default:
		return 2
	}
}

// RoundMinor rounds half-up at the currency's minor-unit precision.
func RoundMinor(d decimal.Decimal, c Currency) decimal.Decimal {
	return d.Round(c.MinorUnits())
}

type TravelerClass string

const (
	TravelerAdult  TravelerClass = "adult"
	TravelerChild  TravelerClass = "child"
	TravelerInfant TravelerClass = "infant"
)

// TravelerClasses lists the classes in resolution order.
var TravelerClasses = []TravelerClass{TravelerAdult, TravelerChild, TravelerInfant}

var ErrInvalidComposition = errors.New("composition requires at least one adult and no negative counts")

// TravelerComposition is always caller-supplied and never persisted on its own.
type TravelerComposition struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

func (tc TravelerComposition) Validate() error {
	if tc.Adults < 1 || tc.Children < 0 || tc.Infants < 0 {
		return ErrInvalidComposition
	}
	return nil
}

func (tc TravelerComposition) Count(class TravelerClass) int {
	switch class {
	case TravelerAdult:
		return tc.Adults
	case TravelerChild:
		return tc.Children
	case TravelerInfant:
		return tc.Infants
	}
	return 0
}

func (tc TravelerComposition) Total() int {
	return tc.Adults + tc.Children + tc.Infants
}

// PriceSet holds per-head prices for each traveler class. An invalid
// NullDecimal means the class is not priced, which is distinct from zero.
type PriceSet struct {
	Adult  decimal.NullDecimal `json:"adult"`
	Child  decimal.NullDecimal `json:"child"`
	Infant decimal.NullDecimal `json:"infant"`
}

// NewPriceSet builds a fully populated price set.
func NewPriceSet(adult, child, infant decimal.Decimal) PriceSet {
	return PriceSet{
		Adult:  decimal.NewNullDecimal(adult),
		Child:  decimal.NewNullDecimal(child),
		Infant: decimal.NewNullDecimal(infant),
	}
}

// For returns the per-head price for a class, reporting whether it is set.
func (p PriceSet) For(class TravelerClass) (decimal.Decimal, bool) {
	switch class {
	case TravelerAdult:
		return p.Adult.Decimal, p.Adult.Valid
	case TravelerChild:
		return p.Child.Decimal, p.Child.Valid
	case TravelerInfant:
		return p.Infant.Decimal, p.Infant.Valid
	}
	return decimal.Decimal{}, false
}

var ErrNegativePrice = errors.New("price must not be negative")

func (p PriceSet) Validate() error {
	for _, class := range TravelerClasses {
		if unit, ok := p.For(class); ok && unit.IsNegative() {
			return ErrNegativePrice
		}
	}
	return nil
}
