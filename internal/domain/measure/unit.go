// Package measure provides measurement units and conversion between them.
// Units form a closed set split into two dimensions, mass and volume;
// conversion across dimensions is always an error, never a coercion.
package measure

import (
	"github.com/shopspring/decimal"
)

// Dimension is the physical dimension of a unit.
type Dimension string

const (
	DimensionMass   Dimension = "mass"
	DimensionVolume Dimension = "volume"
)

// Unit is a measurement unit symbol.
type Unit string

// Mass units.
const (
	Milligram Unit = "mg"
	Gram      Unit = "g"
	Kilogram  Unit = "kg"
	Ounce     Unit = "oz"
	Pound     Unit = "lb"
)

// Volume units.
const (
	Milliliter Unit = "ml"
	Liter      Unit = "l"
	Kiloliter  Unit = "kl"
	Teaspoon   Unit = "tsp"
	Tablespoon Unit = "Tbs"
	FluidOunce Unit = "fl-oz"
	Cup        Unit = "cup"
	Pint       Unit = "pnt"
	Quart      Unit = "qt"
	Gallon     Unit = "gal"
)

// factors map each unit to its size in the dimension's base unit
// (gram for mass, milliliter for volume). US customary kitchen units
// follow NIST Handbook 44 definitions.
var factors = map[Unit]struct {
	dimension Dimension
	toBase    decimal.Decimal
}{
	Milligram: {DimensionMass, decimal.RequireFromString("0.001")},
	Gram:      {DimensionMass, decimal.RequireFromString("1")},
	Kilogram:  {DimensionMass, decimal.RequireFromString("1000")},
	Ounce:     {DimensionMass, decimal.RequireFromString("28.349523125")},
	Pound:     {DimensionMass, decimal.RequireFromString("453.59237")},

	Milliliter: {DimensionVolume, decimal.RequireFromString("1")},
	Liter:      {DimensionVolume, decimal.RequireFromString("1000")},
	Kiloliter:  {DimensionVolume, decimal.RequireFromString("1000000")},
	Teaspoon:   {DimensionVolume, decimal.RequireFromString("4.92892159375")},
	Tablespoon: {DimensionVolume, decimal.RequireFromString("14.78676478125")},
	FluidOunce: {DimensionVolume, decimal.RequireFromString("29.5735295625")},
	Cup:        {DimensionVolume, decimal.RequireFromString("236.5882365")},
	Pint:       {DimensionVolume, decimal.RequireFromString("473.176473")},
	Quart:      {DimensionVolume, decimal.RequireFromString("946.352946")},
	Gallon:     {DimensionVolume, decimal.RequireFromString("3785.411784")},
}

// IsValid reports whether u is one of the known units.
func (u Unit) IsValid() bool {
	_, ok := factors[u]
	return ok
}

// Dimension returns the unit's dimension. Second result is false for
// unknown units.
func (u Unit) Dimension() (Dimension, bool) {
	f, ok := factors[u]
	if !ok {
		return "", false
	}
	return f.dimension, true
}

// All returns every known unit, mass units first.
func All() []Unit {
	return []Unit{
		Milligram, Gram, Kilogram, Ounce, Pound,
		Milliliter, Liter, Kiloliter, Teaspoon, Tablespoon,
		FluidOunce, Cup, Pint, Quart, Gallon,
	}
}
