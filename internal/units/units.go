// Package units normalizes quantities expressed in mass, volume, count or
// named pack units to a canonical base unit (grams, milliliters or pieces).
package units

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Kilogram   Unit = "kg"
	Gram       Unit = "g"
	Liter      Unit = "l"
	Milliliter Unit = "ml"
	Piece      Unit = "piece"

	BaseGram       BaseUnit = "g"
	BaseMilliliter BaseUnit = "ml"
	BasePiece      BaseUnit = "piece"

	packPrefix = "pack:"
)

type (
	// Unit is a quantity tag: one of the fixed mass/volume/count units or a
	// pack reference of the form "pack:<ID>".
	Unit string

	// BaseUnit is the canonical unit every conversion targets.
	BaseUnit string

	// Pack is a named bundle that expands to Qty base units.
	Pack struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		BaseUnit  BaseUnit  `json:"baseUnit"`
		Qty       float64   `json:"qty"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// Quantity is an amount expressed in a base unit.
	Quantity struct {
		Qty  float64  `json:"qty"`
		Unit BaseUnit `json:"unit"`
	}
)

var (
	ErrUnknownPack = errors.New("unknown pack")
	ErrUnknownUnit = errors.New("unknown unit")
	ErrInvalidPack = errors.New("invalid pack definition")
)

// scale maps the fixed units to their base unit and linear factor.
var scale = map[Unit]struct {
	base   BaseUnit
	factor float64
}{
	Kilogram:   {BaseGram, 1000},
	Gram:       {BaseGram, 1},
	Liter:      {BaseMilliliter, 1000},
	Milliliter: {BaseMilliliter, 1},
	Piece:      {BasePiece, 1},
}

// PackUnit returns the unit tag referencing the pack with the given id.
func PackUnit(id string) Unit {
	return Unit(packPrefix + id)
}

// IsPack reports whether u references a pack definition.
func (u Unit) IsPack() bool {
	return strings.HasPrefix(string(u), packPrefix)
}

// PackID returns the referenced pack id, or "" when u is not a pack unit.
func (u Unit) PackID() string {
	if !u.IsPack() {
		return ""
	}
	return strings.TrimPrefix(string(u), packPrefix)
}

// Validate checks the tag is syntactically known. Pack references are not
// resolved here.
func (u Unit) Validate() error {
	if u.IsPack() {
		if strings.TrimSpace(u.PackID()) == "" {
			return fmt.Errorf("%w: empty pack reference", ErrUnknownUnit)
		}
		return nil
	}
	if _, ok := scale[u]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownUnit, string(u))
	}
	return nil
}

// Family returns the base unit family of u without resolving packs.
// Pack references fall into the count family, like any unknown tag.
func Family(u Unit) BaseUnit {
	switch u {
	case Gram, Kilogram:
		return BaseGram
	case Milliliter, Liter:
		return BaseMilliliter
	default:
		return BasePiece
	}
}

// Valid reports whether b is one of the canonical base units.
func (b BaseUnit) Valid() bool {
	switch b {
	case BaseGram, BaseMilliliter, BasePiece:
		return true
	}
	return false
}

// Validate checks a pack definition before it is stored.
func (p Pack) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidPack)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPack)
	}
	if !p.BaseUnit.Valid() {
		return fmt.Errorf("%w: base unit %q", ErrInvalidPack, string(p.BaseUnit))
	}
	if p.Qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidPack)
	}
	return nil
}

// FindPack resolves a pack by exact identifier.
func FindPack(packs []Pack, id string) (Pack, bool) {
	for _, p := range packs {
		if p.ID == id {
			return p, true
		}
	}
	return Pack{}, false
}

// ToBase converts qty expressed in u to its base unit equivalent. A pack
// reference that does not match any definition yields ErrUnknownPack and the
// caller must not use the returned quantity.
func ToBase(qty float64, u Unit, packs []Pack) (Quantity, error) {
	if u.IsPack() {
		p, ok := FindPack(packs, u.PackID())
		if !ok {
			return Quantity{}, fmt.Errorf("%w: %s", ErrUnknownPack, u.PackID())
		}
		return Quantity{Qty: qty * p.Qty, Unit: p.BaseUnit}, nil
	}
	s, ok := scale[u]
	if !ok {
		return Quantity{}, fmt.Errorf("%w: %q", ErrUnknownUnit, string(u))
	}
	return Quantity{Qty: qty * s.factor, Unit: s.base}, nil
}

// FromBase is the inverse of ToBase: it expresses a base quantity in u.
func FromBase(q Quantity, u Unit, packs []Pack) (float64, error) {
	if u.IsPack() {
		p, ok := FindPack(packs, u.PackID())
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownPack, u.PackID())
		}
		if p.BaseUnit != q.Unit {
			return 0, fmt.Errorf("cannot express %s in pack %s of %s", q.Unit, p.ID, p.BaseUnit)
		}
		return q.Qty / p.Qty, nil
	}
	s, ok := scale[u]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, string(u))
	}
	if s.base != q.Unit {
		return 0, fmt.Errorf("cannot express %s in %s", q.Unit, u)
	}
	return q.Qty / s.factor, nil
}

// DefaultPacks returns the pack definitions seeded on first run.
func DefaultPacks(now time.Time) []Pack {
	return []Pack{
		{ID: "PKG-BREAD-BUNDLE", Name: "Bread bundle (10 pieces)", BaseUnit: BasePiece, Qty: 10, CreatedAt: now, UpdatedAt: now},
		{ID: "PKG-FRIES-BOX", Name: "Fries box 2.5kg", BaseUnit: BaseGram, Qty: 2500, CreatedAt: now, UpdatedAt: now},
		{ID: "PKG-GAL-XL", Name: "Large gallon 3.78L", BaseUnit: BaseMilliliter, Qty: 3780, CreatedAt: now, UpdatedAt: now},
		{ID: "PKG-GAL-S", Name: "Small gallon 2.0L", BaseUnit: BaseMilliliter, Qty: 2000, CreatedAt: now, UpdatedAt: now},
	}
}
