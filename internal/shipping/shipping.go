// Package shipping resolves per-item shipping costs from a product's
// normalized shipping descriptor.
package shipping

import (
	"github.com/vardenhq/varden/internal/domain"
	"github.com/vardenhq/varden/internal/money"
)

// Cost is the resolved shipping cost for one unit of a product.
type Cost struct {
	// PerUnitCents is the flat per-unit amount. Zero for free shipping.
	PerUnitCents int64

	// Deferred is set for calculated shipping: the amount is not resolved
	// locally and the caller defers to the payment processor at checkout.
	Deferred bool
}

// PerItemCost resolves one product's shipping descriptor into a per-unit
// cost. Flat amounts prefer the explicit cents field over the legacy
// decimal field; negative flat amounts clamp to zero.
func PerItemCost(d domain.ShippingDescriptor) (Cost, error) {
	switch d.Mode {
	case domain.ShippingModeFree:
		return Cost{}, nil

	case domain.ShippingModeFlat:
		perUnit := d.PerUnitCents
		if perUnit == 0 && d.LegacyPerUnit != 0 {
			cents, err := money.ToCents(d.LegacyPerUnit, false)
			if err != nil {
				return Cost{}, domain.WrapError(err, domain.EINVALID, "shipping.cost", "invalid legacy shipping amount")
			}
			perUnit = cents
		}
		return Cost{PerUnitCents: money.Clamp(perUnit)}, nil

	case domain.ShippingModeCalculated:
		return Cost{Deferred: true}, nil

	default:
		return Cost{}, domain.Errorf(domain.EINVALID, "shipping.cost", "unknown shipping mode: %s", d.Mode)
	}
}

// Total aggregates shipping across checkout lines, multiplying each flat
// per-unit amount by the requested quantity. Flat (nonzero) and calculated
// modes must not be mixed within one checkout: the buyer would otherwise
// be charged a local flat amount on top of a processor-calculated one.
func Total(descriptors []domain.ShippingDescriptor, quantities []int64) (int64, bool, error) {
	var total int64
	var deferred bool
	var flatNonzero bool

	for i, d := range descriptors {
		cost, err := PerItemCost(d)
		if err != nil {
			return 0, false, err
		}

		if cost.Deferred {
			deferred = true
			continue
		}

		line, err := money.Mul(cost.PerUnitCents, quantities[i])
		if err != nil {
			return 0, false, domain.WrapError(err, domain.EINTERNAL, "shipping.total", "shipping amount overflow")
		}
		if line > 0 {
			flatNonzero = true
		}
		total += line
	}

	if deferred && flatNonzero {
		return 0, false, domain.ErrMixedShippingMode
	}

	return total, deferred, nil
}
