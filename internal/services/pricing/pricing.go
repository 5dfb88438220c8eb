// Package pricing holds the pure quotation arithmetic: volumetric weight,
// charged weight and price. Nothing here does I/O.
package pricing

import (
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultVolumeWeightDivisor is the cm³/kg volumetric divisor.
const DefaultVolumeWeightDivisor = 2500

type Engine struct {
	divisor decimal.Decimal
}

func NewEngine(divisor int64) *Engine {
	if divisor <= 0 {
		divisor = DefaultVolumeWeightDivisor
	}
	return &Engine{divisor: decimal.NewFromInt(divisor)}
}

func (e *Engine) Divisor() decimal.Decimal { return e.divisor }

// VolumeWeight is ceil(l*w*h / divisor). Rounding is always up.
func (e *Engine) VolumeWeight(length, width, height decimal.Decimal) decimal.Decimal {
	return VolumeWeight(length, width, height, e.divisor)
}

// Quote prices p against tariff. Inputs are expected to be validated already.
func (e *Engine) Quote(p models.Package, tariff models.Tariff) models.QuotationResult {
	vw := e.VolumeWeight(p.Length, p.Width, p.Height)
	charged := ChargedWeight(p.Weight, vw)
	return models.QuotationResult{
		Price:          Price(tariff.PricePerKg, charged),
		VolumeWeight:   vw,
		SelectedWeight: charged,
		Origin:         tariff.Origin,
		Destination:    tariff.Destination,
		PricePerKg:     tariff.PricePerKg,
	}
}

func VolumeWeight(length, width, height, divisor decimal.Decimal) decimal.Decimal {
	q, r := length.Mul(width).Mul(height).QuoRem(divisor, 0)
	if r.IsPositive() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q
}

// ChargedWeight bills the greater of actual and dimensional weight.
func ChargedWeight(actual, volume decimal.Decimal) decimal.Decimal {
	return decimal.Max(actual, volume)
}

func Price(pricePerKg, chargedWeight decimal.Decimal) decimal.Decimal {
	return pricePerKg.Mul(chargedWeight)
}
