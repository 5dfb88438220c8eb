package models

import "github.com/shopspring/decimal"

// Tariff is immutable reference data, unique per (origin, destination).
type Tariff struct {
	ID          uint64          `json:"id"`
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	PricePerKg  decimal.Decimal `json:"pricePerKg"`
}

type QuotationResult struct {
	Price          decimal.Decimal `json:"price"`
	VolumeWeight   decimal.Decimal `json:"volumeWeight"`
	SelectedWeight decimal.Decimal `json:"selectedWeight"`
	Origin         string          `json:"origin"`
	Destination    string          `json:"destination"`
	PricePerKg     decimal.Decimal `json:"pricePerKg"`
}
