package models

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/shopspring/decimal"
)

// Package and price bounds match the storage columns: values are never rounded
// or clamped on write, so anything outside them is rejected up front.
const (
	WeightScale     = 3
	WeightIntDigits = 7
	SizeScale       = 2
	SizeIntDigits   = 8
	PriceScale      = 5
	PriceIntDigits  = 15
)

type QuoteRequest struct {
	Weight      decimal.Decimal `json:"weight"`
	Length      decimal.Decimal `json:"length"`
	Width       decimal.Decimal `json:"width"`
	Height      decimal.Decimal `json:"height"`
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
}

// Validate checks the fields in declaration order and reports the first failure.
func (r QuoteRequest) Validate() error {
	return firstInvalid(
		requireWeight(r.Weight),
		requireSize("length", r.Length),
		requireSize("width", r.Width),
		requireSize("height", r.Height),
		requireText("origin", r.Origin),
		requireText("destination", r.Destination),
	)
}

func (r QuoteRequest) Normalize() QuoteRequest {
	r.Origin = strings.TrimSpace(r.Origin)
	r.Destination = strings.TrimSpace(r.Destination)
	return r
}

type CreateShipmentRequest struct {
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	Weight      decimal.Decimal `json:"weight"`
	Length      decimal.Decimal `json:"length"`
	Width       decimal.Decimal `json:"width"`
	Height      decimal.Decimal `json:"height"`
	QuotedPrice decimal.Decimal `json:"quotedPrice"`
}

func (r CreateShipmentRequest) Validate() error {
	return firstInvalid(
		requireText("origin", r.Origin),
		requireText("destination", r.Destination),
		requireWeight(r.Weight),
		requireSize("length", r.Length),
		requireSize("width", r.Width),
		requireSize("height", r.Height),
		requireAmount("quotedPrice", r.QuotedPrice, PriceScale, PriceIntDigits),
	)
}

func (r CreateShipmentRequest) Package() Package {
	return Package{Weight: r.Weight, Length: r.Length, Width: r.Width, Height: r.Height}
}

type RegisterRequest struct {
	Nickname  string `json:"nickname"`
	Names     string `json:"names"`
	Lastnames string `json:"lastnames"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	City      string `json:"city"`
	Phone     string `json:"phone"`
}

const PasswordMinLength = 6

func (r RegisterRequest) Validate() error {
	err := firstInvalid(
		requireText("nickname", r.Nickname),
		requireText("names", r.Names),
		requireText("lastnames", r.Lastnames),
		requireText("email", r.Email),
		requireText("password", r.Password),
		requireText("city", r.City),
		requireText("phone", r.Phone),
	)
	if err != nil {
		return err
	}
	if len(r.Password) < PasswordMinLength {
		return apperr.Validation("password", "must be at least 6 characters")
	}
	if !validEmail(r.Email) {
		return apperr.Validation("email", "invalid format")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	if err := firstInvalid(requireText("email", r.Email), requireText("password", r.Password)); err != nil {
		return err
	}
	if !validEmail(r.Email) {
		return apperr.Validation("email", "invalid format")
	}
	return nil
}

type StatusTransitionRequest struct {
	Status      ShipmentStatus `json:"status"`
	Description string         `json:"description"`
	Location    *string        `json:"location,omitempty"`
}

func (r StatusTransitionRequest) Validate() error {
	if !r.Status.Valid() {
		return apperr.Validation("status", "unknown status")
	}
	return requireText("description", r.Description)
}

func requireText(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return apperr.Validation(field, "is required")
	}
	return nil
}

func requirePositive(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return apperr.Validation(field, "must be greater than 0")
	}
	return nil
}

func requireWeight(v decimal.Decimal) error {
	return requireAmount("weight", v, WeightScale, WeightIntDigits)
}

func requireSize(field string, v decimal.Decimal) error {
	return requireAmount(field, v, SizeScale, SizeIntDigits)
}

func requireAmount(field string, v decimal.Decimal, scale, intDigits int32) error {
	if err := requirePositive(field, v); err != nil {
		return err
	}
	if int64(v.NumDigits())+int64(v.Exponent()) > int64(intDigits) {
		return apperr.Validation(field, fmt.Sprintf("must be less than 1e%d", intDigits))
	}
	if !fitsScale(v, scale) {
		return apperr.Validation(field, fmt.Sprintf("must have at most %d decimal places", scale))
	}
	return nil
}

// fitsScale reports whether v has no significant digits past scale. Only the
// coefficient is inspected, so extreme exponents cost nothing.
func fitsScale(v decimal.Decimal, scale int32) bool {
	drop := -int64(scale) - int64(v.Exponent())
	if drop <= 0 {
		return true
	}
	c := v.Coefficient()
	if drop > int64(len(c.String())) {
		return false
	}
	p := new(big.Int).Exp(big.NewInt(10), big.NewInt(drop), nil)
	return new(big.Int).Mod(c, p).Sign() == 0
}

func firstInvalid(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// validEmail mirrors ^[^\s@]+@[^\s@]+\.[^\s@]+$.
func validEmail(s string) bool {
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return false
	}
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}
