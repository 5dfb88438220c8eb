package pgshipping

import (
	"context"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
)

func (s *Storage) FindTariff(ctx context.Context, origin, destination string) (*models.Tariff, error) {
	var t models.Tariff
	var price pgtype.Numeric
	err := s.db.QueryRow(ctx, `
SELECT id, origin, destination, price_per_kg
FROM tariffs
WHERE origin = $1 AND destination = $2
`, origin, destination).Scan(&t.ID, &t.Origin, &t.Destination, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tariff")
	}
	t.PricePerKg = fromNumeric(price)
	return &t, nil
}

func (s *Storage) ListTariffs(ctx context.Context) ([]*models.Tariff, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, origin, destination, price_per_kg
FROM tariffs
ORDER BY origin ASC, destination ASC
`)
	if err != nil {
		return nil, errors.Wrap(err, "select tariffs")
	}
	defer rows.Close()

	out := make([]*models.Tariff, 0)
	for rows.Next() {
		var t models.Tariff
		var price pgtype.Numeric
		if err := rows.Scan(&t.ID, &t.Origin, &t.Destination, &price); err != nil {
			return nil, errors.Wrap(err, "scan tariff")
		}
		t.PricePerKg = fromNumeric(price)
		out = append(out, &t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// UpsertTariff replaces the price for a route. Used by seeding.
func (s *Storage) UpsertTariff(ctx context.Context, t models.Tariff) (*models.Tariff, error) {
	out := t
	err := s.db.QueryRow(ctx, `
INSERT INTO tariffs (origin, destination, price_per_kg)
VALUES ($1, $2, $3)
ON CONFLICT (origin, destination)
DO UPDATE SET price_per_kg = EXCLUDED.price_per_kg
RETURNING id
`, t.Origin, t.Destination, toNumeric(t.PricePerKg)).Scan(&out.ID)
	if err != nil {
		return nil, errors.Wrap(err, "upsert tariff")
	}
	return &out, nil
}
