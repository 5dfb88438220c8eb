package pgshipping

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  nickname TEXT NOT NULL,
  names TEXT NOT NULL,
  lastnames TEXT NOT NULL,
  email TEXT NOT NULL,
  password TEXT NOT NULL,
  city TEXT NOT NULL,
  phone TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT users_email_key UNIQUE (email)
)`,
		`
CREATE TABLE IF NOT EXISTS tariffs (
  id BIGSERIAL PRIMARY KEY,
  origin TEXT NOT NULL,
  destination TEXT NOT NULL,
  price_per_kg NUMERIC(12,2) NOT NULL CHECK (price_per_kg > 0),
  CONSTRAINT tariffs_route_key UNIQUE (origin, destination)
)`,
		`
CREATE TABLE IF NOT EXISTS shipments (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id),
  origin TEXT NOT NULL,
  destination TEXT NOT NULL,
  package_weight NUMERIC(10,3) NOT NULL,
  package_length NUMERIC(10,2) NOT NULL,
  package_width NUMERIC(10,2) NOT NULL,
  package_height NUMERIC(10,2) NOT NULL,
  quoted_price NUMERIC(20,5) NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('waiting', 'in_transit', 'delivered')),
  tracking_number TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  CONSTRAINT shipments_tracking_number_key UNIQUE (tracking_number)
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_user_id_created_at ON shipments(user_id, created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS shipment_status_history (
  id BIGSERIAL PRIMARY KEY,
  shipment_id BIGINT NOT NULL REFERENCES shipments(id),
  status TEXT NOT NULL,
  description TEXT NOT NULL,
  location TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipment_status_history_shipment_id ON shipment_status_history(shipment_id, created_at)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
