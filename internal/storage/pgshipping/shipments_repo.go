package pgshipping

import (
	"context"
	"time"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
)

const shipmentColumns = `
  id, user_id, origin, destination,
  package_weight, package_length, package_width, package_height,
  quoted_price, status, tracking_number,
  created_at, updated_at`

// CreateShipment inserts the shipment and its initial "waiting" history row in
// one transaction. A tracking number collision rolls everything back and
// returns models.ErrTrackingNumberTaken.
func (s *Storage) CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uint64
	err = tx.QueryRow(ctx, `
INSERT INTO shipments (
  user_id, origin, destination,
  package_weight, package_length, package_width, package_height,
  quoted_price, status, tracking_number, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
RETURNING id
`, in.UserID, in.Origin, in.Destination,
		toNumeric(in.Package.Weight), toNumeric(in.Package.Length), toNumeric(in.Package.Width), toNumeric(in.Package.Height),
		toNumeric(in.QuotedPrice), models.ShipmentStatusWaiting, in.TrackingNumber, now).Scan(&id)
	if uniqueViolation(err, "shipments_tracking_number_key") {
		return nil, models.ErrTrackingNumberTaken
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert shipment")
	}

	if err := insertHistory(ctx, tx, id, models.ShipmentStatusWaiting, models.InitialHistoryDescription, nil, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return &models.Shipment{
		ID:             id,
		UserID:         in.UserID,
		Origin:         in.Origin,
		Destination:    in.Destination,
		Package:        in.Package,
		QuotedPrice:    in.QuotedPrice,
		Status:         models.ShipmentStatusWaiting,
		TrackingNumber: in.TrackingNumber,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *Storage) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, id)
	return scanShipmentRow(row)
}

func (s *Storage) GetShipmentByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE tracking_number = $1`, trackingNumber)
	return scanShipmentRow(row)
}

func (s *Storage) ListShipmentsByUser(ctx context.Context, userID uint64) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+shipmentColumns+`
FROM shipments
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments")
	}
	defer rows.Close()

	out := make([]*models.Shipment, 0)
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ApplyStatusTransition moves the shipment from tr.From to tr.To and appends a
// history row. The update is conditional on the current status so two
// concurrent transitions cannot both succeed.
func (s *Storage) ApplyStatusTransition(ctx context.Context, tr models.StatusTransition) (*models.Shipment, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
UPDATE shipments
SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2
RETURNING `+shipmentColumns, tr.ShipmentID, tr.From, tr.To, now)
	sh, err := scanShipmentRow(row)
	if errors.Is(err, models.ErrNotFound) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM shipments WHERE id = $1)`, tr.ShipmentID).Scan(&exists); err != nil {
			return nil, errors.Wrap(err, "check shipment")
		}
		if exists {
			return nil, models.ErrStatusConflict
		}
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := insertHistory(ctx, tx, tr.ShipmentID, tr.To, tr.Description, tr.Location, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return sh, nil
}

func (s *Storage) ListStatusHistory(ctx context.Context, shipmentID uint64) ([]*models.ShipmentStatusHistory, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, shipment_id, status, description, location, created_at
FROM shipment_status_history
WHERE shipment_id = $1
ORDER BY created_at ASC, id ASC
`, shipmentID)
	if err != nil {
		return nil, errors.Wrap(err, "select history")
	}
	defer rows.Close()

	out := make([]*models.ShipmentStatusHistory, 0)
	for rows.Next() {
		var h models.ShipmentStatusHistory
		var location *string
		if err := rows.Scan(&h.ID, &h.ShipmentID, &h.Status, &h.Description, &location, &h.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan history")
		}
		h.Location = location
		h.CreatedAt = h.CreatedAt.UTC()
		out = append(out, &h)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, shipmentID uint64, status models.ShipmentStatus, description string, location *string, at time.Time) error {
	_, err := tx.Exec(ctx, `
INSERT INTO shipment_status_history (shipment_id, status, description, location, created_at)
VALUES ($1,$2,$3,$4,$5)
`, shipmentID, status, description, location, at)
	if err != nil {
		return errors.Wrap(err, "insert history")
	}
	return nil
}

func scanShipmentRow(row pgx.Row) (*models.Shipment, error) {
	sh, err := scanShipment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan shipment")
	}
	return sh, nil
}

func scanShipment(row pgx.Row) (*models.Shipment, error) {
	var sh models.Shipment
	var weight, length, width, height, price pgtype.Numeric
	if err := row.Scan(
		&sh.ID, &sh.UserID, &sh.Origin, &sh.Destination,
		&weight, &length, &width, &height,
		&price, &sh.Status, &sh.TrackingNumber,
		&sh.CreatedAt, &sh.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sh.Package = models.Package{
		Weight: fromNumeric(weight),
		Length: fromNumeric(length),
		Width:  fromNumeric(width),
		Height: fromNumeric(height),
	}
	sh.QuotedPrice = fromNumeric(price)
	sh.CreatedAt = sh.CreatedAt.UTC()
	sh.UpdatedAt = sh.UpdatedAt.UTC()
	return &sh, nil
}
