package pgshipping

import (
	"context"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	out := u
	err := s.db.QueryRow(ctx, `
INSERT INTO users (nickname, names, lastnames, email, password, city, phone)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id, created_at
`, u.Nickname, u.Names, u.Lastnames, u.Email, u.PasswordHash, u.City, u.Phone).Scan(&out.ID, &out.CreatedAt)
	if uniqueViolation(err, "users_email_key") {
		return nil, models.ErrEmailTaken
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	out.CreatedAt = out.CreatedAt.UTC()
	return &out, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, `
SELECT id, nickname, names, lastnames, email, password, city, phone, created_at
FROM users
WHERE email = $1
`, email).Scan(&u.ID, &u.Nickname, &u.Names, &u.Lastnames, &u.Email, &u.PasswordHash, &u.City, &u.Phone, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}
