package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
)

// Claims is what a verified credential proves.
type Claims struct {
	UserID    uint64
	TokenID   string
	ExpiresAt time.Time
}

func (s *Service) signToken(userID uint64) (string, Claims, error) {
	now := s.now()
	c := Claims{
		UserID:    userID,
		TokenID:   ulid.Make().String(),
		ExpiresAt: now.Add(s.tokenTTL).Truncate(time.Second),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		ID:        c.TokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", Claims{}, errors.Wrap(err, "sign token")
	}
	return signed, c, nil
}

// parseToken checks signature, algorithm and expiry. Revocation is checked by the caller.
func (s *Service) parseToken(raw string) (Claims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &rc, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, err
	}

	userID, err := strconv.ParseUint(rc.Subject, 10, 64)
	if err != nil || userID == 0 {
		return Claims{}, errors.New("invalid subject")
	}
	if rc.ID == "" {
		return Claims{}, errors.New("missing token id")
	}
	return Claims{UserID: userID, TokenID: rc.ID, ExpiresAt: rc.ExpiresAt.Time}, nil
}
