package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/imoveplus/crm/backend/data"
	"github.com/jackc/pgx/v5/pgtype"
)

// CreateUser registers a user with a disabled feed and returns the new user id.
func CreateUser(ctx context.Context, db data.Queryer, name, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.New("email is required")
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}

	user := &data.User{
		Name:  pgtype.Text{String: name, Valid: name != ""},
		Email: pgtype.Text{String: email, Valid: true},
	}
	if err := SetPassword(user, password); err != nil {
		return "", err
	}

	return data.CreateUser(ctx, db, user, genFeedToken())
}
