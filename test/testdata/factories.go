package testdata

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/imoveplus/crm/backend/data"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgxutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/scrypt"
)

var counter atomic.Int64

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CreateUser inserts a user and its feed settings. A "password" attribute is stored as a scrypt digest and defaults
// to "password". Feed settings attributes may be given in feedAttrs.
func CreateUser(t testing.TB, db DB, ctx context.Context, attrs map[string]any, feedAttrs map[string]any) map[string]any {
	n := counter.Add(1)

	setPassword := func(u *data.User, password string) error {
		salt := make([]byte, 8)
		_, err := rand.Read(salt)
		if err != nil {
			return err
		}

		digest, err := scrypt.Key([]byte(password), salt, 16384, 8, 1, 32)
		if err != nil {
			return err
		}

		u.PasswordDigest = digest
		u.PasswordSalt = salt

		return nil
	}

	if attrs == nil {
		attrs = make(map[string]any)
	}

	if _, ok := attrs["password_digest"]; !ok {
		if _, ok := attrs["password"]; !ok {
			attrs["password"] = "password"
		}
	}

	if password, ok := attrs["password"]; ok {
		du := &data.User{}
		require.NoError(t, setPassword(du, fmt.Sprint(password)))
		delete(attrs, "password")
		attrs["password_digest"] = du.PasswordDigest
		attrs["password_salt"] = du.PasswordSalt
	}

	if _, ok := attrs["name"]; !ok {
		attrs["name"] = "test"
	}
	if _, ok := attrs["email"]; !ok {
		attrs["email"] = fmt.Sprintf("user%v@example.com", n)
	}

	user, err := pgxutil.Insert(ctx, db, "users", attrs)
	require.NoError(t, err)

	if feedAttrs == nil {
		feedAttrs = make(map[string]any)
	}
	feedAttrs["user_id"] = user["id"]
	if _, ok := feedAttrs["feed_token"]; !ok {
		feedAttrs["feed_token"] = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	settings, err := pgxutil.Insert(ctx, db, "feed_settings", feedAttrs)
	require.NoError(t, err)
	user["feed_token"] = settings["feed_token"]

	return user
}

func CreateLead(t testing.TB, db DB, ctx context.Context, attrs map[string]any) map[string]any {
	n := counter.Add(1)

	if _, ok := attrs["name"]; !ok {
		attrs["name"] = fmt.Sprintf("Lead %v", n)
	}
	if _, ok := attrs["status"]; !ok {
		attrs["status"] = "New"
	}

	lead, err := pgxutil.Insert(ctx, db, "leads", attrs)
	require.NoError(t, err)

	return lead
}

func CreateProperty(t testing.TB, db DB, ctx context.Context, attrs map[string]any) map[string]any {
	n := counter.Add(1)

	if _, ok := attrs["titulo"]; !ok {
		attrs["titulo"] = fmt.Sprintf("Property %v", n)
	}

	property, err := pgxutil.Insert(ctx, db, "imoveis_venda", attrs)
	require.NoError(t, err)

	return property
}

// CreateFunnelItem inserts a funnel item. A lead owned by the same user is created when lead_id is not given.
func CreateFunnelItem(t testing.TB, db DB, ctx context.Context, attrs map[string]any) map[string]any {
	if _, ok := attrs["lead_id"]; !ok {
		attrs["lead_id"] = CreateLead(t, db, ctx, map[string]any{"user_id": attrs["user_id"]})["id"]
	}
	if _, ok := attrs["stage"]; !ok {
		attrs["stage"] = "New"
	}

	item, err := pgxutil.Insert(ctx, db, "funnel_items", attrs)
	require.NoError(t, err)

	return item
}
