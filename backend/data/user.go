package data

import (
	"context"
	"strings"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             string
	Name           pgtype.Text
	Email          pgtype.Text
	PasswordDigest []byte
	PasswordSalt   []byte
}

const selectUserSQL = `select
  "id",
  "name",
  "email",
  "password_digest",
  "password_salt"
from "users"`

func selectUser(ctx context.Context, db Queryer, sql string, arg any) (*User, error) {
	var row User
	err := db.QueryRow(ctx, sql, arg).Scan(
		&row.ID,
		&row.Name,
		&row.Email,
		&row.PasswordDigest,
		&row.PasswordSalt,
	)
	if err != nil {
		return nil, translateError(err)
	}

	return &row, nil
}

func SelectUserByPK(ctx context.Context, db Queryer, id string) (*User, error) {
	return selectUser(ctx, db, selectUserSQL+` where "id"=$1`, id)
}

func SelectUserByEmail(ctx context.Context, db Queryer, email string) (*User, error) {
	return selectUser(ctx, db, selectUserSQL+` where lower("email")=lower($1)`, email)
}

const selectUserBySessionIDSQL = `select
  users.id,
  users.name,
  users.email,
  users.password_digest,
  users.password_salt
from sessions
  join users on sessions.user_id=users.id
where sessions.id=$1`

func SelectUserBySessionID(ctx context.Context, db Queryer, id []byte) (*User, error) {
	return selectUser(ctx, db, selectUserBySessionIDSQL, id)
}

// CreateUser inserts row and the user's disabled feed settings in a single statement. The new user id is stored in
// row.ID.
func CreateUser(ctx context.Context, db Queryer, row *User, feedToken string) (string, error) {
	args := pgsql.Args{}

	var columns, values []string

	columns = append(columns, `name`)
	values = append(values, args.Use(&row.Name).String())
	columns = append(columns, `email`)
	values = append(values, args.Use(&row.Email).String())
	columns = append(columns, `password_digest`)
	values = append(values, args.Use(row.PasswordDigest).String())
	columns = append(columns, `password_salt`)
	values = append(values, args.Use(row.PasswordSalt).String())

	sql := `with new_user as (
  insert into "users"(` + strings.Join(columns, ", ") + `)
  values(` + strings.Join(values, ", ") + `)
  returning "id"
)
insert into "feed_settings"("user_id", "feed_token")
select "id", ` + args.Use(feedToken).String() + ` from new_user
returning "user_id"`

	err := db.QueryRow(ctx, sql, args.Values()...).Scan(&row.ID)
	if err != nil {
		return "", translateError(err)
	}

	return row.ID, nil
}

func UpdateUserPassword(ctx context.Context, db Queryer, id string, digest, salt []byte) error {
	commandTag, err := db.Exec(ctx, `update "users" set "password_digest"=$1, "password_salt"=$2 where "id"=$3`, digest, salt, id)
	if err != nil {
		return err
	}
	if commandTag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
