package data

import (
	"context"
	"strings"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type Lead struct {
	ID         string
	UserID     string
	Name       pgtype.Text
	Phone      pgtype.Text
	Email      pgtype.Text
	Status     pgtype.Text
	Interest   pgtype.Text
	Notes      pgtype.Text
	PropertyID pgtype.Int8
	CreatedAt  pgtype.Timestamptz
	UpdatedAt  pgtype.Timestamptz
}

const selectLeadSQL = `select
  "id",
  "user_id",
  "name",
  "phone",
  "email",
  "status",
  "interest",
  "notes",
  "property_id",
  "created_at",
  "updated_at"
from "leads"`

func scanLead(row pgx.CollectableRow) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID,
		&l.UserID,
		&l.Name,
		&l.Phone,
		&l.Email,
		&l.Status,
		&l.Interest,
		&l.Notes,
		&l.PropertyID,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

// SelectLeadsByUserID returns at most limit leads in insertion order.
func SelectLeadsByUserID(ctx context.Context, db Queryer, userID string, limit int) ([]Lead, error) {
	rows, _ := db.Query(ctx, selectLeadSQL+` where "user_id"=$1 order by "created_at", "id" limit $2`, userID, limit)
	return pgx.CollectRows(rows, scanLead)
}

func SelectLeadByPK(ctx context.Context, db Queryer, userID, id string) (*Lead, error) {
	rows, _ := db.Query(ctx, selectLeadSQL+` where "user_id"=$1 and "id"=$2`, userID, id)
	l, err := pgx.CollectOneRow(rows, scanLead)
	if err != nil {
		return nil, translateError(err)
	}
	return &l, nil
}

func InsertLead(ctx context.Context, db Queryer, row *Lead) error {
	args := pgsql.Args{}

	var columns, values []string

	columns = append(columns, `user_id`)
	values = append(values, args.Use(row.UserID).String())
	columns = append(columns, `name`)
	values = append(values, args.Use(&row.Name).String())
	columns = append(columns, `phone`)
	values = append(values, args.Use(&row.Phone).String())
	columns = append(columns, `email`)
	values = append(values, args.Use(&row.Email).String())
	columns = append(columns, `status`)
	values = append(values, args.Use(&row.Status).String())
	columns = append(columns, `interest`)
	values = append(values, args.Use(&row.Interest).String())
	columns = append(columns, `notes`)
	values = append(values, args.Use(&row.Notes).String())
	columns = append(columns, `property_id`)
	values = append(values, args.Use(&row.PropertyID).String())

	sql := `insert into "leads"(` + strings.Join(columns, ", ") + `)
values(` + strings.Join(values, ", ") + `)
returning "id", "created_at", "updated_at"`

	err := db.QueryRow(ctx, sql, args.Values()...).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt)
	return translateError(err)
}
