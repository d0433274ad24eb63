package data

import (
	"context"
	"strings"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Property is a row of imoveis_venda. Column names follow the listing import format.
type Property struct {
	ID              int64
	UserID          string
	Title           pgtype.Text   // titulo
	Description     pgtype.Text   // descricao
	Price           pgtype.Float8 // preco
	PropertyType    pgtype.Text   // tipo_imovel
	Status          pgtype.Text
	TransactionType pgtype.Text   // tipo_transacao
	TotalArea       pgtype.Float8 // area_total
	Bedrooms        pgtype.Int4   // quartos
	Bathrooms       pgtype.Int4   // banheiros
	Garage          pgtype.Int4   // vagas_garagem
	Street          pgtype.Text   // endereco
	Number          pgtype.Text   // numero
	Neighborhood    pgtype.Text   // bairro
	City            pgtype.Text   // cidade
	State           pgtype.Text   // estado
	Zipcode         pgtype.Text   // cep
	Photos          []string      // fotos
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

const selectPropertySQL = `select
  "id",
  "user_id",
  "titulo",
  "descricao",
  "preco",
  "tipo_imovel",
  "status",
  "tipo_transacao",
  "area_total",
  "quartos",
  "banheiros",
  "vagas_garagem",
  "endereco",
  "numero",
  "bairro",
  "cidade",
  "estado",
  "cep",
  coalesce("fotos", '{}'),
  "created_at",
  "updated_at"
from "imoveis_venda"`

func scanProperty(row pgx.CollectableRow) (Property, error) {
	var p Property
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Title,
		&p.Description,
		&p.Price,
		&p.PropertyType,
		&p.Status,
		&p.TransactionType,
		&p.TotalArea,
		&p.Bedrooms,
		&p.Bathrooms,
		&p.Garage,
		&p.Street,
		&p.Number,
		&p.Neighborhood,
		&p.City,
		&p.State,
		&p.Zipcode,
		&p.Photos,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

// SelectPropertiesByUserID returns at most limit properties in insertion order.
func SelectPropertiesByUserID(ctx context.Context, db Queryer, userID string, limit int) ([]Property, error) {
	rows, _ := db.Query(ctx, selectPropertySQL+` where "user_id"=$1 order by "created_at", "id" limit $2`, userID, limit)
	return pgx.CollectRows(rows, scanProperty)
}

func SelectPropertyByPK(ctx context.Context, db Queryer, userID string, id int64) (*Property, error) {
	rows, _ := db.Query(ctx, selectPropertySQL+` where "user_id"=$1 and "id"=$2`, userID, id)
	p, err := pgx.CollectOneRow(rows, scanProperty)
	if err != nil {
		return nil, translateError(err)
	}
	return &p, nil
}

func CountPropertiesByUserID(ctx context.Context, db Queryer, userID string) (int64, error) {
	var n int64
	err := db.QueryRow(ctx, `select count(*) from "imoveis_venda" where "user_id"=$1`, userID).Scan(&n)
	return n, err
}

func InsertProperty(ctx context.Context, db Queryer, row *Property) error {
	args := pgsql.Args{}

	var columns, values []string

	add := func(column string, value any) {
		columns = append(columns, column)
		values = append(values, args.Use(value).String())
	}

	add(`user_id`, row.UserID)
	add(`titulo`, &row.Title)
	add(`descricao`, &row.Description)
	add(`preco`, &row.Price)
	add(`tipo_imovel`, &row.PropertyType)
	if row.Status.Valid {
		add(`status`, &row.Status)
	}
	if row.TransactionType.Valid {
		add(`tipo_transacao`, &row.TransactionType)
	}
	add(`area_total`, &row.TotalArea)
	add(`quartos`, &row.Bedrooms)
	add(`banheiros`, &row.Bathrooms)
	add(`vagas_garagem`, &row.Garage)
	add(`endereco`, &row.Street)
	add(`numero`, &row.Number)
	add(`bairro`, &row.Neighborhood)
	add(`cidade`, &row.City)
	add(`estado`, &row.State)
	add(`cep`, &row.Zipcode)
	add(`fotos`, row.Photos)

	sql := `insert into "imoveis_venda"(` + strings.Join(columns, ", ") + `)
values(` + strings.Join(values, ", ") + `)
returning "id", "status", "tipo_transacao", "created_at", "updated_at"`

	err := db.QueryRow(ctx, sql, args.Values()...).Scan(&row.ID, &row.Status, &row.TransactionType, &row.CreatedAt, &row.UpdatedAt)
	return translateError(err)
}
