package data

import (
	"context"
	"strings"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type FunnelItem struct {
	ID           string
	UserID       string
	LeadID       string
	LeadName     pgtype.Text
	PropertyID   pgtype.Int8
	PropertyName pgtype.Text
	Stage        string
	Value        pgtype.Float8
	DaysInStage  int32
	LastContact  pgtype.Timestamptz
}

const selectFunnelItemSQL = `select
  funnel_items.id,
  funnel_items.user_id,
  funnel_items.lead_id,
  leads.name,
  funnel_items.property_id,
  imoveis_venda.titulo,
  funnel_items.stage,
  funnel_items.value,
  funnel_items.days_in_stage,
  funnel_items.last_contact
from funnel_items
  left join leads on funnel_items.lead_id=leads.id
  left join imoveis_venda on funnel_items.property_id=imoveis_venda.id`

func scanFunnelItem(row pgx.CollectableRow) (FunnelItem, error) {
	var fi FunnelItem
	err := row.Scan(
		&fi.ID,
		&fi.UserID,
		&fi.LeadID,
		&fi.LeadName,
		&fi.PropertyID,
		&fi.PropertyName,
		&fi.Stage,
		&fi.Value,
		&fi.DaysInStage,
		&fi.LastContact,
	)
	return fi, err
}

// SelectFunnelItemsByUserID returns the user's funnel items, most recently contacted first.
func SelectFunnelItemsByUserID(ctx context.Context, db Queryer, userID string) ([]FunnelItem, error) {
	rows, _ := db.Query(ctx, selectFunnelItemSQL+`
where funnel_items.user_id=$1
order by funnel_items.last_contact desc nulls last, funnel_items.id`, userID)
	return pgx.CollectRows(rows, scanFunnelItem)
}

func SelectFunnelItemByPK(ctx context.Context, db Queryer, userID, id string) (*FunnelItem, error) {
	rows, _ := db.Query(ctx, selectFunnelItemSQL+`
where funnel_items.user_id=$1 and funnel_items.id=$2`, userID, id)
	fi, err := pgx.CollectOneRow(rows, scanFunnelItem)
	if err != nil {
		return nil, translateError(err)
	}
	return &fi, nil
}

func InsertFunnelItem(ctx context.Context, db Queryer, row *FunnelItem) error {
	args := pgsql.Args{}

	var columns, values []string

	columns = append(columns, `user_id`)
	values = append(values, args.Use(row.UserID).String())
	columns = append(columns, `lead_id`)
	values = append(values, args.Use(row.LeadID).String())
	columns = append(columns, `property_id`)
	values = append(values, args.Use(&row.PropertyID).String())
	columns = append(columns, `stage`)
	values = append(values, args.Use(row.Stage).String())
	columns = append(columns, `value`)
	values = append(values, args.Use(&row.Value).String())
	if row.LastContact.Valid {
		columns = append(columns, `last_contact`)
		values = append(values, args.Use(&row.LastContact).String())
	}

	sql := `insert into "funnel_items"(` + strings.Join(columns, ", ") + `)
values(` + strings.Join(values, ", ") + `)
returning "id", "days_in_stage", "last_contact"`

	err := db.QueryRow(ctx, sql, args.Values()...).Scan(&row.ID, &row.DaysInStage, &row.LastContact)
	return translateError(err)
}

// UpdateFunnelItemStage moves the item to stage. days_in_stage is reset in the same statement so the counter is
// always relative to the current stage.
func UpdateFunnelItemStage(ctx context.Context, db Queryer, userID, id, stage string) (*FunnelItem, error) {
	commandTag, err := db.Exec(ctx, `update funnel_items
set stage=$1, days_in_stage=0, last_contact=now()
where user_id=$2 and id=$3`, stage, userID, id)
	if err != nil {
		return nil, err
	}
	if commandTag.RowsAffected() != 1 {
		return nil, ErrNotFound
	}

	return SelectFunnelItemByPK(ctx, db, userID, id)
}

// AgeFunnelItems increments days_in_stage of every funnel item. It returns the number of items aged.
func AgeFunnelItems(ctx context.Context, db Queryer) (int64, error) {
	commandTag, err := db.Exec(ctx, `update funnel_items set days_in_stage=days_in_stage+1`)
	if err != nil {
		return 0, err
	}
	return commandTag.RowsAffected(), nil
}
