package data

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgxrecord"
)

type FeedSettings struct {
	ID                   string
	UserID               string
	IsEnabled            pgtype.Bool
	FeedToken            pgtype.Text
	IncludeAllProperties pgtype.Bool
	IncludeAvailableOnly pgtype.Bool
	IncludeLeads         pgtype.Bool
	WebhookURL           pgtype.Text
	AccessCount          pgtype.Int4
	LastAccessedAt       pgtype.Timestamptz
	CreatedAt            pgtype.Timestamptz
	UpdatedAt            pgtype.Timestamptz
}

const selectFeedSettingsSQL = `select
  "id",
  "user_id",
  "is_enabled",
  "feed_token",
  "include_all_properties",
  "include_available_only",
  "include_leads",
  "webhook_url",
  "access_count",
  "last_accessed_at",
  "created_at",
  "updated_at"
from "feed_settings"`

func scanFeedSettings(row pgx.CollectableRow) (FeedSettings, error) {
	var fs FeedSettings
	err := row.Scan(
		&fs.ID,
		&fs.UserID,
		&fs.IsEnabled,
		&fs.FeedToken,
		&fs.IncludeAllProperties,
		&fs.IncludeAvailableOnly,
		&fs.IncludeLeads,
		&fs.WebhookURL,
		&fs.AccessCount,
		&fs.LastAccessedAt,
		&fs.CreatedAt,
		&fs.UpdatedAt,
	)
	return fs, err
}

func selectFeedSettings(ctx context.Context, db Queryer, sql string, arg any) (*FeedSettings, error) {
	rows, _ := db.Query(ctx, sql, arg)
	fs, err := pgx.CollectOneRow(rows, scanFeedSettings)
	if err != nil {
		return nil, translateError(err)
	}
	return &fs, nil
}

func SelectFeedSettingsByToken(ctx context.Context, db Queryer, token string) (*FeedSettings, error) {
	return selectFeedSettings(ctx, db, selectFeedSettingsSQL+` where "feed_token"=$1`, token)
}

func SelectFeedSettingsByUserID(ctx context.Context, db Queryer, userID string) (*FeedSettings, error) {
	return selectFeedSettings(ctx, db, selectFeedSettingsSQL+` where "user_id"=$1`, userID)
}

// UpdateFeedSettings sets the valid fields of row on the settings of userID. Invalid fields are left unchanged.
func UpdateFeedSettings(ctx context.Context, db Queryer, userID string, row *FeedSettings) error {
	sets := make([]string, 0, 7)
	args := pgsql.Args{}

	if row.IsEnabled.Valid {
		sets = append(sets, `is_enabled`+"="+args.Use(&row.IsEnabled).String())
	}
	if row.FeedToken.Valid {
		sets = append(sets, `feed_token`+"="+args.Use(&row.FeedToken).String())
	}
	if row.IncludeAllProperties.Valid {
		sets = append(sets, `include_all_properties`+"="+args.Use(&row.IncludeAllProperties).String())
	}
	if row.IncludeAvailableOnly.Valid {
		sets = append(sets, `include_available_only`+"="+args.Use(&row.IncludeAvailableOnly).String())
	}
	if row.IncludeLeads.Valid {
		sets = append(sets, `include_leads`+"="+args.Use(&row.IncludeLeads).String())
	}
	if row.WebhookURL.Valid {
		sets = append(sets, `webhook_url`+"="+args.Use(&row.WebhookURL).String())
	}

	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, `updated_at=now()`)

	sql := `update "feed_settings" set ` + strings.Join(sets, ", ") + ` where ` + `"user_id"=` + args.Use(userID).String()

	commandTag, err := db.Exec(ctx, sql, args.Values()...)
	if err != nil {
		return translateError(err)
	}
	if commandTag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

type FeedAccess struct {
	UserID    string
	FeedToken string
	IPAddress pgtype.Text
	UserAgent pgtype.Text
}

const recordFeedAccessSQL = `with counted as (
  update feed_settings
  set access_count=access_count+1, last_accessed_at=now()
  where feed_token=$2
)
insert into feed_access_logs(user_id, feed_token, ip_address, user_agent)
values($1, $2, $3, $4)`

// RecordFeedAccess increments the access counter of the feed and writes an access log row.
func RecordFeedAccess(ctx context.Context, db Queryer, access *FeedAccess) error {
	_, err := pgxrecord.ExecRow(ctx, db, recordFeedAccessSQL, access.UserID, access.FeedToken, &access.IPAddress, &access.UserAgent)
	return err
}

func ClearFeedWebhook(ctx context.Context, db Queryer, userID string) error {
	_, err := pgxrecord.ExecRow(ctx, db, `update feed_settings set webhook_url=null, updated_at=now() where user_id=$1`, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
