package data

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgxrecord"
)

type Session struct {
	ID        []byte
	UserID    string
	StartTime pgtype.Timestamptz
}

func InsertSession(ctx context.Context, db Queryer, row *Session) error {
	return db.QueryRow(ctx,
		`insert into "sessions"("id", "user_id") values($1, $2) returning "start_time"`,
		row.ID, row.UserID,
	).Scan(&row.StartTime)
}

func DeleteSession(ctx context.Context, db Queryer, id []byte) error {
	_, err := pgxrecord.ExecRow(ctx, db, `delete from sessions where id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	return nil
}
