package backend

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/tern/v2/migrate"
	log "gopkg.in/inconshreveable/log15.v2"
)

// Migrate applies all migrations newer than the version recorded in schema_version.
func Migrate(ctx context.Context, conn *pgx.Conn, logger log.Logger) error {
	m, err := migrate.NewMigrator(ctx, conn, "schema_version")
	if err != nil {
		return err
	}

	m.OnStart = func(sequence int32, name, direction, sql string) {
		logger.Info("Migrating", "sequence", sequence, "name", name, "direction", direction)
	}

	m.AppendMigration("Create users", `
    create extension if not exists pgcrypto;

    create table users(
      id uuid primary key default gen_random_uuid(),
      name varchar,
      email varchar not null unique check(email<>''),
      password_digest bytea not null,
      password_salt bytea not null,
      created_at timestamptz not null default now()
    );
  `, "")

	m.AppendMigration("Create sessions", `
    create unlogged table sessions(
      id bytea primary key,
      user_id uuid not null references users on delete cascade,
      start_time timestamptz not null default now()
    );
  `, "")

	m.AppendMigration("Create imoveis_venda", `
    create table imoveis_venda(
      id bigserial primary key,
      user_id uuid not null references users on delete cascade,
      titulo varchar,
      descricao text,
      preco numeric,
      tipo_imovel varchar,
      status varchar not null default 'Available',
      tipo_transacao varchar not null default 'Sale',
      area_total numeric,
      quartos integer,
      banheiros integer,
      vagas_garagem integer,
      endereco varchar,
      numero varchar,
      bairro varchar,
      cidade varchar,
      estado varchar,
      cep varchar,
      fotos text[],
      created_at timestamptz not null default now(),
      updated_at timestamptz not null default now()
    );

    create index on imoveis_venda (user_id, created_at, id);
  `, "")

	m.AppendMigration("Create leads", `
    create table leads(
      id uuid primary key default gen_random_uuid(),
      user_id uuid not null references users on delete cascade,
      name varchar not null check(name<>''),
      phone varchar,
      email varchar,
      status varchar not null default 'New',
      interest varchar,
      notes text,
      property_id bigint references imoveis_venda on delete set null,
      created_at timestamptz not null default now(),
      updated_at timestamptz not null default now()
    );

    create index on leads (user_id, created_at, id);
  `, "")

	m.AppendMigration("Create funnel_items", `
    create table funnel_items(
      id uuid primary key default gen_random_uuid(),
      user_id uuid not null references users on delete cascade,
      lead_id uuid not null,
      property_id bigint,
      stage varchar not null check(stage in ('New', 'Qualifying', 'Visit Scheduled', 'Proposal Sent', 'Closed', 'Lost')),
      value numeric,
      days_in_stage integer not null default 0,
      last_contact timestamptz default now()
    );

    create index on funnel_items (user_id, last_contact);
  `, "")

	m.AppendMigration("Create feed_settings", `
    create table feed_settings(
      id uuid primary key default gen_random_uuid(),
      user_id uuid not null unique references users on delete cascade,
      is_enabled boolean not null default false,
      feed_token varchar not null unique,
      include_all_properties boolean not null default true,
      include_available_only boolean not null default false,
      include_leads boolean not null default false,
      webhook_url varchar,
      access_count integer not null default 0,
      last_accessed_at timestamptz,
      created_at timestamptz not null default now(),
      updated_at timestamptz not null default now()
    );

    create table feed_access_logs(
      id bigserial primary key,
      user_id uuid not null references users on delete cascade,
      feed_token varchar not null,
      ip_address varchar,
      user_agent varchar,
      accessed_at timestamptz not null default now()
    );
  `, "")

	return m.Migrate(ctx)
}
