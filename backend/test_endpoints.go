package backend

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/imoveplus/crm/backend/data"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgxutil"
	log "gopkg.in/inconshreveable/log15.v2"
)

var counter atomic.Int64

// RegisterTestEndpoints adds test-only endpoints to the API router
// Only call this when TEST_ENDPOINTS environment variable is set
func RegisterTestEndpoints(r chi.Router, pool *pgxpool.Pool, logger log.Logger) {
	r.Post("/test/reset-db", func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		// Get database name from the pool config
		config := pool.Config()
		dbName := config.ConnConfig.Database

		// Connect as postgres superuser for pgundolog.undo()
		connString := fmt.Sprintf("host=%s port=%d dbname=%s user=postgres sslmode=disable",
			config.ConnConfig.Host, config.ConnConfig.Port, dbName)

		conn, err := pgx.Connect(ctx, connString)
		if err != nil {
			logger.Error("Failed to connect as postgres", "error", err)
			http.Error(w, fmt.Sprintf("Failed to connect as postgres: %v", err), 500)
			return
		}
		defer conn.Close(ctx)

		_, err = conn.Exec(ctx, "SELECT pgundolog.undo()")
		if err != nil {
			logger.Error("Failed to reset database", "error", err)
			http.Error(w, fmt.Sprintf("Failed to reset database: %v", err), 500)
			return
		}

		w.WriteHeader(204)
	})

	// Creates a user with feed settings and a session so the caller can authenticate immediately.
	r.Post("/test/users", func(w http.ResponseWriter, req *http.Request) {
		var attrs struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(req.Body).Decode(&attrs); err != nil {
			http.Error(w, fmt.Sprintf("Error decoding request: %v", err), 400)
			return
		}

		n := counter.Add(1)
		if attrs.Name == "" {
			attrs.Name = "test"
		}
		if attrs.Email == "" {
			attrs.Email = fmt.Sprintf("user%v@example.com", n)
		}
		if attrs.Password == "" {
			attrs.Password = "password"
		}

		ctx := req.Context()
		userID, err := CreateUser(ctx, pool, attrs.Name, attrs.Email, attrs.Password)
		if err != nil {
			logger.Error("Failed to create user", "error", err)
			http.Error(w, fmt.Sprintf("Failed to create user: %v", err), 500)
			return
		}

		sessionID, err := genSessionID()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to create session: %v", err), 500)
			return
		}
		if err := data.InsertSession(ctx, pool, &data.Session{ID: sessionID, UserID: userID}); err != nil {
			logger.Error("Failed to create session", "error", err)
			http.Error(w, fmt.Sprintf("Failed to create session: %v", err), 500)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": userID, "sessionID": hex.EncodeToString(sessionID)})
	})

	r.Post("/test/leads", insertTestRow(pool, logger, "leads", func(ctx context.Context, attrs map[string]any, n int64) error {
		if _, ok := attrs["name"]; !ok {
			attrs["name"] = fmt.Sprintf("Lead %v", n)
		}
		return nil
	}))

	r.Post("/test/properties", insertTestRow(pool, logger, "imoveis_venda", func(ctx context.Context, attrs map[string]any, n int64) error {
		if _, ok := attrs["titulo"]; !ok {
			attrs["titulo"] = fmt.Sprintf("Property %v", n)
		}
		return nil
	}))

	r.Post("/test/funnel_items", insertTestRow(pool, logger, "funnel_items", func(ctx context.Context, attrs map[string]any, n int64) error {
		if _, ok := attrs["lead_id"]; !ok {
			lead, err := pgxutil.Insert(ctx, pool, "leads", map[string]any{
				"user_id": attrs["user_id"],
				"name":    fmt.Sprintf("Lead %v", n),
			})
			if err != nil {
				return fmt.Errorf("failed to create lead: %w", err)
			}
			attrs["lead_id"] = lead["id"]
		}
		if _, ok := attrs["stage"]; !ok {
			attrs["stage"] = "New"
		}
		return nil
	}))

	r.Post("/test/query", func(w http.ResponseWriter, req *http.Request) {
		var query struct {
			SQL    string `json:"sql"`
			Params []any  `json:"params"`
		}
		if err := json.NewDecoder(req.Body).Decode(&query); err != nil {
			http.Error(w, fmt.Sprintf("Error decoding request: %v", err), 400)
			return
		}

		rows, err := pool.Query(req.Context(), query.SQL, query.Params...)
		if err != nil {
			logger.Error("Query failed", "error", err, "sql", query.SQL)
			http.Error(w, fmt.Sprintf("Query failed: %v", err), 500)
			return
		}
		defer rows.Close()

		results, err := pgx.CollectRows(rows, pgx.RowToMap)
		if err != nil {
			logger.Error("Failed to collect rows", "error", err)
			http.Error(w, fmt.Sprintf("Failed to collect rows: %v", err), 500)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	})
}

// insertTestRow returns a handler inserting the posted attributes into table after applying defaults.
func insertTestRow(pool *pgxpool.Pool, logger log.Logger, table string, defaults func(ctx context.Context, attrs map[string]any, n int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var attrs map[string]any
		if err := json.NewDecoder(req.Body).Decode(&attrs); err != nil {
			http.Error(w, fmt.Sprintf("Error decoding request: %v", err), 400)
			return
		}
		if attrs == nil {
			attrs = make(map[string]any)
		}

		if err := defaults(req.Context(), attrs, counter.Add(1)); err != nil {
			logger.Error("Failed to apply test row defaults", "table", table, "error", err)
			http.Error(w, fmt.Sprintf("Failed to insert into %s: %v", table, err), 500)
			return
		}

		row, err := pgxutil.Insert(req.Context(), pool, table, attrs)
		if err != nil {
			logger.Error("Failed to insert test row", "table", table, "error", err)
			http.Error(w, fmt.Sprintf("Failed to insert into %s: %v", table, err), 500)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(row)
	}
}
