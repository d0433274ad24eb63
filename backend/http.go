package backend

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/imoveplus/crm/backend/data"
	"github.com/imoveplus/crm/backend/events"
	"github.com/imoveplus/crm/backend/feed"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	log "gopkg.in/inconshreveable/log15.v2"
)

type EnvHandlerFunc func(w http.ResponseWriter, req *http.Request, env *environment)

// EnvHandler resolves the session of each request and passes it to f with a copy of base.
func EnvHandler(base environment, f EnvHandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		env := base
		env.user = getUserFromSession(req, base.db, base.logger)
		f(w, req, &env)
	})
}

func AuthenticatedHandler(f EnvHandlerFunc) EnvHandlerFunc {
	return EnvHandlerFunc(func(w http.ResponseWriter, req *http.Request, env *environment) {
		if env.user == nil {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, "Bad or missing X-Authentication header")
			return
		}
		f(w, req, env)
	})
}

type environment struct {
	user     *data.User
	db       data.Queryer
	logger   log.Logger
	hub      *events.Hub
	feed     *feed.Generator
	notifier *feed.WebhookNotifier
}

// NewAppServer returns the handler serving the JSON API under /api and the public feeds under /feed.
func NewAppServer(config HTTPConfig, pool *pgxpool.Pool, logger log.Logger) (http.Handler, error) {
	if config.FeedBaseURL == "" {
		config.FeedBaseURL = DefaultFeedBaseURL
	}

	base := environment{
		db:       pool,
		logger:   logger.New("module", "http"),
		hub:      events.NewHub(logger.New("module", "events")),
		feed:     feed.NewGenerator(feed.DBStore{DB: pool}, config.FeedBaseURL, logger.New("module", "feed")),
		notifier: feed.NewWebhookNotifier(logger.New("module", "webhook")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Method("POST", "/sessions", EnvHandler(base, CreateSessionHandler))
		r.Method("DELETE", "/sessions/{id}", EnvHandler(base, AuthenticatedHandler(DeleteSessionHandler)))

		r.Method("GET", "/funnel_items", EnvHandler(base, AuthenticatedHandler(GetFunnelItemsHandler)))
		r.Method("POST", "/funnel_items", EnvHandler(base, AuthenticatedHandler(CreateFunnelItemHandler)))
		r.Method("GET", "/funnel_items/summary", EnvHandler(base, AuthenticatedHandler(GetFunnelSummaryHandler)))
		r.Method("PATCH", "/funnel_items/{id}", EnvHandler(base, AuthenticatedHandler(PatchFunnelItemHandler)))
		r.Method("GET", "/funnel/ws", EnvHandler(base, AuthenticatedHandler(FunnelWebSocketHandler)))

		r.Method("GET", "/leads", EnvHandler(base, AuthenticatedHandler(GetLeadsHandler)))
		r.Method("POST", "/leads", EnvHandler(base, AuthenticatedHandler(CreateLeadHandler)))

		r.Method("GET", "/properties", EnvHandler(base, AuthenticatedHandler(GetPropertiesHandler)))
		r.Method("POST", "/properties", EnvHandler(base, AuthenticatedHandler(CreatePropertyHandler)))

		r.Method("GET", "/feed_settings", EnvHandler(base, AuthenticatedHandler(GetFeedSettingsHandler)))
		r.Method("PATCH", "/feed_settings", EnvHandler(base, AuthenticatedHandler(UpdateFeedSettingsHandler)))
		r.Method("POST", "/feed_settings/token", EnvHandler(base, AuthenticatedHandler(RegenerateFeedTokenHandler)))
		r.Method("GET", "/feed_settings/stats", EnvHandler(base, AuthenticatedHandler(GetFeedStatsHandler)))

		if config.TestEndpoints {
			RegisterTestEndpoints(r, pool, logger.New("module", "test_endpoints"))
		}
	})

	r.Get("/feed/{token}", func(w http.ResponseWriter, req *http.Request) {
		base.feed.ServeFeed(w, req, chi.URLParam(req, "token"))
	})

	return r, nil
}

func getUserFromSession(req *http.Request, db data.Queryer, logger log.Logger) *data.User {
	token := req.Header.Get("X-Authentication")
	if token == "" {
		token = req.FormValue("session")
	}

	sessionID, err := hex.DecodeString(token)
	if err != nil || len(sessionID) == 0 {
		return nil
	}

	user, err := data.SelectUserBySessionID(req.Context(), db, sessionID)
	if err != nil {
		if !errors.Is(err, data.ErrNotFound) {
			logger.Error("Failed to select user by session", "error", err)
		}
		return nil
	}

	return user
}

func decodeRequest(w http.ResponseWriter, req *http.Request, dst any) bool {
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		w.WriteHeader(422)
		fmt.Fprintf(w, "Error decoding request: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func internalError(w http.ResponseWriter, env *environment, msg string, err error) {
	env.logger.Error(msg, "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// limitParam parses the limit query parameter. It falls back to def when missing and caps the result at max.
func limitParam(req *http.Request, def, max int) int {
	n, err := strconv.Atoi(req.FormValue("limit"))
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func newText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func CreateSessionHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if !decodeRequest(w, req, &credentials) {
		return
	}

	if credentials.Email == "" {
		w.WriteHeader(422)
		fmt.Fprintln(w, `Request must include the attribute "email"`)
		return
	}

	if credentials.Password == "" {
		w.WriteHeader(422)
		fmt.Fprintln(w, `Request must include the attribute "password"`)
		return
	}

	user, err := data.SelectUserByEmail(req.Context(), env.db, credentials.Email)
	if err != nil {
		if !errors.Is(err, data.ErrNotFound) {
			env.logger.Error("Failed to select user by email", "error", err)
		}
		w.WriteHeader(422)
		fmt.Fprintln(w, "Bad email or password")
		return
	}

	if !IsPassword(user, credentials.Password) {
		w.WriteHeader(422)
		fmt.Fprintln(w, "Bad email or password")
		return
	}

	sessionID, err := genSessionID()
	if err != nil {
		internalError(w, env, "Unable to create session because unable to read random bytes", err)
		return
	}

	err = data.InsertSession(req.Context(), env.db, &data.Session{ID: sessionID, UserID: user.ID})
	if err != nil {
		internalError(w, env, "Failed to insert session", err)
		return
	}

	var response struct {
		UserID    string `json:"userId"`
		Name      string `json:"name"`
		SessionID string `json:"sessionID"`
	}
	response.UserID = user.ID
	response.Name = user.Name.String
	response.SessionID = hex.EncodeToString(sessionID)

	writeJSON(w, http.StatusCreated, response)
}

func DeleteSessionHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	sessionID, err := hex.DecodeString(chi.URLParam(req, "id"))
	if err != nil {
		http.NotFound(w, req)
		return
	}

	err = data.DeleteSession(req.Context(), env.db, sessionID)
	if errors.Is(err, data.ErrNotFound) {
		http.NotFound(w, req)
		return
	}
	if err != nil {
		internalError(w, env, "Failed to delete session", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

