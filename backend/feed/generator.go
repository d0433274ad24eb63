// Package feed exports a user's listings, and optionally leads, as an XML document for listing aggregators.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/imoveplus/crm/backend/data"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/sync/errgroup"
	log "gopkg.in/inconshreveable/log15.v2"
)

// MaxRecords bounds the properties and the leads included in a single document.
const MaxRecords = 100

var ErrDisabled = errors.New("feed disabled")

type Store interface {
	SelectFeedSettingsByToken(ctx context.Context, token string) (*data.FeedSettings, error)
	SelectPropertiesByUserID(ctx context.Context, userID string, limit int) ([]data.Property, error)
	SelectLeadsByUserID(ctx context.Context, userID string, limit int) ([]data.Lead, error)
	RecordFeedAccess(ctx context.Context, access *data.FeedAccess) error
}

// DBStore is a Store on the application database.
type DBStore struct {
	DB data.Queryer
}

func (s DBStore) SelectFeedSettingsByToken(ctx context.Context, token string) (*data.FeedSettings, error) {
	return data.SelectFeedSettingsByToken(ctx, s.DB, token)
}

func (s DBStore) SelectPropertiesByUserID(ctx context.Context, userID string, limit int) ([]data.Property, error) {
	return data.SelectPropertiesByUserID(ctx, s.DB, userID, limit)
}

func (s DBStore) SelectLeadsByUserID(ctx context.Context, userID string, limit int) ([]data.Lead, error) {
	return data.SelectLeadsByUserID(ctx, s.DB, userID, limit)
}

func (s DBStore) RecordFeedAccess(ctx context.Context, access *data.FeedAccess) error {
	return data.RecordFeedAccess(ctx, s.DB, access)
}

type Generator struct {
	Store   Store
	BaseURL string
	Logger  log.Logger
	Now     func() time.Time
}

func NewGenerator(store Store, baseURL string, logger log.Logger) *Generator {
	return &Generator{
		Store:   store,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Logger:  logger,
		Now:     time.Now,
	}
}

// NormalizeToken strips a trailing file extension such as ".xml".
func NormalizeToken(token string) string {
	return strings.TrimSuffix(token, path.Ext(token))
}

// Generate builds the document for token. It returns ErrDisabled when the token has no settings or the feed is
// switched off. Failures fetching properties or leads leave the corresponding section empty.
func (g *Generator) Generate(ctx context.Context, token string) (*Document, *data.FeedSettings, error) {
	token = NormalizeToken(token)

	settings, err := g.Store.SelectFeedSettingsByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, data.ErrNotFound) {
			g.Logger.Error("Failed to select feed settings", "error", err)
		}
		return nil, nil, ErrDisabled
	}
	if !settings.IsEnabled.Bool {
		return nil, nil, ErrDisabled
	}

	var properties []data.Property
	var leads []data.Lead

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		properties, err = g.Store.SelectPropertiesByUserID(egCtx, settings.UserID, MaxRecords)
		if err != nil {
			g.Logger.Error("Failed to select feed properties", "user_id", settings.UserID, "error", err)
			properties = nil
		}
		return nil
	})
	if settings.IncludeLeads.Bool {
		eg.Go(func() error {
			var err error
			leads, err = g.Store.SelectLeadsByUserID(egCtx, settings.UserID, MaxRecords)
			if err != nil {
				g.Logger.Error("Failed to select feed leads", "user_id", settings.UserID, "error", err)
				leads = nil
			}
			return nil
		})
	}
	eg.Wait()

	now := g.Now()
	doc := &Document{
		GeneratedAt: now.UTC().Format(TimeFormat),
		UserID:      settings.UserID,
	}

	for i := range properties {
		p := &properties[i]
		if settings.IncludeAvailableOnly.Bool && p.Status.String != StatusAvailable {
			continue
		}
		doc.Properties.Properties = append(doc.Properties.Properties, NewProperty(p, g.BaseURL, now))
	}

	for i := range leads {
		doc.Leads.Leads = append(doc.Leads.Leads, NewLead(&leads[i], now))
	}

	return doc, settings, nil
}

// writeError writes msg as the exact response body.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, msg)
}

// ServeFeed writes the feed for token. Unknown or disabled tokens get 403 and any failure assembling the document
// gets a bare 500.
func (g *Generator) ServeFeed(w http.ResponseWriter, req *http.Request, token string) {
	defer func() {
		if r := recover(); r != nil {
			g.Logger.Error("Feed generation panicked", "panic", r)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
		}
	}()

	doc, settings, err := g.Generate(req.Context(), token)
	if errors.Is(err, ErrDisabled) {
		writeError(w, http.StatusForbidden, "Feed disabled")
		return
	}
	if err != nil {
		g.Logger.Error("Feed generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	body, err := doc.Encode()
	if err != nil {
		g.Logger.Error("Feed encoding failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	access := &data.FeedAccess{
		UserID:    settings.UserID,
		FeedToken: settings.FeedToken.String,
		IPAddress: newText(remoteIP(req)),
		UserAgent: newText(req.UserAgent()),
	}
	if err := g.Store.RecordFeedAccess(req.Context(), access); err != nil {
		g.Logger.Warn("Failed to record feed access", "user_id", settings.UserID, "error", err)
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("X-Robots-Tag", "noindex")
	w.Write(body)
}

func newText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func remoteIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
