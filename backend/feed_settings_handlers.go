package backend

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/imoveplus/crm/backend/data"
	"github.com/imoveplus/crm/backend/feed"
	"github.com/jackc/pgx/v5/pgtype"
)

type feedSettingsJSON struct {
	ID                   string     `json:"id"`
	IsEnabled            bool       `json:"isEnabled"`
	FeedToken            string     `json:"feedToken"`
	FeedPath             string     `json:"feedPath"`
	IncludeAllProperties bool       `json:"includeAllProperties"`
	IncludeAvailableOnly bool       `json:"includeAvailableOnly"`
	IncludeLeads         bool       `json:"includeLeads"`
	WebhookURL           *string    `json:"webhookUrl"`
	AccessCount          int32      `json:"accessCount"`
	LastAccessedAt       *time.Time `json:"lastAccessedAt"`
	CreatedAt            *time.Time `json:"createdAt"`
	UpdatedAt            *time.Time `json:"updatedAt"`
}

func newFeedSettingsJSON(fs *data.FeedSettings) feedSettingsJSON {
	return feedSettingsJSON{
		ID:                   fs.ID,
		IsEnabled:            fs.IsEnabled.Bool,
		FeedToken:            fs.FeedToken.String,
		FeedPath:             "/feed/" + fs.FeedToken.String + ".xml",
		IncludeAllProperties: fs.IncludeAllProperties.Bool,
		IncludeAvailableOnly: fs.IncludeAvailableOnly.Bool,
		IncludeLeads:         fs.IncludeLeads.Bool,
		WebhookURL:           textPtr(fs.WebhookURL),
		AccessCount:          fs.AccessCount.Int32,
		LastAccessedAt:       timePtr(fs.LastAccessedAt),
		CreatedAt:            timePtr(fs.CreatedAt),
		UpdatedAt:            timePtr(fs.UpdatedAt),
	}
}

func selectOwnFeedSettings(w http.ResponseWriter, req *http.Request, env *environment) (*data.FeedSettings, bool) {
	fs, err := data.SelectFeedSettingsByUserID(req.Context(), env.db, env.user.ID)
	if errors.Is(err, data.ErrNotFound) {
		http.NotFound(w, req)
		return nil, false
	}
	if err != nil {
		internalError(w, env, "Failed to select feed settings", err)
		return nil, false
	}
	return fs, true
}

func GetFeedSettingsHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	fs, ok := selectOwnFeedSettings(w, req, env)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, newFeedSettingsJSON(fs))
}

// UpdateFeedSettingsHandler applies the attributes present in the request. An empty webhookUrl clears the webhook.
func UpdateFeedSettingsHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	var request struct {
		IsEnabled            *bool   `json:"isEnabled"`
		IncludeAllProperties *bool   `json:"includeAllProperties"`
		IncludeAvailableOnly *bool   `json:"includeAvailableOnly"`
		IncludeLeads         *bool   `json:"includeLeads"`
		WebhookURL           *string `json:"webhookUrl"`
	}

	if !decodeRequest(w, req, &request) {
		return
	}

	update := &data.FeedSettings{
		IsEnabled:            newBool(request.IsEnabled),
		IncludeAllProperties: newBool(request.IncludeAllProperties),
		IncludeAvailableOnly: newBool(request.IncludeAvailableOnly),
		IncludeLeads:         newBool(request.IncludeLeads),
	}

	clearWebhook := false
	if request.WebhookURL != nil {
		if *request.WebhookURL == "" {
			clearWebhook = true
		} else {
			u, err := url.Parse(*request.WebhookURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				w.WriteHeader(422)
				fmt.Fprintln(w, `"webhookUrl" must be an http or https URL`)
				return
			}
			update.WebhookURL = pgtype.Text{String: *request.WebhookURL, Valid: true}
		}
	}

	err := data.UpdateFeedSettings(req.Context(), env.db, env.user.ID, update)
	if err == nil && clearWebhook {
		err = data.ClearFeedWebhook(req.Context(), env.db, env.user.ID)
	}
	if errors.Is(err, data.ErrNotFound) {
		http.NotFound(w, req)
		return
	}
	if err != nil {
		internalError(w, env, "Failed to update feed settings", err)
		return
	}

	fs, ok := selectOwnFeedSettings(w, req, env)
	if !ok {
		return
	}

	if fs.WebhookURL.Valid {
		env.notifier.NotifyAsync(fs.WebhookURL.String, feed.EventSettingsUpdated)
	}

	writeJSON(w, http.StatusOK, newFeedSettingsJSON(fs))
}

// RegenerateFeedTokenHandler replaces the feed token. The previous token stops resolving immediately.
func RegenerateFeedTokenHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	update := &data.FeedSettings{FeedToken: pgtype.Text{String: genFeedToken(), Valid: true}}

	err := data.UpdateFeedSettings(req.Context(), env.db, env.user.ID, update)
	if errors.Is(err, data.ErrNotFound) {
		http.NotFound(w, req)
		return
	}
	if err != nil {
		internalError(w, env, "Failed to regenerate feed token", err)
		return
	}

	fs, ok := selectOwnFeedSettings(w, req, env)
	if !ok {
		return
	}

	env.logger.Info("Feed token regenerated", "user_id", env.user.ID)
	if fs.WebhookURL.Valid {
		env.notifier.NotifyAsync(fs.WebhookURL.String, feed.EventTokenRegenerated)
	}

	writeJSON(w, http.StatusOK, newFeedSettingsJSON(fs))
}

func GetFeedStatsHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	fs, ok := selectOwnFeedSettings(w, req, env)
	if !ok {
		return
	}

	count, err := data.CountPropertiesByUserID(req.Context(), env.db, env.user.ID)
	if err != nil {
		internalError(w, env, "Failed to count properties", err)
		return
	}

	var response struct {
		TotalAccess     int32      `json:"totalAccess"`
		LastAccessed    *time.Time `json:"lastAccessed"`
		TotalProperties int64      `json:"totalProperties"`
	}
	response.TotalAccess = fs.AccessCount.Int32
	response.LastAccessed = timePtr(fs.LastAccessedAt)
	response.TotalProperties = count

	writeJSON(w, http.StatusOK, response)
}

func newBool(b *bool) pgtype.Bool {
	if b == nil {
		return pgtype.Bool{}
	}
	return pgtype.Bool{Bool: *b, Valid: true}
}
