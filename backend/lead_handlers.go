package backend

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/imoveplus/crm/backend/data"
	"github.com/imoveplus/crm/backend/funnel"
	"github.com/jackc/pgx/v5/pgtype"
)

type leadJSON struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Phone      *string    `json:"phone"`
	Email      *string    `json:"email"`
	Status     string     `json:"status"`
	Interest   *string    `json:"interest"`
	Notes      *string    `json:"notes"`
	PropertyID *int64     `json:"propertyId"`
	CreatedAt  *time.Time `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt"`
}

func newLeadJSON(l *data.Lead) leadJSON {
	lj := leadJSON{
		ID:        l.ID,
		Name:      l.Name.String,
		Phone:     textPtr(l.Phone),
		Email:     textPtr(l.Email),
		Status:    l.Status.String,
		Interest:  textPtr(l.Interest),
		Notes:     textPtr(l.Notes),
		CreatedAt: timePtr(l.CreatedAt),
		UpdatedAt: timePtr(l.UpdatedAt),
	}
	if l.PropertyID.Valid {
		id := l.PropertyID.Int64
		lj.PropertyID = &id
	}
	return lj
}

func GetLeadsHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	leads, err := data.SelectLeadsByUserID(req.Context(), env.db, env.user.ID, limitParam(req, 100, 1000))
	if err != nil {
		internalError(w, env, "Failed to select leads", err)
		return
	}

	response := make([]leadJSON, len(leads))
	for i := range leads {
		response[i] = newLeadJSON(&leads[i])
	}

	writeJSON(w, http.StatusOK, response)
}

func CreateLeadHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	var request struct {
		Name       string `json:"name"`
		Phone      string `json:"phone"`
		Email      string `json:"email"`
		Status     string `json:"status"`
		Interest   string `json:"interest"`
		Notes      string `json:"notes"`
		PropertyID *int64 `json:"propertyId"`
	}

	if !decodeRequest(w, req, &request) {
		return
	}

	if request.Name == "" {
		w.WriteHeader(422)
		fmt.Fprintln(w, `Request must include the attribute "name"`)
		return
	}

	status := funnel.StageNew
	if request.Status != "" {
		var err error
		status, err = funnel.ParseStage(request.Status)
		if err != nil {
			w.WriteHeader(422)
			fmt.Fprintln(w, err)
			return
		}
	}

	lead := &data.Lead{
		UserID:   env.user.ID,
		Name:     newText(request.Name),
		Phone:    newText(request.Phone),
		Email:    newText(request.Email),
		Status:   newText(string(status)),
		Interest: newText(request.Interest),
		Notes:    newText(request.Notes),
	}

	if request.PropertyID != nil {
		_, err := data.SelectPropertyByPK(req.Context(), env.db, env.user.ID, *request.PropertyID)
		if errors.Is(err, data.ErrNotFound) {
			w.WriteHeader(422)
			fmt.Fprintln(w, `"propertyId" does not match a property`)
			return
		}
		if err != nil {
			internalError(w, env, "Failed to select property", err)
			return
		}
		lead.PropertyID = pgtype.Int8{Int64: *request.PropertyID, Valid: true}
	}

	if err := data.InsertLead(req.Context(), env.db, lead); err != nil {
		internalError(w, env, "Failed to insert lead", err)
		return
	}

	writeJSON(w, http.StatusCreated, newLeadJSON(lead))
}
