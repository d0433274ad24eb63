package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/imoveplus/crm/backend/data"
	"github.com/imoveplus/crm/backend/funnel"
	"github.com/jackc/pgx/v5/pgtype"
)

// newFunnelItem converts a row to its board representation. A missing lead join is shown as funnel.UnknownLeadName.
func newFunnelItem(fi *data.FunnelItem) funnel.Item {
	item := funnel.Item{
		ID:           fi.ID,
		LeadID:       fi.LeadID,
		LeadName:     fi.LeadName.String,
		PropertyName: fi.PropertyName.String,
		Stage:        funnel.Stage(fi.Stage),
		DaysInStage:  int(fi.DaysInStage),
		LastContact:  timePtr(fi.LastContact),
	}
	if !fi.LeadName.Valid || fi.LeadName.String == "" {
		item.LeadName = funnel.UnknownLeadName
	}
	if fi.PropertyID.Valid {
		item.PropertyID = strconv.FormatInt(fi.PropertyID.Int64, 10)
	}
	if fi.Value.Valid {
		v := fi.Value.Float64
		item.Value = &v
	}
	return item
}

func selectBoardItems(req *http.Request, env *environment) ([]funnel.Item, error) {
	rows, err := data.SelectFunnelItemsByUserID(req.Context(), env.db, env.user.ID)
	if err != nil {
		return nil, err
	}

	items := make([]funnel.Item, len(rows))
	for i := range rows {
		items[i] = newFunnelItem(&rows[i])
	}
	return items, nil
}

func GetFunnelItemsHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	items, err := selectBoardItems(req, env)
	if err != nil {
		internalError(w, env, "Failed to select funnel items", err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func GetFunnelSummaryHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	items, err := selectBoardItems(req, env)
	if err != nil {
		internalError(w, env, "Failed to select funnel items", err)
		return
	}

	writeJSON(w, http.StatusOK, funnel.Summarize(items))
}

func CreateFunnelItemHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	var request struct {
		LeadID     string   `json:"leadId"`
		PropertyID string   `json:"propertyId"`
		Stage      string   `json:"stage"`
		Value      *float64 `json:"value"`
	}

	if !decodeRequest(w, req, &request) {
		return
	}

	if request.LeadID == "" {
		w.WriteHeader(422)
		fmt.Fprintln(w, `Request must include the attribute "leadId"`)
		return
	}

	stage := funnel.StageNew
	if request.Stage != "" {
		var err error
		stage, err = funnel.ParseStage(request.Stage)
		if err != nil {
			w.WriteHeader(422)
			fmt.Fprintln(w, err)
			return
		}
	}

	row := &data.FunnelItem{UserID: env.user.ID, Stage: string(stage)}
	if request.Value != nil {
		row.Value = pgtype.Float8{Float64: *request.Value, Valid: true}
	}

	if _, err := uuid.Parse(request.LeadID); err != nil {
		w.WriteHeader(422)
		fmt.Fprintln(w, `"leadId" does not match a lead`)
		return
	}
	lead, err := data.SelectLeadByPK(req.Context(), env.db, env.user.ID, request.LeadID)
	if errors.Is(err, data.ErrNotFound) {
		w.WriteHeader(422)
		fmt.Fprintln(w, `"leadId" does not match a lead`)
		return
	}
	if err != nil {
		internalError(w, env, "Failed to select lead", err)
		return
	}
	row.LeadID = lead.ID

	if request.PropertyID != "" {
		propertyID, err := strconv.ParseInt(request.PropertyID, 10, 64)
		if err != nil {
			w.WriteHeader(422)
			fmt.Fprintln(w, `"propertyId" does not match a property`)
			return
		}
		_, err = data.SelectPropertyByPK(req.Context(), env.db, env.user.ID, propertyID)
		if errors.Is(err, data.ErrNotFound) {
			w.WriteHeader(422)
			fmt.Fprintln(w, `"propertyId" does not match a property`)
			return
		}
		if err != nil {
			internalError(w, env, "Failed to select property", err)
			return
		}
		row.PropertyID = pgtype.Int8{Int64: propertyID, Valid: true}
	}

	if err := data.InsertFunnelItem(req.Context(), env.db, row); err != nil {
		internalError(w, env, "Failed to insert funnel item", err)
		return
	}

	created, err := data.SelectFunnelItemByPK(req.Context(), env.db, env.user.ID, row.ID)
	if err != nil {
		internalError(w, env, "Failed to select funnel item", err)
		return
	}

	writeJSON(w, http.StatusCreated, newFunnelItem(created))
}

// PatchFunnelItemHandler moves an item to another stage. days_in_stage is reset and last_contact set to now.
// Connected boards of the user are notified of the change.
func PatchFunnelItemHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	id := chi.URLParam(req, "id")
	if _, err := uuid.Parse(id); err != nil {
		http.NotFound(w, req)
		return
	}

	var request struct {
		Stage string `json:"stage"`
	}

	if !decodeRequest(w, req, &request) {
		return
	}

	stage, err := funnel.ParseStage(request.Stage)
	if err != nil {
		w.WriteHeader(422)
		fmt.Fprintln(w, err)
		return
	}

	row, err := data.UpdateFunnelItemStage(req.Context(), env.db, env.user.ID, id, string(stage))
	if errors.Is(err, data.ErrNotFound) {
		http.NotFound(w, req)
		return
	}
	if err != nil {
		internalError(w, env, "Failed to update funnel item stage", err)
		return
	}

	item := newFunnelItem(row)
	env.logger.Info("Funnel item moved", "user_id", env.user.ID, "item_id", item.ID, "stage", item.Stage)
	env.hub.Broadcast(env.user.ID, &item)

	writeJSON(w, http.StatusOK, item)
}

func FunnelWebSocketHandler(w http.ResponseWriter, req *http.Request, env *environment) {
	env.hub.Serve(w, req, env.user.ID)
}
