package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/imoveplus/crm/test/testdata"
	"github.com/imoveplus/crm/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestFunnelItemsEndpoint(t *testing.T) {
	ctx := context.Background()
	db := testutil.AcquireDB(t, ctx, TestDBManager)
	pool := db.PoolConnect(t, ctx)

	r := chi.NewRouter()
	RegisterTestEndpoints(r, pool, discardLogger())

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/test/funnel_items", strings.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	user := testdata.CreateUser(t, pool, ctx, nil, nil)
	w := post(fmt.Sprintf(`{"user_id": %q}`, idString(user["id"])))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var row map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &row))
	assert.NotEmpty(t, row["lead_id"])
	assert.Equal(t, "New", row["stage"])

	w = post(fmt.Sprintf(`{"user_id": %q}`, uuid.NewString()))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "failed to create lead")
}
