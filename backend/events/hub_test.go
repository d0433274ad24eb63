package events_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/imoveplus/crm/backend/events"
	"github.com/imoveplus/crm/backend/funnel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	log "gopkg.in/inconshreveable/log15.v2"
)

func newHubServer(t *testing.T) (*events.Hub, *httptest.Server) {
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	hub := events.NewHub(logger)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hub.Serve(w, req, req.URL.Query().Get("user"))
	}))
	t.Cleanup(server.Close)

	return hub, server
}

func dial(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?user=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *events.Hub, userID string, n int) {
	require.Eventually(t, func() bool { return hub.ClientCount(userID) == n }, 5*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastsToOwnerOnly(t *testing.T) {
	hub, server := newHubServer(t)

	owner := dial(t, server, "user-1")
	other := dial(t, server, "user-2")
	waitForClients(t, hub, "user-1", 1)
	waitForClients(t, hub, "user-2", 1)

	hub.Broadcast("user-1", &funnel.Item{ID: "item-1", LeadName: "Ana", Stage: funnel.StageProposal})

	owner.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg events.Message
	require.NoError(t, owner.ReadJSON(&msg))
	assert.Equal(t, events.ActionStageChanged, msg.Action)
	require.NotNil(t, msg.Item)
	assert.Equal(t, "item-1", msg.Item.ID)
	assert.Equal(t, funnel.StageProposal, msg.Item.Stage)

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestHubForgetsClosedClients(t *testing.T) {
	hub, server := newHubServer(t)

	conn := dial(t, server, "user-1")
	waitForClients(t, hub, "user-1", 1)

	conn.Close()
	waitForClients(t, hub, "user-1", 0)

	hub.Broadcast("user-1", &funnel.Item{ID: "item-1", Stage: funnel.StageNew})
	assert.Equal(t, 0, hub.ClientCount("user-1"))
}

func TestHubBroadcastDoesNotBlockOnStalledClient(t *testing.T) {
	hub, server := newHubServer(t)

	dial(t, server, "slow")
	other := dial(t, server, "user-2")
	waitForClients(t, hub, "slow", 1)
	waitForClients(t, hub, "user-2", 1)

	big := &funnel.Item{ID: "item-1", LeadName: strings.Repeat("x", 1<<20), Stage: funnel.StageNew}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			hub.Broadcast("slow", big)
		}
		hub.Broadcast("user-2", &funnel.Item{ID: "item-2", Stage: funnel.StageClosed})
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("broadcast blocked behind a client that is not reading")
	}

	other.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg events.Message
	require.NoError(t, other.ReadJSON(&msg))
	require.NotNil(t, msg.Item)
	assert.Equal(t, "item-2", msg.Item.ID)

	waitForClients(t, hub, "slow", 0)
}
