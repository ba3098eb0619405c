package adminhttp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/swarmchat/core/chatmodel"
)

type fakeOrchestrator struct {
	allowedAIs   map[string][]string
	cleared      []string
	topicChanges []changeTopicRequest
	woke, slept  int
}

func (f *fakeOrchestrator) AddMessage(chatmodel.Message) {}
func (f *fakeOrchestrator) ChangeTopic(newTopic, by, roomID string) {
	f.topicChanges = append(f.topicChanges, changeTopicRequest{RoomID: roomID, Topic: newTopic, By: by})
}
func (f *fakeOrchestrator) SetRoomAllowedAIs(roomID string, aiIDs []string) {
	if f.allowedAIs == nil {
		f.allowedAIs = make(map[string][]string)
	}
	f.allowedAIs[roomID] = aiIDs
}
func (f *fakeOrchestrator) ClearRoomAllowedAIs(roomID string) { f.cleared = append(f.cleared, roomID) }
func (f *fakeOrchestrator) Wake()                             { f.woke++ }
func (f *fakeOrchestrator) Sleep()                             { f.slept++ }

func newTestServer() (*Server, *fakeOrchestrator) {
	orch := &fakeOrchestrator{}
	return New(orch, prometheus.NewRegistry()), orch
}

func TestSetAllowedAIs(t *testing.T) {
	s, orch := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/rooms/room-1/allowed-ais",
		strings.NewReader(`{"ai_ids":["ai-1","ai-2"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"ai-1", "ai-2"}, orch.allowedAIs["room-1"])
}

func TestClearAllowedAIs(t *testing.T) {
	s, orch := newTestServer()
	req := httptest.NewRequest(http.MethodDelete, "/rooms/room-1/allowed-ais", nil)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"room-1"}, orch.cleared)
}

func TestChangeTopicRequiresTopic(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/topic", strings.NewReader(`{"room_id":"room-1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangeTopic(t *testing.T) {
	s, orch := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/topic",
		strings.NewReader(`{"room_id":"room-1","topic":"space travel","by":"admin"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, orch.topicChanges, 1)
	assert.Equal(t, "space travel", orch.topicChanges[0].Topic)
}

func TestWakeAndSleep(t *testing.T) {
	s, orch := newTestServer()

	wakeReq := httptest.NewRequest(http.MethodPost, "/wake", nil)
	s.echo.ServeHTTP(httptest.NewRecorder(), wakeReq)
	assert.Equal(t, 1, orch.woke)

	sleepReq := httptest.NewRequest(http.MethodPost, "/sleep", nil)
	s.echo.ServeHTTP(httptest.NewRecorder(), sleepReq)
	assert.Equal(t, 1, orch.slept)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
