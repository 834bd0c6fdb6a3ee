package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/infrastructure/storage"
)

func finding(scanID int64, selector string) domain.Finding {
	return domain.Finding{
		GuidelineID: "1.1.1",
		Element:     domain.ElementRef{TagName: "IMG", Selector: selector},
		Context:     domain.Context{SmartContext: "ctx"},
		Verdict:     domain.Verdict{Status: domain.StatusFail, Message: "대체 텍스트 누락", Rules: []string{"Rule 1.1 (Missing Alt)"}},
		Page:        domain.PageContext{URL: "https://example.com/", PageTitle: "Example", ScanID: scanID},
	}
}

func TestMessageShapes(t *testing.T) {
	raw, err := json.Marshal(FinishedMessage(42, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"SCAN_FINISHED","scanId":42,"totalIssues":0}`, string(raw))

	raw, err = json.Marshal(ProgressMessage("1.3.1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"SCAN_PROGRESS","guidelineId":"1.3.1"}`, string(raw))

	raw, err = json.Marshal(LocateMessage("#main > img"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"locate-element","selector":"#main > img"}`, string(raw))

	msg, err := Decode([]byte(`{"type":"UPDATE_ABT_LIST","data":{"guideline_id":"2.4.2","elementInfo":{"tagName":"TITLE","selector":"title"},"context":{"smartContext":"","isFunctional":false},"result":{"status":"오류","message":"m","rules":[]},"pageInfo":{"url":"u","pageTitle":"p","timestamp":"2026-01-01T00:00:00Z","scanId":1}}}`))
	require.NoError(t, err)
	items := msg.Findings()
	require.Len(t, items, 1)
	assert.Equal(t, "2.4.2", items[0].GuidelineID)
	assert.Equal(t, domain.StatusFail, items[0].Verdict.Status)

	_, err = Decode([]byte(`{"selector":"x"}`))
	assert.Error(t, err)
}

func TestChannelPublisher(t *testing.T) {
	ctx := context.Background()
	pub := NewChannelPublisher(3)

	require.NoError(t, pub.Progress(ctx, "1.1.1"))
	require.NoError(t, pub.Batch(ctx, []domain.Finding{finding(1, "img")}))
	require.NoError(t, pub.Finished(ctx, 1, 1))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, pub.Progress(cancelled, "1.2.1"), context.Canceled)

	pub.Close()
	var types []string
	for m := range pub.Messages() {
		types = append(types, m.Type)
	}
	assert.Equal(t, []string{TypeProgress, TypeBatch, TypeFinished}, types)
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := Decode(raw)
	require.NoError(t, err)
	return msg
}

func TestRelayRoundTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	relay := NewRelay(store, nil)
	server := httptest.NewServer(relay.Handler())
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	board, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL(server), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer board.Close()

	located := make(chan string, 1)
	toggled := make(chan string, 1)
	engine, err := Dial(ctx, wsURL(server), Handlers{
		Locate: func(_ context.Context, selector string) Message {
			located <- selector
			found := true
			return Message{Found: &found, TagName: "IMG"}
		},
		Toggle: func(_ context.Context, view string, enabled bool) error {
			if !enabled {
				return errors.New("already off")
			}
			toggled <- view
			return nil
		},
	}, nil)
	require.NoError(t, err)
	defer engine.Close()
	go func() { _ = engine.Listen(ctx) }()

	require.Eventually(t, func() bool {
		return relay.Peers(RoleBoard) == 1 && relay.Peers(RoleEngine) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, engine.Progress(ctx, "1.1.1"))
	batch := []domain.Finding{finding(9, "img:nth-of-type(1)"), finding(9, "img:nth-of-type(1)")}
	require.NoError(t, engine.Batch(ctx, batch))
	require.NoError(t, engine.Finished(ctx, 9, 2))

	assert.Equal(t, TypeProgress, readMessage(t, board).Type)
	got := readMessage(t, board)
	assert.Equal(t, TypeBatch, got.Type)
	assert.Len(t, got.Items, 2)
	done := readMessage(t, board)
	assert.Equal(t, TypeFinished, done.Type)
	require.NotNil(t, done.TotalIssues)
	assert.Equal(t, 2, *done.TotalIssues)

	stored, err := store.Findings(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "redelivered finding is stored once")

	require.NoError(t, board.WriteJSON(LocateMessage("img:nth-of-type(1)")))
	select {
	case sel := <-located:
		assert.Equal(t, "img:nth-of-type(1)", sel)
	case <-time.After(5 * time.Second):
		t.Fatal("engine never received the locate command")
	}
	reply := readMessage(t, board)
	assert.Equal(t, TypeLocateResult, reply.Type)
	assert.Equal(t, "img:nth-of-type(1)", reply.Selector)
	require.NotNil(t, reply.Found)
	assert.True(t, *reply.Found)

	require.NoError(t, board.WriteJSON(ToggleViewMessage("alt-view", true)))
	select {
	case view := <-toggled:
		assert.Equal(t, "alt-view", view)
	case <-time.After(5 * time.Second):
		t.Fatal("engine never received the toggle command")
	}
	state := readMessage(t, board)
	assert.Equal(t, TypeViewState, state.Type)
	require.NotNil(t, state.Enabled)
	assert.True(t, *state.Enabled)
	assert.Empty(t, state.Error)

	require.NoError(t, board.WriteJSON(ToggleViewMessage("alt-view", false)))
	state = readMessage(t, board)
	assert.Equal(t, "already off", state.Error)
}

func TestRelayReviewAPI(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	_, err := store.IngestBatch(ctx, []domain.Finding{finding(5, "img:nth-of-type(1)"), finding(5, "img:nth-of-type(2)")})
	require.NoError(t, err)
	items, err := store.Findings(ctx, 5)
	require.NoError(t, err)

	server := httptest.NewServer(NewRelay(store, nil).Handler())
	defer server.Close()

	do := func(method, path, body string) *http.Response {
		t.Helper()
		req, err := http.NewRequestWithContext(ctx, method, server.URL+path, bytes.NewBufferString(body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := do(http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sessions []domain.SessionSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].Findings)

	resp = do(http.MethodPost, "/api/findings/"+items[0].ID+"/status", `{"status":"Pass","comment":"장식 이미지"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(http.MethodPost, "/api/findings/"+items[1].ID+"/status", `{"status":"부적절","comment":"QA 확인"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(http.MethodPost, "/api/findings/nope/status", `{"status":"Pass"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = do(http.MethodPost, "/api/findings/"+items[0].ID+"/status", `{"status":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(http.MethodGet, "/api/sessions/5/report", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	md, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(md), "- **🚫 부적절:** 1건")
	assert.Contains(t, string(md), "- **QA 전문가 소견:** QA 확인")
	assert.NotContains(t, string(md), "장식 이미지", "passed findings are left out of the report body")

	resp = do(http.MethodPost, "/api/sessions/5/scores", `{"guidelineId":"1.1.1","score":0.75}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(http.MethodGet, "/api/sessions/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(http.MethodDelete, "/api/pages?url=https://example.com/", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	left, err := store.Sessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}
