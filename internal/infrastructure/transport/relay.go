package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/infrastructure/storage"
	"AccessibilityScanner/internal/ports"
	"AccessibilityScanner/internal/report"
)

// Peer roles. Engines produce findings and answer locate commands; boards consume findings
// and issue locate commands.
const (
	RoleEngine = "engine"
	RoleBoard  = "board"
)

const (
	peerBuffer = 256
	writeWait  = 10 * time.Second
)

// Relay is the websocket hub between audit engines and review boards. Findings arriving from
// engines are ingested into the store before they are fanned out.
type Relay struct {
	store    ports.FindingStore
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[*peer]struct{}
}

type peer struct {
	role string
	conn *websocket.Conn
	send chan []byte
}

// NewRelay builds a hub backed by store. A nil store relays without persisting.
func NewRelay(store ports.FindingStore, logger *slog.Logger) *Relay {
	return &Relay{
		store:  store,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Engines connect from arbitrary page origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: map[*peer]struct{}{},
	}
}

// Handler exposes the websocket endpoint and the review API.
func (r *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", r.serveWS)
	mux.HandleFunc("GET /api/sessions", r.listSessions)
	mux.HandleFunc("GET /api/sessions/{scanId}", r.sessionFindings)
	mux.HandleFunc("DELETE /api/sessions/{scanId}", r.clearSession)
	mux.HandleFunc("GET /api/sessions/{scanId}/report", r.sessionReport)
	mux.HandleFunc("POST /api/sessions/{scanId}/scores", r.setScore)
	mux.HandleFunc("POST /api/findings/{id}/status", r.updateStatus)
	mux.HandleFunc("DELETE /api/findings", r.clearAll)
	mux.HandleFunc("DELETE /api/pages", r.removePage)
	mux.HandleFunc("POST /api/locate", r.locate)
	return mux
}

// Peers returns the number of connected peers with the role.
func (r *Relay) Peers(role string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for p := range r.peers {
		if p.role == role {
			n++
		}
	}
	return n
}

func (r *Relay) serveWS(w http.ResponseWriter, req *http.Request) {
	role := req.URL.Query().Get("role")
	if role != RoleEngine {
		role = RoleBoard
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.warn("websocket upgrade failed", "error", err)
		return
	}

	p := &peer{role: role, conn: conn, send: make(chan []byte, peerBuffer)}
	r.mu.Lock()
	r.peers[p] = struct{}{}
	r.mu.Unlock()
	r.info("peer connected", "role", role, "remote", req.RemoteAddr)

	go p.writeLoop()
	defer func() {
		r.mu.Lock()
		delete(r.peers, p)
		r.mu.Unlock()
		close(p.send)
		r.info("peer disconnected", "role", role)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.warn("peer read failed", "role", role, "error", err)
			}
			return
		}
		msg, err := Decode(raw)
		if err != nil {
			r.warn("dropping malformed frame", "role", role, "error", err)
			continue
		}
		r.dispatch(req, p, msg, raw)
	}
}

func (r *Relay) dispatch(req *http.Request, from *peer, msg Message, raw []byte) {
	if from.role == RoleBoard {
		if msg.Type != TypeLocate && msg.Type != TypeToggleView {
			r.warn("ignoring board message", "type", msg.Type)
			return
		}
		r.broadcast(RoleEngine, raw)
		return
	}

	if findings := msg.Findings(); len(findings) > 0 && r.store != nil {
		accepted, err := r.store.IngestBatch(req.Context(), findings)
		if err != nil {
			r.warn("ingest failed", "error", err)
		} else {
			r.debug("findings ingested", "received", len(findings), "accepted", accepted)
		}
	}
	r.broadcast(RoleBoard, raw)
}

// broadcast never blocks; a peer whose buffer is full misses the frame.
func (r *Relay) broadcast(role string, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for p := range r.peers {
		if p.role != role {
			continue
		}
		select {
		case p.send <- raw:
		default:
			r.warn("peer too slow, frame dropped", "role", p.role)
		}
	}
}

func (p *peer) writeLoop() {
	defer p.conn.Close()
	for raw := range p.send {
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (r *Relay) listSessions(w http.ResponseWriter, req *http.Request) {
	if !r.requireStore(w) {
		return
	}
	sessions, err := r.store.Sessions(req.Context())
	if err != nil {
		r.fail(w, err)
		return
	}
	if sessions == nil {
		sessions = []domain.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (r *Relay) sessionFindings(w http.ResponseWriter, req *http.Request) {
	scanID, ok := r.scanID(w, req)
	if !ok || !r.requireStore(w) {
		return
	}
	findings, err := r.store.Findings(req.Context(), scanID)
	if err != nil {
		r.fail(w, err)
		return
	}
	if findings == nil {
		findings = []domain.Finding{}
	}
	writeJSON(w, http.StatusOK, findings)
}

func (r *Relay) sessionReport(w http.ResponseWriter, req *http.Request) {
	scanID, ok := r.scanID(w, req)
	if !ok || !r.requireStore(w) {
		return
	}
	findings, err := r.store.Findings(req.Context(), scanID)
	if err != nil {
		r.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(report.Markdown(findings, time.Now())))
}

func (r *Relay) clearSession(w http.ResponseWriter, req *http.Request) {
	scanID, ok := r.scanID(w, req)
	if !ok || !r.requireStore(w) {
		return
	}
	if err := r.store.ClearSession(req.Context(), scanID); err != nil {
		r.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scoreRequest struct {
	GuidelineID string  `json:"guidelineId"`
	Score       float64 `json:"score"`
}

func (r *Relay) setScore(w http.ResponseWriter, req *http.Request) {
	scanID, ok := r.scanID(w, req)
	if !ok || !r.requireStore(w) {
		return
	}
	var body scoreRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.GuidelineID == "" {
		http.Error(w, "expected {guidelineId, score}", http.StatusBadRequest)
		return
	}
	if err := r.store.SetGuidelineScore(req.Context(), scanID, body.GuidelineID, body.Score); err != nil {
		r.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

func (r *Relay) updateStatus(w http.ResponseWriter, req *http.Request) {
	if !r.requireStore(w) {
		return
	}
	var body statusRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "expected {status, comment}", http.StatusBadRequest)
		return
	}
	status, ok := domain.ParseStatus(body.Status)
	if !ok || !status.Valid() {
		http.Error(w, "unknown status "+strconv.Quote(body.Status), http.StatusBadRequest)
		return
	}
	if err := r.store.UpdateStatus(req.Context(), req.PathValue("id"), status, body.Comment); err != nil {
		r.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Relay) clearAll(w http.ResponseWriter, req *http.Request) {
	if !r.requireStore(w) {
		return
	}
	if err := r.store.Clear(req.Context()); err != nil {
		r.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Relay) removePage(w http.ResponseWriter, req *http.Request) {
	url := req.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}
	if !r.requireStore(w) {
		return
	}
	if err := r.store.RemoveSession(req.Context(), url); err != nil {
		r.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Relay) locate(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Selector string `json:"selector"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "expected {selector}", http.StatusBadRequest)
		return
	}
	raw, err := json.Marshal(LocateMessage(body.Selector))
	if err != nil {
		r.fail(w, err)
		return
	}
	r.broadcast(RoleEngine, raw)
	w.WriteHeader(http.StatusAccepted)
}

func (r *Relay) scanID(w http.ResponseWriter, req *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(req.PathValue("scanId"), 10, 64)
	if err != nil {
		http.Error(w, "invalid scan id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (r *Relay) requireStore(w http.ResponseWriter) bool {
	if r.store == nil {
		http.Error(w, "no finding store configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (r *Relay) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		r.warn("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (r *Relay) info(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Relay) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

func (r *Relay) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
