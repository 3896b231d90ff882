package daemon

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"songflow/internal/api"
	"songflow/internal/config"
	"songflow/internal/library"
	"songflow/internal/logging"
	"songflow/internal/queue"
	"songflow/internal/testsupport"
	"songflow/internal/workflow"
)

type apiHarness struct {
	t      *testing.T
	cfg    *config.Config
	store  *queue.Store
	server *httptest.Server
	token  string
}

func newAPIHarness(t *testing.T, token string) *apiHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	lib := library.New(cfg, logger)
	d, err := New(cfg, store, logger, workflow.NewManager(cfg, store, logger), lib)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := &apiServer{logger: logger, daemon: d, sessions: d.Sessions()}
	server := httptest.NewServer(srv.routes(token))
	t.Cleanup(server.Close)
	return &apiHarness{t: t, cfg: cfg, store: store, server: server, token: token}
}

func (h *apiHarness) do(method, path string, body any, withToken bool) (*http.Response, []byte) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		h.t.Fatalf("NewRequest: %v", err)
	}
	if withToken && h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decodeJSON[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return out
}

func TestAPISessionLifecycle(t *testing.T) {
	h := newAPIHarness(t, "")

	resp, body := h.do(http.MethodPost, "/api/sessions", api.CreateSessionRequest{Prompt: "late night jazz"}, false)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", resp.StatusCode, body)
	}
	created := decodeJSON[api.SessionResponse](t, body).Session
	if created.Mode != "endless" || created.Status != "active" {
		t.Fatalf("unexpected session: %+v", created)
	}

	resp, body = h.do(http.MethodGet, "/api/sessions", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	if list := decodeJSON[api.SessionListResponse](t, body); len(list.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %+v", list)
	}

	resp, body = h.do(http.MethodPost, "/api/sessions/"+created.ID+"/prompt", api.PromptRequest{Prompt: "now bossa nova"}, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prompt status = %d body=%s", resp.StatusCode, body)
	}
	if got := decodeJSON[api.SessionResponse](t, body).Session; got.Prompt != "now bossa nova" {
		t.Fatalf("prompt not updated: %+v", got)
	}

	resp, body = h.do(http.MethodPost, "/api/sessions/"+created.ID+"/interrupt", api.PromptRequest{Prompt: "happy birthday"}, false)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("interrupt status = %d body=%s", resp.StatusCode, body)
	}
	if song := decodeJSON[api.SongResponse](t, body).Song; !song.IsInterrupt {
		t.Fatalf("expected interrupt song: %+v", song)
	}

	resp, _ = h.do(http.MethodGet, "/api/sessions/"+created.ID+"/next", nil, false)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("next status = %d, want 204", resp.StatusCode)
	}

	resp, body = h.do(http.MethodPost, "/api/sessions/"+created.ID+"/close", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close status = %d body=%s", resp.StatusCode, body)
	}
	if got := decodeJSON[api.SessionResponse](t, body).Session; got.Status != "closing" {
		t.Fatalf("status = %s, want closing", got.Status)
	}

	resp, _ = h.do(http.MethodGet, "/api/sessions/missing", nil, false)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing session status = %d, want 404", resp.StatusCode)
	}
}

func TestAPISongActions(t *testing.T) {
	h := newAPIHarness(t, "")
	session := testsupport.NewSession(t, h.store, queue.ModeEndless)
	failed := testsupport.AddSong(t, h.store, session.ID, 1, queue.StatusError)
	ready := testsupport.AddSong(t, h.store, session.ID, 2, queue.StatusReady)

	resp, body := h.do(http.MethodGet, "/api/sessions/"+session.ID+"/next", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("next status = %d", resp.StatusCode)
	}
	if got := decodeJSON[api.SongResponse](t, body).Song; got.ID != ready.ID {
		t.Fatalf("next = %s, want %s", got.ID, ready.ID)
	}

	resp, body = h.do(http.MethodPost, "/api/songs/"+failed.ID+"/retry", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("retry status = %d body=%s", resp.StatusCode, body)
	}
	if got := decodeJSON[api.SongResponse](t, body).Song; got.Status != "retry_pending" {
		t.Fatalf("status = %s, want retry_pending", got.Status)
	}

	resp, _ = h.do(http.MethodPost, "/api/songs/"+ready.ID+"/retry", nil, false)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("retry of ready song status = %d, want 409", resp.StatusCode)
	}

	resp, body = h.do(http.MethodPost, "/api/songs/"+ready.ID+"/played", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("played status = %d body=%s", resp.StatusCode, body)
	}

	resp, body = h.do(http.MethodGet, "/api/sessions/"+session.ID+"/songs?status=played", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("songs status = %d", resp.StatusCode)
	}
	if songs := decodeJSON[api.SongListResponse](t, body).Songs; len(songs) != 1 || songs[0].ID != ready.ID {
		t.Fatalf("unexpected played songs: %+v", songs)
	}
}

func TestAPIAuthGuardsMutations(t *testing.T) {
	h := newAPIHarness(t, "s3cret")

	resp, _ := h.do(http.MethodPost, "/api/sessions", api.CreateSessionRequest{Prompt: "ambient"}, false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create status = %d, want 401", resp.StatusCode)
	}
	resp, _ = h.do(http.MethodGet, "/api/sessions", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unauthenticated list status = %d, want 200", resp.StatusCode)
	}
	resp, body := h.do(http.MethodPost, "/api/sessions", api.CreateSessionRequest{Prompt: "ambient"}, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("authenticated create status = %d body=%s", resp.StatusCode, body)
	}
}

func TestAPISettings(t *testing.T) {
	h := newAPIHarness(t, "")

	resp, _ := h.do(http.MethodPut, "/api/settings/image_model", api.SettingRequest{Value: "flux-schnell"}, false)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("put status = %d, want 204", resp.StatusCode)
	}
	resp, _ = h.do(http.MethodPut, "/api/settings/volume", api.SettingRequest{Value: "11"}, false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown key status = %d, want 400", resp.StatusCode)
	}
	resp, body := h.do(http.MethodGet, "/api/settings", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if got := decodeJSON[queue.Settings](t, body); got.ImageModel != "flux-schnell" {
		t.Fatalf("ImageModel = %q", got.ImageModel)
	}
}

func TestAPIRejectsMalformedBodies(t *testing.T) {
	h := newAPIHarness(t, "")
	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/api/sessions", bytes.NewReader([]byte(`{"prompt":"x","bogus":1}`)))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAPIStatusAndMetrics(t *testing.T) {
	h := newAPIHarness(t, "")

	resp, body := h.do(http.MethodGet, "/api/status", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	status := decodeJSON[api.DaemonStatus](t, body)
	if status.Running {
		t.Fatal("daemon was never started")
	}
	if status.DatabasePath != h.cfg.DatabasePath() {
		t.Fatalf("DatabasePath = %q, want %q", status.DatabasePath, h.cfg.DatabasePath())
	}
	if _, ok := status.Workflow.SongStats["ready"]; !ok {
		t.Fatalf("song stats not zero-filled: %v", status.Workflow.SongStats)
	}

	resp, body = h.do(http.MethodGet, "/metrics", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte("go_goroutines")) {
		t.Fatal("metrics output missing default collectors")
	}
}

func TestMediaServesLibraryFiles(t *testing.T) {
	h := newAPIHarness(t, "")
	dir := filepath.Join(h.cfg.Paths.LibraryDir, "session-1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "song.mp3"), []byte("ID3 audio"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	resp, body := h.do(http.MethodGet, "/media/session-1/song.mp3", nil, false)
	if resp.StatusCode != http.StatusOK || string(body) != "ID3 audio" {
		t.Fatalf("media status = %d body=%q", resp.StatusCode, body)
	}
	resp, _ = h.do(http.MethodGet, "/media/session-1/missing.mp3", nil, false)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing media status = %d, want 404", resp.StatusCode)
	}
	resp, _ = h.do(http.MethodGet, "/media/session-1", nil, false)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("directory media status = %d, want 404", resp.StatusCode)
	}
}
