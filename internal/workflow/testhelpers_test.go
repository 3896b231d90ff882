package workflow

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"songflow/internal/config"
	"songflow/internal/library"
	"songflow/internal/logging"
	"songflow/internal/queue"
	"songflow/internal/services/ace"
	"songflow/internal/services/imagegen"
	"songflow/internal/songmeta"
	"songflow/internal/testsupport"
)

type fakeText struct {
	mu       sync.Mutex
	calls    int
	requests []songmeta.Request
	fn       func(ctx context.Context, req songmeta.Request) (queue.SongMetadata, error)
}

func (f *fakeText) Generate(ctx context.Context, req songmeta.Request) (queue.SongMetadata, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.requests = append(f.requests, req)
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return testsupport.SampleMetadata(fmt.Sprintf("Song %d", n)), nil
}

func (f *fakeText) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeImage struct {
	mu    sync.Mutex
	calls int
	reqs  []imagegen.Request
	err   error
}

func (f *fakeImage) Generate(_ context.Context, req imagegen.Request) (imagegen.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return imagegen.Image{}, f.err
	}
	return imagegen.Image{
		Data:     []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'},
		MIMEType: "image/png",
		Provider: req.Provider,
		Model:    req.Model,
	}, nil
}

func (f *fakeImage) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAudio struct {
	mu        sync.Mutex
	submits   int
	polls     int
	state     ace.State
	pollErr   error
	submitErr error
	submitFn  func(ctx context.Context) error
}

func (f *fakeAudio) Submit(ctx context.Context, p ace.Params) (string, error) {
	f.mu.Lock()
	f.submits++
	n := f.submits
	fn := f.submitFn
	err := f.submitErr
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx); err != nil {
			return "", err
		}
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("task-%d", n), nil
}

func (f *fakeAudio) Poll(_ context.Context, taskID string) (ace.PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollErr != nil {
		return ace.PollResult{}, f.pollErr
	}
	state := f.state
	if state == "" {
		state = ace.StateDone
	}
	res := ace.PollResult{State: state}
	switch state {
	case ace.StateDone:
		res.AudioRef = "/v1/audio?path=" + taskID + ".mp3"
	case ace.StateFailed:
		res.Error = "out of memory"
	}
	return res, nil
}

func (f *fakeAudio) Fetch(context.Context, string) (io.ReadCloser, string, error) {
	return io.NopCloser(strings.NewReader("ID3fake-audio")), "audio/mpeg", nil
}

func (f *fakeAudio) Format() string { return "mp3" }

func (f *fakeAudio) counts() (submits, polls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits, f.polls
}

func (f *fakeAudio) setState(s ace.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

type harness struct {
	cfg   *config.Config
	store *queue.Store
	mgr   *Manager
	text  *fakeText
	image *fakeImage
	audio *fakeAudio
	lib   *library.Library
}

func newHarness(t *testing.T, mutate func(*config.Config), opts ...ManagerOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.PublicURL = "http://songflow.test"
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		cfg:   cfg,
		store: store,
		text:  &fakeText{},
		image: &fakeImage{},
		audio: &fakeAudio{},
		lib:   library.New(cfg, logging.NewNop()),
	}
	h.mgr = NewManager(cfg, store, logging.NewNop(), opts...)
	h.mgr.ConfigureProviders(ProviderSet{Text: h.text, Image: h.image, Audio: h.audio, Library: h.lib})
	t.Cleanup(func() {
		h.mgr.state.discardAll()
		h.mgr.WaitIdle()
	})
	return h
}

// tick runs one tick and waits for every processor it spawned.
func (h *harness) tick(t *testing.T) {
	t.Helper()
	h.mgr.Tick(context.Background())
	h.mgr.WaitIdle()
}

func (h *harness) songs(t *testing.T, sessionID string) []*queue.Song {
	t.Helper()
	songs, err := h.store.ListSongs(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("ListSongs: %v", err)
	}
	return songs
}

func (h *harness) song(t *testing.T, id string) *queue.Song {
	t.Helper()
	song, err := h.store.GetSong(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSong: %v", err)
	}
	return song
}

func (h *harness) session(t *testing.T, id string) *queue.Session {
	t.Helper()
	sess, err := h.store.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	return sess
}

func countStatus(songs []*queue.Song, statuses ...queue.Status) int {
	n := 0
	for _, s := range songs {
		for _, st := range statuses {
			if s.Status == st {
				n++
			}
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
