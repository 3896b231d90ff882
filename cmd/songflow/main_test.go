package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"songflow/internal/api"
	"songflow/internal/queue"
	"songflow/internal/testsupport"
)

func TestCLISessionLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env, "session", "create", "--json", "--mode", "oneshot", "--bpm", "90", "--key", "D major", "dreamy", "synthwave")
	var created api.SessionResponse
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode create output %q: %v", out, err)
	}
	id := created.Session.ID
	if created.Session.Prompt != "dreamy synthwave" {
		t.Fatalf("prompt = %q, want joined args", created.Session.Prompt)
	}
	if created.Session.Mode != string(queue.ModeOneshot) || created.Session.Params.BPM != 90 {
		t.Fatalf("unexpected session %+v", created.Session)
	}

	out = mustRunCLI(t, env, "session", "list")
	if !strings.Contains(out, id) || !strings.Contains(out, "dreamy synthwave") {
		t.Fatalf("list output missing session:\n%s", out)
	}

	out = mustRunCLI(t, env, "session", "prompt", id, "darker", "and", "slower")
	if !strings.Contains(out, "epoch 1") {
		t.Fatalf("expected epoch bump, got %q", out)
	}

	out = mustRunCLI(t, env, "session", "show", id)
	if !strings.Contains(out, "darker and slower") || !strings.Contains(out, "90 bpm, D major") {
		t.Fatalf("show output missing fields:\n%s", out)
	}

	out = mustRunCLI(t, env, "session", "close", id)
	if !strings.Contains(out, "closing") {
		t.Fatalf("expected closing, got %q", out)
	}
	out = mustRunCLI(t, env, "session", "reopen", id)
	if !strings.Contains(out, "active") {
		t.Fatalf("expected active, got %q", out)
	}
	out = mustRunCLI(t, env, "session", "close", "--now", id)
	if !strings.Contains(out, "closed") {
		t.Fatalf("expected closed, got %q", out)
	}

	if _, _, err := runCLI(t, []string{"session", "reopen", id}, env.configPath); err == nil {
		t.Fatal("expected reopen of closed session to fail")
	}

	out = mustRunCLI(t, env, "session", "list", "--status", "active")
	if strings.Contains(out, id) {
		t.Fatalf("closed session listed under active filter:\n%s", out)
	}
}

func TestCLISessionCreateRejectsBadMode(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"session", "create", "--mode", "forever", "anything"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("expected mode validation error, got %v", err)
	}
}

func TestCLISongCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	session := testsupport.NewSession(t, env.store, queue.ModeEndless)
	first := testsupport.AddSong(t, env.store, session.ID, 1, queue.StatusReady)
	testsupport.AddSong(t, env.store, session.ID, 2, queue.StatusPending)

	out := mustRunCLI(t, env, "song", "next", session.ID)
	if !strings.Contains(out, first.ID) {
		t.Fatalf("next should return the ready song, got %q", out)
	}

	out = mustRunCLI(t, env, "song", "played", first.ID)
	if !strings.Contains(out, "played") {
		t.Fatalf("expected played, got %q", out)
	}
	out = mustRunCLI(t, env, "song", "next", session.ID)
	if !strings.Contains(out, "Nothing ready") {
		t.Fatalf("expected empty next, got %q", out)
	}

	out = mustRunCLI(t, env, "song", "interrupt", session.ID, "a", "birthday", "song")
	if !strings.Contains(out, "position 1.5") {
		t.Fatalf("interrupt should land right after the played song, got %q", out)
	}

	out = mustRunCLI(t, env, "song", "replay", first.ID)
	if !strings.Contains(out, "ready") {
		t.Fatalf("expected ready after replay, got %q", out)
	}

	if _, _, err := runCLI(t, []string{"song", "retry", first.ID}, env.configPath); err == nil {
		t.Fatal("expected retry of a ready song to fail")
	}
}

func TestCLIRetryFailedSong(t *testing.T) {
	env := setupCLITestEnv(t)
	session := testsupport.NewSession(t, env.store, queue.ModeEndless)
	failed := testsupport.AddSong(t, env.store, session.ID, 1, queue.StatusError)

	out := mustRunCLI(t, env, "song", "retry", failed.ID)
	if !strings.Contains(out, string(queue.StatusRetryPending)) {
		t.Fatalf("expected retry_pending, got %q", out)
	}
}

func TestCLIQueueShow(t *testing.T) {
	env := setupCLITestEnv(t)
	session := testsupport.NewSession(t, env.store, queue.ModeEndless)
	ready := testsupport.AddSong(t, env.store, session.ID, 1, queue.StatusReady)
	testsupport.AddSong(t, env.store, session.ID, 2, queue.StatusError)

	out := mustRunCLI(t, env, "queue", "show", session.ID)
	if !strings.Contains(out, ready.Title) {
		t.Fatalf("queue output missing ready song title:\n%s", out)
	}
	if !strings.Contains(out, "ready=1 error=1") {
		t.Fatalf("queue output missing stats line:\n%s", out)
	}

	out = mustRunCLI(t, env, "queue", "show", "--json", "--status", "error", session.ID)
	var resp api.SongListResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode queue json: %v", err)
	}
	if len(resp.Songs) != 1 || resp.Songs[0].Status != string(queue.StatusError) {
		t.Fatalf("expected only the failed song, got %+v", resp.Songs)
	}

	if _, _, err := runCLI(t, []string{"queue", "show", "missing"}, env.configPath); err == nil {
		t.Fatal("expected unknown session to fail")
	}
}

func TestCLIQueueSettings(t *testing.T) {
	env := setupCLITestEnv(t)

	mustRunCLI(t, env, "queue", "settings", "set", queue.SettingImageModel, "flux-dev")
	out := mustRunCLI(t, env, "queue", "settings")
	if !strings.Contains(out, "image_model: flux-dev") {
		t.Fatalf("settings output missing model:\n%s", out)
	}
	if !strings.Contains(out, "image_provider: (config default)") {
		t.Fatalf("settings output missing default provider:\n%s", out)
	}

	if _, _, err := runCLI(t, []string{"queue", "settings", "set", "volume", "11"}, env.configPath); err == nil {
		t.Fatal("expected unknown setting to fail")
	}
}

func TestCLIStatusReportsDaemonLock(t *testing.T) {
	env := setupCLITestEnv(t)
	session := testsupport.NewSession(t, env.store, queue.ModeEndless)
	testsupport.AddSong(t, env.store, session.ID, 1, queue.StatusReady)

	report := runStatusJSON(t, env)
	if report.Daemon.Running {
		t.Fatal("daemon reported running without a lock holder")
	}
	if report.Songs.Total != 1 || report.Songs.Ready != 1 || report.Sessions != 1 {
		t.Fatalf("unexpected counts %+v sessions=%d", report.Songs, report.Sessions)
	}
	if report.SongStats[string(queue.StatusReady)] != 1 {
		t.Fatalf("song stats = %v", report.SongStats)
	}

	lock := flock.New(env.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: locked=%v err=%v", locked, err)
	}
	defer lock.Unlock()
	if err := os.WriteFile(env.cfg.PIDPath(), []byte(strconv.Itoa(4242)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}

	report = runStatusJSON(t, env)
	if !report.Daemon.Running || report.Daemon.PID != 4242 {
		t.Fatalf("expected running daemon with pid 4242, got %+v", report.Daemon)
	}
}

func runStatusJSON(t *testing.T, env *cliTestEnv) statusReport {
	t.Helper()
	out := mustRunCLI(t, env, "status", "--json", "--skip-checks")
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	return report
}

func TestCLIConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env, "config", "validate")
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("validate output %q", out)
	}

	target := filepath.Join(t.TempDir(), "nested", "songflow.toml")
	out = mustRunCLI(t, env, "config", "init", "--path", target)
	if !strings.Contains(out, target) {
		t.Fatalf("init output %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample not written: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.configPath); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	mustRunCLI(t, env, "config", "init", "--path", target, "--overwrite")
}

func TestCLIConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Paths.APIToken = "hunter2"
	writeTestConfig(t, env.configPath, env.cfg)

	out := mustRunCLI(t, env, "config", "show")
	if strings.Contains(out, "hunter2") {
		t.Fatalf("token leaked:\n%s", out)
	}
	if !strings.Contains(out, redacted) {
		t.Fatalf("expected redaction marker:\n%s", out)
	}

	out = mustRunCLI(t, env, "config", "show", "--reveal")
	if !strings.Contains(out, "hunter2") {
		t.Fatalf("--reveal should print the token:\n%s", out)
	}
}

func TestRedactSecretsLeavesSourceUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	for name, p := range cfg.LLM.Providers {
		p.APIKey = "secret-" + name
		cfg.LLM.Providers[name] = p
	}
	view := redactSecrets(*cfg)
	for name, p := range view.LLM.Providers {
		if p.APIKey != redacted {
			t.Fatalf("provider %s not redacted: %q", name, p.APIKey)
		}
		if cfg.LLM.Providers[name].APIKey != "secret-"+name {
			t.Fatalf("source provider %s mutated", name)
		}
	}
}

func TestCLILogsFiltersBySession(t *testing.T) {
	env := setupCLITestEnv(t)
	content := "level=INFO msg=\"stage completed\" session_id=s-1\n" +
		"level=INFO msg=\"stage completed\" session_id=s-2\n" +
		"level=WARN msg=\"cover failed\" session_id=s-1\n"
	if err := os.WriteFile(filepath.Join(env.cfg.Paths.LogDir, "songflow.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out := mustRunCLI(t, env, "logs", "--session", "s-1", "-n", "5")
	if strings.Contains(out, "s-2") {
		t.Fatalf("filter leaked other session:\n%s", out)
	}
	if strings.Count(out, "\n") != 2 || !strings.Contains(out, "cover failed") {
		t.Fatalf("unexpected logs output:\n%s", out)
	}
}

func TestCLIRequiresArguments(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"song", "retry"}, env.configPath); err == nil {
		t.Fatal("expected missing argument error")
	}
}
