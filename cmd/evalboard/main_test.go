package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCLI executes the command tree with args, capturing stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeTestConfig writes a minimal config file and returns its path.
func writeTestConfig(t *testing.T, apiBase string) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
api_bind = %q
`, filepath.Join(base, "data"), filepath.Join(base, "logs"), strings.TrimPrefix(apiBase, "http://"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
}

func TestConvertCommandWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "dataset.csv")
	csv := "conversationId,conversation,Agent,timestamp,source_intent\n" +
		"1,hello,bot,2026-01-01T00:00:00Z,greet\n"
	if err := os.WriteFile(input, []byte(csv), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cfgPath := writeTestConfig(t, "http://127.0.0.1:0")
	output := filepath.Join(dir, "out.jsonl")
	out, err := runCLI(t, "--config", cfgPath, "convert", input, "--output", output)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(out, "1 emitted") {
		t.Fatalf("unexpected output %q", out)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), `"conversationId":"1"`) {
		t.Fatalf("unexpected jsonl %q", data)
	}
}

func TestConvertCommandRejectsUnknownExtension(t *testing.T) {
	input := filepath.Join(t.TempDir(), "dataset.pdf")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cfgPath := writeTestConfig(t, "http://127.0.0.1:0")
	if _, err := runCLI(t, "--config", cfgPath, "convert", input); err == nil {
		t.Fatal("expected an error for unsupported extension")
	}
}

func TestSessionsCommandRendersDaemonResponse(t *testing.T) {
	daemon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"sessions":[{"id":"s1","name":"taxonomy","state":"active","runId":"run_1","runStatus":"running"}]}`)
	}))
	defer daemon.Close()

	cfgPath := writeTestConfig(t, daemon.URL)
	out, err := runCLI(t, "--config", cfgPath, "sessions")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(out, "s1") || !strings.Contains(out, "running") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStatusCommandJSONOutput(t *testing.T) {
	daemon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"running":true,"pid":42,"sessionDbPath":"/tmp/sessions.db","lockFilePath":"/tmp/lock","evaluationConfigured":true,"translateConfigured":false}`)
	}))
	defer daemon.Close()

	cfgPath := writeTestConfig(t, daemon.URL)
	out, err := runCLI(t, "--config", cfgPath, "status", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, `"pid": 42`) {
		t.Fatalf("unexpected output %q", out)
	}
}
