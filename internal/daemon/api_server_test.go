package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"evalboard/internal/api"
	"evalboard/internal/session"
	"evalboard/internal/testsupport"
)

func newTestDaemon(t *testing.T, upstream string) (*Daemon, *httptest.Server) {
	t.Helper()
	opts := []testsupport.ConfigOption{testsupport.WithRunPollInterval(1)}
	if upstream != "" {
		opts = append(opts, testsupport.WithEvaluationService(upstream))
	}
	cfg := testsupport.NewConfig(t, opts...)

	store, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	d, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	srv, err := newAPIServer(cfg, d, nil)
	if err != nil {
		t.Fatalf("newAPIServer returned error: %v", err)
	}
	apiTS := httptest.NewServer(srv.routes())
	t.Cleanup(apiTS.Close)
	return d, apiTS
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestConvertEndpointReturnsJSONLAttachment(t *testing.T) {
	_, ts := newTestDaemon(t, "")

	csv := "conversationId,conversation,Agent,timestamp,source_intent\n" +
		"1,hello,bot,2026-01-01T00:00:00Z,greet\n" +
		",orphan,bot,2026-01-01T00:00:00Z,greet\n"
	body, contentType := multipartUpload(t, "dataset.csv", csv, nil)

	resp, err := http.Post(ts.URL+"/api/convert", contentType, body)
	if err != nil {
		t.Fatalf("post convert: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "dataset.jsonl") {
		t.Fatalf("unexpected disposition %q", got)
	}
	if got := resp.Header.Get("X-Rows-Skipped"); got != "1" {
		t.Fatalf("expected one skipped row, got %q", got)
	}

	raw, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 emitted line, got %d", len(lines))
	}
	var record struct {
		Item struct {
			ConversationID string `json:"conversationId"`
		} `json:"item"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if record.Item.ConversationID != "1" {
		t.Fatalf("unexpected conversation id %q", record.Item.ConversationID)
	}
}

func TestConvertEndpointRejectsUnsupportedExtension(t *testing.T) {
	_, ts := newTestDaemon(t, "")

	body, contentType := multipartUpload(t, "dataset.pdf", "not a spreadsheet", nil)
	resp, err := http.Post(ts.URL+"/api/convert", contentType, body)
	if err != nil {
		t.Fatalf("post convert: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if !strings.Contains(envelope.Message, ".pdf") {
		t.Fatalf("expected extension in message, got %q", envelope.Message)
	}
}

func TestStatusEndpointReportsStorePath(t *testing.T) {
	d, ts := newTestDaemon(t, "")

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()

	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.SessionDBPath != d.store.Path() {
		t.Fatalf("unexpected store path %q", status.SessionDBPath)
	}
	if status.EvaluationConfigured {
		t.Fatal("evaluation should be unconfigured in this test")
	}
}

func TestRunsEndpointStartsRunAndOpensSession(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/files":
			fmt.Fprint(w, `{"id":"file_1","filename":"dataset.jsonl"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/evals":
			fmt.Fprint(w, `{"id":"ev_1","name":"taxonomy","testing_criteria":[{"id":"tc_1","name":"accuracy"}]}`)
		case r.Method == http.MethodPost && r.URL.Path == "/evals/ev_1/runs":
			fmt.Fprint(w, `{"id":"run_1","eval_id":"ev_1","status":"queued"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/evals/ev_1/runs/run_1":
			fmt.Fprint(w, `{"id":"run_1","eval_id":"ev_1","status":"succeeded","report_url":"https://reports.example/run_1"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	d, ts := newTestDaemon(t, upstream.URL)

	body, contentType := multipartUpload(t, "dataset.jsonl", `{"item":{"conversationId":"1"}}`, map[string]string{
		"name": "taxonomy",
	})
	resp, err := http.Post(ts.URL+"/api/runs", contentType, body)
	if err != nil {
		t.Fatalf("post runs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, raw)
	}
	var started api.RunStartResponse
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if started.Run.ID != "run_1" || started.Session.EvalID != "ev_1" {
		t.Fatalf("unexpected response %+v", started)
	}
	if started.Session.TestingCriteriaID != "tc_1" {
		t.Fatalf("unexpected criteria id %q", started.Session.TestingCriteriaID)
	}

	// The background watch polls the fake upstream until the run succeeds.
	d.Watcher().Wait()
	sess, err := d.Session(context.Background(), started.Session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.RunStatus != "succeeded" || sess.ReportURL != "https://reports.example/run_1" {
		t.Fatalf("watch did not persist final state: %+v", sess)
	}
}

func TestRunsEndpointWithoutEvaluationConfig(t *testing.T) {
	_, ts := newTestDaemon(t, "")

	body, contentType := multipartUpload(t, "dataset.jsonl", `{"item":{}}`, nil)
	resp, err := http.Post(ts.URL+"/api/runs", contentType, body)
	if err != nil {
		t.Fatalf("post runs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestAnnotationsEndpointPassesCursor(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/runs/run_1/annotations" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("cursor"); got != "c1" {
			t.Errorf("unexpected cursor %q", got)
		}
		fmt.Fprint(w, `{"data":[{"id":"a1","conversationId":"7","conversation":"[{'role': 'user', 'content': 'hi'}]","annotationAttributes":{"topic":"billing"}}],"next_cursor":"c2","has_more":true}`)
	}))
	defer upstream.Close()

	_, ts := newTestDaemon(t, upstream.URL)

	resp, err := http.Get(ts.URL + "/api/annotations?run_id=run_1&cursor=c1")
	if err != nil {
		t.Fatalf("get annotations: %v", err)
	}
	defer resp.Body.Close()

	var page api.AnnotationListResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode annotations: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].Attributes["topic"] != "billing" {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Data[0].Conversation != "**user**: hi" {
		t.Fatalf("conversation not rendered: %q", page.Data[0].Conversation)
	}
	if page.NextCursor != "c2" || !page.HasMore {
		t.Fatalf("unexpected continuation %+v", page)
	}
}

func TestSessionDetailNotFound(t *testing.T) {
	_, ts := newTestDaemon(t, "")

	resp, err := http.Get(ts.URL + "/api/sessions/missing")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
