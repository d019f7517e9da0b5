package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientTranslate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		var req translateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.TargetLanguage != "en" {
			t.Fatalf("unexpected target language %q", req.TargetLanguage)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"translation": "hello"})
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "test", TargetLanguage: "en"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	got, err := client.Translate(context.Background(), "hola")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got != "hello" {
		t.Fatalf("unexpected translation %q", got)
	}
}

func TestClientTranslateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "test"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := client.Translate(context.Background(), "hola"); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestClientTranslateEmptyTextShortCircuits(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://unused.invalid", APIKey: "test"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	got, err := client.Translate(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got != "   " {
		t.Fatalf("expected input returned unchanged, got %q", got)
	}
}

func TestNewClientRejectsBadLanguage(t *testing.T) {
	if _, err := NewClient(Config{TargetLanguage: "???"}); err == nil {
		t.Fatal("expected error for invalid language tag")
	}
}

func TestPassthroughReturnsInput(t *testing.T) {
	got, err := Passthrough{}.Translate(context.Background(), "bonjour")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got != "bonjour" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestNewFromConfigWithoutCredentialsIsPassthrough(t *testing.T) {
	translator, err := NewFromConfig(nil)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if _, ok := translator.(Passthrough); !ok {
		t.Fatalf("expected passthrough translator, got %T", translator)
	}
}
