package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dkoval/mailtriage/pkg/models"
)

func testMessage() *models.Message {
	return &models.Message{
		ID:      "m1",
		Subject: "Quarterly report",
		From:    "boss@example.com",
		Body:    "Please review by Friday.",
	}
}

func newTestGateway(handler http.HandlerFunc) (*Gateway, *httptest.Server) {
	srv := httptest.NewServer(handler)
	gw := NewGateway(Config{BaseURL: srv.URL, APIKey: "test-key"})
	return gw, srv
}

func TestClassify_FullJudgment(t *testing.T) {
	var gotTask string
	gw, srv := newTestGateway(func(w http.ResponseWriter, r *http.Request) {
		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotTask = req.Task
		json.NewEncoder(w).Encode(map[string]any{
			"category":     "work",
			"sub_category": "project",
			"priority":     9,
			"summary":      "review request",
		})
	})
	defer srv.Close()

	j, err := gw.Classify(context.Background(), testMessage(), TaskPriorityScore)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if gotTask != TaskPriorityScore {
		t.Errorf("backend saw task %q, want %q", gotTask, TaskPriorityScore)
	}
	if j.Category != "work" || j.SubCategory != "project" || j.Priority != 9 {
		t.Errorf("unexpected judgment %+v", j)
	}
}

func TestClassify_MissingPriorityDefaults(t *testing.T) {
	gw, srv := newTestGateway(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"category": "social"})
	})
	defer srv.Close()

	j, err := gw.Classify(context.Background(), testMessage(), TaskSmartCategory)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if j.Priority != DefaultPriority {
		t.Errorf("priority = %d, want default %d", j.Priority, DefaultPriority)
	}
}

func TestClassify_PriorityClamped(t *testing.T) {
	tests := []struct {
		raw  int
		want int
	}{
		{0, 1},
		{-3, 1},
		{11, 10},
		{10, 10},
		{1, 1},
	}
	for _, tc := range tests {
		gw, srv := newTestGateway(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"priority": tc.raw})
		})
		j, err := gw.Classify(context.Background(), testMessage(), TaskPriorityScore)
		srv.Close()
		if err != nil {
			t.Fatalf("Classify(priority=%d): %v", tc.raw, err)
		}
		if j.Priority != tc.want {
			t.Errorf("priority %d normalized to %d, want %d", tc.raw, j.Priority, tc.want)
		}
	}
}

func TestClassify_QuotaExceeded(t *testing.T) {
	gw, srv := newTestGateway(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer srv.Close()

	_, err := gw.Classify(context.Background(), testMessage(), TaskGenericFilter)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("got %v, want ErrQuotaExceeded", err)
	}
}

func TestClassify_ServerError(t *testing.T) {
	gw, srv := newTestGateway(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	_, err := gw.Classify(context.Background(), testMessage(), TaskGenericFilter)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestClassify_MalformedBody(t *testing.T) {
	gw, srv := newTestGateway(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})
	defer srv.Close()

	_, err := gw.Classify(context.Background(), testMessage(), TaskGenericFilter)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestClassify_BackendDown(t *testing.T) {
	gw, srv := newTestGateway(func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // connection refused from now on

	_, err := gw.Classify(context.Background(), testMessage(), TaskGenericFilter)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"}, // cutting inside é backs up to the boundary
		{"日本語", 4, "日"},  // 3-byte runes
		{"a日本", 5, "a日"},
	}
	for _, tc := range cases {
		got := truncate(tc.in, tc.n)
		if got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8: %q", tc.in, tc.n, got)
		}
	}
}

func TestTruncateLongBodyStaysValidUTF8(t *testing.T) {
	body := strings.Repeat("請", maxBodyBytes/3+2)
	got := truncate(body, maxBodyBytes)
	if len(got) > maxBodyBytes {
		t.Fatalf("truncated body is %d bytes, want at most %d", len(got), maxBodyBytes)
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncated body is not valid UTF-8")
	}
}
