// Package testutil provides common test utilities and helpers for companion
// tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumewell/companion/internal/api"
	"github.com/lumewell/companion/internal/dialogue"
	"github.com/lumewell/companion/internal/genai"
	"github.com/lumewell/companion/internal/proactive"
	"github.com/lumewell/companion/internal/profile"
	"github.com/lumewell/companion/internal/relationship"
	"github.com/lumewell/companion/internal/store"
	"github.com/lumewell/companion/internal/templates"
)

// MockCompleter is a scriptable model client for tests.
type MockCompleter struct {
	// Reply is returned when Err is nil.
	Reply string
	// Err is returned verbatim when set.
	Err error
	// Delay simulates model latency, honoring context cancellation.
	Delay time.Duration
	// Calls counts invocations.
	Calls int
}

// Complete implements dialogue.Completer.
func (m *MockCompleter) Complete(ctx context.Context, messages []genai.Message) (string, error) {
	m.Calls++
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", &genai.TimeoutError{Err: ctx.Err()}
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

// NewTestServer creates an API server over in-memory dependencies and a
// scriptable model client. The clock is pinned so time-of-day policy is
// deterministic (14:00, afternoon).
func NewTestServer(t *testing.T, completer dialogue.Completer) (*api.Server, store.Store) {
	t.Helper()

	now := func() time.Time {
		return time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)
	}

	st := store.NewInMemoryStore()
	profiles, err := profile.NewSource()
	if err != nil {
		t.Fatalf("failed to create profile source: %v", err)
	}

	rel := relationship.NewManager(st, profiles, relationship.WithClock(now))
	orch := dialogue.NewOrchestrator(completer, profiles,
		dialogue.WithClock(now),
		dialogue.WithResolverOptions(
			templates.WithRand(rand.New(rand.NewPCG(1, 2))),
			templates.WithClock(now),
		),
	)

	sessions := proactive.NewSessions(proactive.WithSessionClock(now))
	srv := api.NewServer(st, profiles, rel, orch,
		api.WithServerClock(now),
		api.WithEvaluator(proactive.NewEvaluator(proactive.WithClock(now))),
		api.WithSessions(sessions),
		api.WithActivityChecker(proactive.NewActivityChecker(st, sessions, proactive.WithActivityClock(now))),
	)
	return srv, st
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it
// doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response envelope and validates the
// status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with an optional JSON body.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// MustMarshalJSON marshals an object to JSON and fails the test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails the test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
