package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ad/go-onboarding-journey/internal/models"
)

func TestGetProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/onboarding/student/demo student" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Errorf("missing X-Request-Id header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"steps": [
				{"id": 1, "title": "Document Upload", "status": "completed", "xp": 50, "minutes": 10},
				{"id": 2, "title": "Fee Payment", "status": "unlocked", "xp": 100, "minutes": 5}
			],
			"progress": {"percentage": 50, "completed": 1, "total": 2, "total_xp": 50,
				"current_step": {"id": 2, "title": "Fee Payment", "status": "unlocked", "xp": 100}}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/api/")
	resp, err := c.GetProgress(context.Background(), "demo student")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if len(resp.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(resp.Steps))
	}
	if resp.Steps[1].Status != models.StatusUnlocked || resp.Steps[1].XP != 100 {
		t.Errorf("unexpected step %+v", resp.Steps[1])
	}
	if resp.Progress.Percentage != 50 || resp.Progress.CurrentStep == nil || resp.Progress.CurrentStep.ID != 2 {
		t.Errorf("unexpected progress %+v", resp.Progress)
	}
}

func TestCompleteStep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/onboarding/step/complete" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var req CompleteStepRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.StepID != 4 || req.StudentID != "s-1" {
			t.Errorf("unexpected body %+v", req)
		}
		w.Write([]byte(`{"success": true, "message": "Step 4 completed!", "xp_awarded": 80}`))
	}))
	defer srv.Close()

	xp, err := New(srv.URL).SubmitCompletion(context.Background(), "s-1", 4)
	if err != nil {
		t.Fatalf("SubmitCompletion: %v", err)
	}
	if xp != 80 {
		t.Errorf("xp = %d, want 80", xp)
	}
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantDetail string
	}{
		{"conflict with detail", http.StatusConflict, `{"success": false, "detail": "step 5 is not unlocked"}`, 409, "step 5 is not unlocked"},
		{"server error without body", http.StatusInternalServerError, ``, 500, ""},
		{"success false on 200", http.StatusOK, `{"success": false, "detail": "nope"}`, 200, "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL).CompleteStep(context.Background(), "", 5)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.wantStatus || apiErr.Detail != tt.wantDetail {
				t.Errorf("got %+v", apiErr)
			}
		})
	}
}

func TestMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": tru`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).GetProgress(context.Background(), "x"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL).FetchSteps(ctx, "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
}
