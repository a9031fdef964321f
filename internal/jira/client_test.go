package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tract-sync/internal/common"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(common.JiraConfig{
		URL:      server.URL,
		Username: "sync-bot",
		Token:    "token",
	})
	return client, server
}

func TestGetIssue(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/PROJ-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
			t.Errorf("missing basic auth header")
		}
		json.NewEncoder(w).Encode(Issue{
			Key: "PROJ-1",
			Fields: Fields{
				Summary: "Fix login redirect",
				Status:  Named{Name: "Open"},
			},
		})
	}))
	defer server.Close()

	issue, err := client.GetIssue(context.Background(), "PROJ-1")
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if issue.Key != "PROJ-1" || issue.Fields.Summary != "Fix login redirect" {
		t.Errorf("issue = %+v", issue)
	}
}

func TestCreateIssueReturnsKey(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload CreatePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		if payload.Fields.Project.Key != "PROJ" {
			t.Errorf("project = %q", payload.Fields.Project.Key)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "10001", "key": "PROJ-42"})
	}))
	defer server.Close()

	key, err := client.CreateIssue(context.Background(), CreatePayload{
		Fields: CreateFields{
			Project:   ProjectRef{Key: "PROJ"},
			Summary:   "New ticket",
			IssueType: Named{Name: "Task"},
		},
	})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if key != "PROJ-42" {
		t.Errorf("key = %q, want PROJ-42", key)
	}
}

func TestClientErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
		label  string
	}{
		{"bad request", http.StatusBadRequest, common.IsRemoteRejected, "RemoteRejected"},
		{"not found", http.StatusNotFound, common.IsRemoteRejected, "RemoteRejected"},
		{"server error", http.StatusInternalServerError, common.IsRemoteUnavailable, "RemoteUnavailable"},
		{"bad gateway", http.StatusBadGateway, common.IsRemoteUnavailable, "RemoteUnavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"errorMessages":["nope"]}`))
			}))
			defer server.Close()

			_, err := client.GetIssue(context.Background(), "PROJ-1")
			if err == nil {
				t.Fatalf("expected error")
			}
			if !tt.check(err) {
				t.Errorf("err = %v, want %s", err, tt.label)
			}
		})
	}
}

func TestClientRejectionCarriesPayload(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":{"summary":"Field 'summary' is required"}}`))
	}))
	defer server.Close()

	err := client.UpdateIssue(context.Background(), "PROJ-1", map[string]any{"summary": ""})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "Field 'summary' is required") {
		t.Errorf("remote payload not surfaced: %v", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := client.GetIssue(context.Background(), "PROJ-1")
	if !common.IsRemoteUnavailable(err) {
		t.Errorf("err = %v, want RemoteUnavailable", err)
	}
}

func TestSearchIssuesPaginates(t *testing.T) {
	pages := [][]Issue{
		{{Key: "PROJ-1"}, {Key: "PROJ-2"}},
		{{Key: "PROJ-3"}},
	}
	call := 0
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := pages[call]
		call++
		json.NewEncoder(w).Encode(map[string]any{
			"startAt":    (call - 1) * 2,
			"maxResults": 2,
			"total":      3,
			"issues":     page,
		})
	}))
	defer server.Close()

	issues, err := client.SearchIssues(context.Background(), "project = PROJ", 0)
	if err != nil {
		t.Fatalf("SearchIssues: %v", err)
	}
	if len(issues) != 3 {
		t.Fatalf("issues = %d, want 3", len(issues))
	}
	if issues[2].Key != "PROJ-3" {
		t.Errorf("last issue = %q", issues[2].Key)
	}
}
