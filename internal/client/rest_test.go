package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/recmig/recmig/internal/types"
)

func TestRESTDescribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		switch r.URL.Path {
		case "/sobjects/Account/describe":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"name": "Account",
				"fields": []map[string]any{
					{"name": "Id", "type": "id", "createable": false},
					{"name": "OwnerId", "type": "reference", "createable": true, "referenceTo": []string{"User"}},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewREST(srv.URL, "tok")
	desc, err := c.Describe(context.Background(), "Account")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if desc.Name != "Account" || len(desc.Fields) != 2 {
		t.Errorf("desc = %+v", desc)
	}
	if desc.Fields[1].Type != types.FieldTypeReference || desc.Fields[1].ReferenceTo[0] != "User" {
		t.Errorf("reference field = %+v", desc.Fields[1])
	}

	_, err = c.Describe(context.Background(), "Nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing object: want ErrNotFound, got %v", err)
	}
}

func TestRESTQueryPaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/query":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"done":           false,
				"nextRecordsUrl": "/query/next",
				"records":        []map[string]any{{"Id": "1", "attributes": map[string]any{"type": "Account"}}},
			})
		case "/query/next":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"done":    true,
				"records": []map[string]any{{"Id": "2"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewREST(srv.URL, "tok")
	rows, err := c.Query(context.Background(), "SELECT Id FROM Account", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}
	if _, ok := rows[0]["attributes"]; ok {
		t.Error("attributes key should be stripped")
	}

	capped, err := c.Query(context.Background(), "SELECT Id FROM Account", 1)
	if err != nil {
		t.Fatalf("capped Query: %v", err)
	}
	if len(capped) != 1 {
		t.Errorf("maxFetchSize=1 returned %d rows", len(capped))
	}
}

func TestRESTCreateAndRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// First attempt fails transiently
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Records []map[string]any `json:"records"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		results := make([]map[string]any, len(req.Records))
		for i := range req.Records {
			results[i] = map[string]any{"success": true, "id": "new-" + string(rune('a'+i))}
		}
		_ = json.NewEncoder(w).Encode(results)
	}))
	defer srv.Close()

	c := NewREST(srv.URL, "tok")
	records := []types.Record{
		{"Name": types.String("one")},
		{"Name": types.String("two")},
	}
	results, err := c.Create(context.Background(), "Account", records)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if calls < 2 {
		t.Errorf("expected a retry after 503, calls = %d", calls)
	}
	if len(results) != 2 || !results[0].Success || results[1].ID != "new-b" {
		t.Errorf("results = %+v", results)
	}
}

func TestRESTClientErrorIsTerminal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewREST(srv.URL, "tok")
	_, err := c.Query(context.Background(), "SELECT bogus", 0)
	var terr *types.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("want TransportError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("4xx should not be retried, calls = %d", calls)
	}
}
