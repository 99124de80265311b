package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T) (*httptest.Server, *Service, *fakeStore) {
	t.Helper()
	svc, fake := newTestService(t)
	server, err := NewHTTPServer(svc, "*", svc.log)
	if err != nil {
		t.Fatalf("NewHTTPServer: %v", err)
	}
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, svc, fake
}

type gqlEnvelope struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message    string                 `json:"message"`
		Extensions map[string]interface{} `json:"extensions"`
	} `json:"errors"`
}

func postGraphQL(t *testing.T, url, token, query string, variables map[string]interface{}) gqlEnvelope {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, url+"/graphql", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var envelope gqlEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatal(err)
	}
	return envelope
}

func gqlErrorCode(t *testing.T, envelope gqlEnvelope) string {
	t.Helper()
	if len(envelope.Errors) == 0 {
		t.Fatal("expected a GraphQL error")
	}
	code, _ := envelope.Errors[0].Extensions["code"].(string)
	return code
}

func TestHealthEndpoints(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID header")
	}

	resp, err = http.Get(ts.URL + "/api/ready")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready status = %d, want 200", resp.StatusCode)
	}

	var payload struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Checks["database"] != "ok" {
		t.Fatalf("database check = %q, want ok", payload.Checks["database"])
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/graphql", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS origin header")
	}
}

func TestGraphQLAuthRequired(t *testing.T) {
	ts, _, _ := newTestServer(t)

	envelope := postGraphQL(t, ts.URL, "", `{ me { id } }`, nil)
	if code := gqlErrorCode(t, envelope); code != "UNAUTHORIZED" {
		t.Fatalf("code = %s, want UNAUTHORIZED", code)
	}
}

func TestGraphQLAuthenticatedQuery(t *testing.T) {
	ts, svc, fake := newTestServer(t)
	user := addUser(fake, "alice", "user")

	session, err := svc.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issueSession: %v", err)
	}

	envelope := postGraphQL(t, ts.URL, session.Token, `{ me { id email fullName } }`, nil)
	if len(envelope.Errors) > 0 {
		t.Fatalf("unexpected errors: %+v", envelope.Errors)
	}

	var me struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(envelope.Data["me"], &me); err != nil {
		t.Fatal(err)
	}
	if me.ID != user.ID || me.Email != user.Email {
		t.Fatalf("me = %+v, want %s/%s", me, user.ID, user.Email)
	}
}

func TestGraphQLForbiddenCode(t *testing.T) {
	ts, svc, fake := newTestServer(t)
	user := addUser(fake, "alice", "user")

	session, err := svc.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issueSession: %v", err)
	}

	// users is an admin-only query.
	envelope := postGraphQL(t, ts.URL, session.Token, `{ users { id } }`, nil)
	if code := gqlErrorCode(t, envelope); code != "FORBIDDEN" {
		t.Fatalf("code = %s, want FORBIDDEN", code)
	}
}

func TestGraphQLTeamLifecycle(t *testing.T) {
	ts, svc, fake := newTestServer(t)
	user := addUser(fake, "alice", "user")

	session, err := svc.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issueSession: %v", err)
	}

	envelope := postGraphQL(t, ts.URL, session.Token,
		`mutation($name: String!) { teamCreate(name: $name) { id name members { userId role } } }`,
		map[string]interface{}{"name": "Platform"})
	if len(envelope.Errors) > 0 {
		t.Fatalf("teamCreate errors: %+v", envelope.Errors)
	}

	var team struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Members []struct {
			UserID string `json:"userId"`
			Role   string `json:"role"`
		} `json:"members"`
	}
	if err := json.Unmarshal(envelope.Data["teamCreate"], &team); err != nil {
		t.Fatal(err)
	}
	if team.Name != "Platform" {
		t.Fatalf("name = %s, want Platform", team.Name)
	}
	if len(team.Members) != 1 || team.Members[0].Role != "owner" || team.Members[0].UserID != user.ID {
		t.Fatalf("members = %+v, want creator as owner", team.Members)
	}
}

func TestGraphQLBadRequests(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/graphql", "application/json", bytes.NewReader([]byte("{")))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/graphql")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
