package toolexec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDescribeToolsIncludesHTTPAndBuiltin(t *testing.T) {
	e := newTestExecutor(t, Config{
		HTTP:    []HTTPTool{{Name: "search", Description: "search the web"}},
		Builtin: []string{"current_date"},
	}, nil)

	described := e.DescribeTools()
	names := map[string]ToolType{}
	for _, d := range described {
		names[d.Name] = d.Type
	}
	if names["search"] != ToolTypeHTTP {
		t.Errorf("expected search to be http, got %v", names["search"])
	}
	if names["current_date"] != ToolTypeBuiltin {
		t.Errorf("expected current_date to be builtin, got %v", names["current_date"])
	}
}

func TestResolveToolTypeIsCatalogAuthoritative(t *testing.T) {
	e := newTestExecutor(t, Config{
		HTTP: []HTTPTool{{Name: "weather"}},
	}, nil)

	// even if a caller mis-tags "weather" as builtin elsewhere, the
	// catalog here says it's http.
	typ, ok := e.ResolveToolType("weather")
	if !ok || typ != ToolTypeHTTP {
		t.Errorf("ResolveToolType(weather) = %v, %v; want http, true", typ, ok)
	}

	if _, ok := e.ResolveToolType("does-not-exist"); ok {
		t.Error("expected unknown tool to resolve false")
	}
}

func TestExecuteDispatchesByResolvedType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e := newTestExecutor(t, Config{
		HTTP: []HTTPTool{{Name: "ping", Method: "GET", Endpoint: srv.URL}},
	}, nil)

	result, err := e.Execute(context.Background(), CallContext{QueryID: "q1", AgentName: "w1"}, "ping", map[string]string{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	m := result.(map[string]any)
	if m["ok"] != true {
		t.Errorf("result = %v", m)
	}
}

func TestExecuteUnknownToolErrors(t *testing.T) {
	e := newTestExecutor(t, Config{}, nil)
	if _, err := e.Execute(context.Background(), CallContext{}, "nope", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}
