package lmclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/haasonsaas/nexus/internal/toolexec"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeExecutor is a minimal ToolExecutor double for exercising the
// dispatch and catalog-resolution paths without a real toolexec.Executor.
type fakeExecutor struct {
	tools     []toolexec.DescribedTool
	resolve   map[string]toolexec.ToolType
	execute   func(ctx context.Context, call toolexec.CallContext, name string, params map[string]string) (any, error)
	execCalls []string
}

func (f *fakeExecutor) DescribeTools() []toolexec.DescribedTool {
	return f.tools
}

func (f *fakeExecutor) ResolveToolType(name string) (toolexec.ToolType, bool) {
	t, ok := f.resolve[name]
	return t, ok
}

func (f *fakeExecutor) Execute(ctx context.Context, call toolexec.CallContext, name string, params map[string]string) (any, error) {
	f.execCalls = append(f.execCalls, name)
	if f.execute != nil {
		return f.execute(ctx, call, name, params)
	}
	return map[string]any{"ok": true}, nil
}

// newChatServer builds a test /api/chat server that replies with the
// handler's return value, once per call, in request order.
func newChatServer(replies func(body []byte) (statusCode int, payload string)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		status, payload := replies(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
}
