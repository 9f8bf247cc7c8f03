package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"larkmcp/internal/domain"
	"larkmcp/internal/tool"
)

type stubTool struct {
	name   string
	result string
	err    error
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }
func (s *stubTool) Parameters() map[string]any {
	return tool.ToolParameters(map[string]tool.Param{"q": {Type: "string", Description: "query"}}, []string{"q"})
}
func (s *stubTool) Execute(_ context.Context, args map[string]any) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.result + tool.ArgsString(args, "q"), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer() *Server {
	reg := tool.NewRegistry("test", nil, testLogger())
	reg.Register(&stubTool{name: "echo", result: "echo:"})
	reg.Register(&stubTool{name: "broken", err: errors.New("oss not initialized")})
	reg.RegisterPrompt(domain.Prompt{Name: "hello", Description: "greeting", Text: "Say hello"})
	return NewServer(ServerConfig{Registry: reg, Version: "1.0.0", Logger: testLogger()})
}

func decode(t *testing.T, msg any) map[string]any {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestServer_Initialize(t *testing.T) {
	s := newTestServer()
	out := decode(t, s.HandleMessage(context.Background(), []byte(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}`)))
	result := out["result"].(map[string]any)
	info := result["serverInfo"].(map[string]any)
	if info["name"] != "test" || info["version"] != "1.0.0" {
		t.Fatalf("unexpected server info %v", info)
	}
	caps := result["capabilities"].(map[string]any)
	if _, ok := caps["tools"]; !ok {
		t.Fatalf("tools capability missing: %v", caps)
	}
	if _, ok := caps["prompts"]; !ok {
		t.Fatalf("prompts capability missing: %v", caps)
	}
}

func TestServer_NotificationHasNoResponse(t *testing.T) {
	s := newTestServer()
	if resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)); resp != nil {
		t.Fatalf("expected no response, got %+v", resp)
	}
}

func TestServer_ToolsList(t *testing.T) {
	s := newTestServer()
	out := decode(t, s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)))
	tools := out["result"].(map[string]any)["tools"].([]any)
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	first := tools[0].(map[string]any)
	if first["name"] != "broken" {
		t.Fatalf("expected sorted tools, got %v first", first["name"])
	}
	schema := first["inputSchema"].(map[string]any)
	if _, ok := schema["properties"].(map[string]any)["q"]; !ok {
		t.Fatalf("inputSchema lost the registry parameters: %v", schema)
	}
}

func TestServer_ToolsCall(t *testing.T) {
	s := newTestServer()
	out := decode(t, s.HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":"a","method":"tools/call","params":{"name":"echo","arguments":{"q":"hi"}}}`)))
	if out["id"] != "a" {
		t.Fatalf("id not echoed: %v", out["id"])
	}
	result := out["result"].(map[string]any)
	if result["isError"] == true {
		t.Fatalf("unexpected isError: %v", result)
	}
	text := result["content"].([]any)[0].(map[string]any)["text"]
	if text != "echo:hi" {
		t.Fatalf("unexpected text %v", text)
	}
}

func TestServer_ToolErrorIsResult(t *testing.T) {
	s := newTestServer()
	out := decode(t, s.HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"broken","arguments":{}}}`)))
	if out["error"] != nil {
		t.Fatalf("tool error should not be an RPC error: %v", out["error"])
	}
	result := out["result"].(map[string]any)
	if result["isError"] != true {
		t.Fatalf("expected isError, got %v", result)
	}
	if text := result["content"].([]any)[0].(map[string]any)["text"]; text != "oss not initialized" {
		t.Fatalf("unexpected text %v", text)
	}
}

func TestServer_ErrorCodes(t *testing.T) {
	s := newTestServer()
	cases := map[string]float64{
		`{not json`: -32700,
		`{"jsonrpc":"2.0","id":1,"method":"bogus/method"}`:                        -32601,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope"}}`: -32602,
	}
	for raw, code := range cases {
		resp := s.HandleMessage(context.Background(), []byte(raw))
		if resp == nil {
			t.Fatalf("%s: expected error response", raw)
		}
		rpcErr, ok := decode(t, resp)["error"].(map[string]any)
		if !ok {
			t.Fatalf("%s: expected error object", raw)
		}
		if rpcErr["code"] != code {
			t.Fatalf("%s: expected code %v, got %v", raw, code, rpcErr["code"])
		}
	}
}

func TestServer_Prompts(t *testing.T) {
	s := newTestServer()
	out := decode(t, s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":4,"method":"prompts/list"}`)))
	prompts := out["result"].(map[string]any)["prompts"].([]any)
	if len(prompts) != 1 || prompts[0].(map[string]any)["name"] != "hello" {
		t.Fatalf("unexpected prompts %v", prompts)
	}

	out = decode(t, s.HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":5,"method":"prompts/get","params":{"name":"hello"}}`)))
	msgs := out["result"].(map[string]any)["messages"].([]any)
	content := msgs[0].(map[string]any)["content"].(map[string]any)
	if content["text"] != "Say hello" {
		t.Fatalf("unexpected prompt text %v", content)
	}
}

func TestServer_ServeStdio(t *testing.T) {
	s := newTestServer()
	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	}, "\n") + "\n")
	var out bytes.Buffer
	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("serve: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses, got %d: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[1], `"id":2`) || !strings.Contains(lines[1], `"echo"`) {
		t.Fatalf("unexpected second response %s", lines[1])
	}
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	s := newTestServer()
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, pr, io.Discard) }()

	// Serve is blocked reading a pipe nobody writes to.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func postRPC(t *testing.T, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestHTTPServer_AuthAndCall(t *testing.T) {
	h := NewHTTPServer(newTestServer(), HTTPConfig{APIKey: "secret", Logger: testLogger()})
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"q":"x"}}}`

	resp := postRPC(t, srv.URL+"/mcp", "", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = postRPC(t, srv.URL+"/mcp", "wrong", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bad token, got %d", resp.StatusCode)
	}

	resp = postRPC(t, srv.URL+"/mcp", "secret", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "echo:x") {
		t.Fatalf("unexpected response %s", raw)
	}
}

func TestHTTPServer_NotificationAccepted(t *testing.T) {
	h := NewHTTPServer(newTestServer(), HTTPConfig{Logger: testLogger()})
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	resp := postRPC(t, srv.URL+"/mcp", "", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 for a notification, got %d", resp.StatusCode)
	}
}

func TestHTTPServer_Health(t *testing.T) {
	h := NewHTTPServer(newTestServer(), HTTPConfig{Logger: testLogger()})
	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("metrics should be disabled, got %d", rec.Code)
	}
}
