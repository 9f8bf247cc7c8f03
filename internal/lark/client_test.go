package lark

import (
	"context"
	"encoding/json"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"

	"larkmcp/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakePlatform answers the handful of open platform endpoints the client uses.
type fakePlatform struct {
	mu       sync.Mutex
	messages []map[string]any
	queries  []string
	uploads  int
}

func (p *fakePlatform) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, data any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "msg": "success", "data": data})
	}
	mux.HandleFunc("/open-apis/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "msg": "ok", "tenant_access_token": "t-test", "expire": 7200})
	})
	mux.HandleFunc("/open-apis/im/v1/chats", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page_token") == "" {
			reply(w, map[string]any{
				"items":      []any{map[string]any{"chat_id": "c0", "name": "Random"}},
				"has_more":   true,
				"page_token": "p2",
			})
			return
		}
		reply(w, map[string]any{
			"items":    []any{map[string]any{"chat_id": "c1", "name": "Engineering"}},
			"has_more": false,
		})
	})
	mux.HandleFunc("/open-apis/im/v1/chats/c1/members", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("member_id_type") != "open_id" {
			t.Errorf("expected open_id member ids, got %s", r.URL.RawQuery)
		}
		reply(w, map[string]any{
			"items":    []any{map[string]any{"member_id": "o42", "name": "Bob"}, map[string]any{"member_id": "o7", "name": "Alice"}},
			"has_more": false,
		})
	})
	mux.HandleFunc("/open-apis/contact/v3/users/batch_get_id", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Mobiles []string `json:"mobiles"`
			Emails  []string `json:"emails"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		list := []any{}
		for _, m := range body.Mobiles {
			if m == "+15550100" {
				list = append(list, map[string]any{"user_id": "ou_carol", "mobile": m})
			} else {
				list = append(list, map[string]any{"mobile": m})
			}
		}
		reply(w, map[string]any{"user_list": list})
	})
	mux.HandleFunc("/open-apis/im/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		p.mu.Lock()
		p.messages = append(p.messages, body)
		p.queries = append(p.queries, r.URL.Query().Get("receive_id_type"))
		p.mu.Unlock()
		reply(w, map[string]any{"message_id": "om_1", "chat_id": body["receive_id"], "msg_type": body["msg_type"]})
	})
	mux.HandleFunc("/open-apis/im/v1/images", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		p.mu.Lock()
		p.uploads++
		p.mu.Unlock()
		reply(w, map[string]any{"image_key": "img_v2_1"})
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakePlatform) {
	t.Helper()
	p := &fakePlatform{}
	srv := httptest.NewServer(p.handler(t))
	t.Cleanup(srv.Close)
	c, err := New(Config{AppID: "cli_test", AppSecret: "secret", BaseURL: srv.URL, Logger: testLogger()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, p
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(Config{AppID: "x"}); err == nil {
		t.Fatal("expected error without app secret")
	}
}

func TestBaseURL(t *testing.T) {
	if baseURL("") != "https://open.feishu.cn" {
		t.Fatalf("unexpected default %s", baseURL(""))
	}
	if baseURL("Lark") != "https://open.larksuite.com" {
		t.Fatalf("unexpected lark url %s", baseURL("lark"))
	}
	if baseURL("http://127.0.0.1:9/") != "http://127.0.0.1:9" {
		t.Fatalf("unexpected custom url %s", baseURL("http://127.0.0.1:9/"))
	}
}

func TestClient_ListGroupsPaginates(t *testing.T) {
	c, _ := newTestClient(t)
	groups, err := c.ListGroups(context.Background())
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	if len(groups) != 2 || groups[1].ChatID != "c1" {
		t.Fatalf("unexpected groups %+v", groups)
	}
	ids, err := c.LookupGroupIDsByName(context.Background(), "Engineering")
	if err != nil || len(ids) != 1 || ids[0] != "c1" {
		t.Fatalf("lookup by name: %v %v", ids, err)
	}
}

func TestClient_Members(t *testing.T) {
	c, _ := newTestClient(t)
	ids, err := c.LookupMemberIDsByName(context.Background(), "c1", "Bob")
	if err != nil {
		t.Fatalf("lookup member: %v", err)
	}
	if len(ids) != 1 || ids[0] != "o42" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestClient_LookupUsersSkipsMisses(t *testing.T) {
	c, _ := newTestClient(t)
	users, err := c.LookupUsers(context.Background(), []string{"+19999", "+15550100"}, nil)
	if err != nil {
		t.Fatalf("lookup users: %v", err)
	}
	if len(users) != 1 || users[0].OpenID != "ou_carol" {
		t.Fatalf("unexpected users %+v", users)
	}
}

func TestClient_SendTextToGroup(t *testing.T) {
	c, p := newTestClient(t)
	res, err := c.SendText(context.Background(), domain.GroupRecipient("c1"), "<b>Deploy now</b>")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.MessageID != "om_1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if p.queries[0] != "chat_id" {
		t.Fatalf("expected chat_id receive type, got %s", p.queries[0])
	}
	msg := p.messages[0]
	if msg["msg_type"] != "text" || msg["receive_id"] != "c1" {
		t.Fatalf("unexpected message %v", msg)
	}
	var body map[string]string
	json.Unmarshal([]byte(msg["content"].(string)), &body)
	if body["text"] != "<b>Deploy now</b>" {
		t.Fatalf("unexpected content %v", msg["content"])
	}
	if uuid, _ := msg["uuid"].(string); uuid == "" {
		t.Fatal("expected an idempotency uuid")
	}
}

func TestClient_SendPostToUser(t *testing.T) {
	c, p := newTestClient(t)
	doc := domain.MessageDocument{Title: "T", Lines: [][]domain.ContentElement{{domain.Divider{}}}}
	if _, err := c.SendPost(context.Background(), domain.UserRecipient("ou_carol"), doc); err != nil {
		t.Fatalf("send post: %v", err)
	}
	if p.queries[0] != "open_id" {
		t.Fatalf("expected open_id receive type, got %s", p.queries[0])
	}
	if !strings.Contains(p.messages[0]["content"].(string), `"tag":"hr"`) {
		t.Fatalf("unexpected post content %v", p.messages[0]["content"])
	}
}

func TestClient_SendInteractiveRejectsBadJSON(t *testing.T) {
	c, p := newTestClient(t)
	if _, err := c.SendInteractive(context.Background(), domain.GroupRecipient("c1"), "{not json"); err == nil {
		t.Fatal("expected error for invalid card")
	}
	if len(p.messages) != 0 {
		t.Fatal("invalid card should not be sent")
	}
}

func TestClient_UploadImageValidatesDecode(t *testing.T) {
	c, p := newTestClient(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.png")
	os.WriteFile(bad, []byte("definitely not a png"), 0o644)
	if _, err := c.UploadImage(context.Background(), bad); err == nil {
		t.Fatal("expected decode error")
	}
	if p.uploads != 0 {
		t.Fatal("undecodable image should not be uploaded")
	}

	good := filepath.Join(dir, "good.png")
	img := imaging.New(4, 4, color.NRGBA{R: 255, A: 255})
	if err := imaging.Save(img, good); err != nil {
		t.Fatalf("save png: %v", err)
	}
	key, err := c.UploadImage(context.Background(), good)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if key != "img_v2_1" || p.uploads != 1 {
		t.Fatalf("unexpected key %q after %d uploads", key, p.uploads)
	}
}

func TestEnvFactory_NoCredentials(t *testing.T) {
	t.Setenv("LARK_APP_ID", "")
	t.Setenv("LARK_APP_SECRET", "")
	_, built, err := EnvFactory(Config{Logger: testLogger()})(context.Background())
	if err != nil || built {
		t.Fatalf("expected nothing built, got built=%v err=%v", built, err)
	}
}
