package storage

import (
	"context"
	"errors"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/disintegration/imaging"

	"larkmcp/internal/bus"
	"larkmcp/internal/domain"
	"larkmcp/internal/fake"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNaturalSort(t *testing.T) {
	keys := []string{"img10.png", "img2.png", "img1.png", "a/b", "img02.png", "Img3"}
	NaturalSort(keys)
	want := []string{"Img3", "a/b", "img1.png", "img2.png", "img02.png", "img10.png"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
}

func TestNaturalSort_Versions(t *testing.T) {
	keys := []string{"v1.10", "log1", "v1.9", "log"}
	NaturalSort(keys)
	want := []string{"log", "log1", "v1.9", "v1.10"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw     string
		host    string
		secure  bool
		region  string
		virtual bool
	}{
		{"oss-cn-hangzhou.aliyuncs.com", "oss-cn-hangzhou.aliyuncs.com", true, "oss-cn-hangzhou", true},
		{"https://oss-cn-beijing-internal.aliyuncs.com/", "oss-cn-beijing-internal.aliyuncs.com", true, "oss-cn-beijing", true},
		{"http://localhost:9000", "localhost:9000", false, "", false},
		{"play.min.io", "play.min.io", true, "", false},
	}
	for _, tt := range tests {
		ep, err := ParseEndpoint(tt.raw)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.raw, err)
		}
		if ep.Host != tt.host || ep.Secure != tt.secure || ep.Region != tt.region || ep.VirtualHost != tt.virtual {
			t.Fatalf("parse %q: got %+v", tt.raw, ep)
		}
	}
	if _, err := ParseEndpoint("ftp://x"); err == nil {
		t.Fatal("expected error for ftp scheme")
	}
	if _, err := ParseEndpoint("  "); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}

func TestLocalPathFor(t *testing.T) {
	p, err := localPathFor("/data", "a/b.txt")
	if err != nil || p != filepath.Join("/data", "a", "b.txt") {
		t.Fatalf("unexpected %q %v", p, err)
	}
	if p, _ := localPathFor("", "x.txt"); p != "x.txt" {
		t.Fatalf("expected relative path, got %q", p)
	}
	if _, err := localPathFor("/data", "../etc/passwd"); err == nil {
		t.Fatal("expected escape to be rejected")
	}
	if _, err := localPathFor("/data", ""); err == nil {
		t.Fatal("expected empty key to be rejected")
	}
}

func TestKeyFor(t *testing.T) {
	if k := keyFor("backup", filepath.Join("a", "b.txt")); k != "backup/a/b.txt" {
		t.Fatalf("unexpected key %q", k)
	}
	if k := keyFor("", "b.txt"); k != "b.txt" {
		t.Fatalf("unexpected key %q", k)
	}
}

func TestChildEntries(t *testing.T) {
	keys := []string{"docs/file10.txt", "docs/file2.txt", "docs/img/a.png", "docs/img/b.png", "docs/", "docs/archive/"}
	got := childEntries("docs", keys, true)
	want := []domain.DirEntry{
		{Name: "archive", IsDir: true},
		{Name: "img", IsDir: true},
		{Name: "file2.txt"},
		{Name: "file10.txt"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestEncodeImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	if err := imaging.Save(imaging.New(2, 2, color.NRGBA{G: 255, A: 255}), src); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := EncodeImage("out/pic.jpg", src)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(data) < 3 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatal("expected JPEG output for .jpg key")
	}

	raw, _ := os.ReadFile(src)
	data, err = EncodeImage("out/blob", src)
	if err != nil || string(data) != string(raw) {
		t.Fatalf("expected original bytes for extensionless key, err=%v", err)
	}

	bad := filepath.Join(dir, "bad.png")
	os.WriteFile(bad, []byte("nope"), 0o644)
	if _, err := EncodeImage("x.png", bad); err == nil {
		t.Fatal("expected error for unreadable image")
	}
}

func TestFacade_NotInitialized(t *testing.T) {
	f := NewFacade(nil, nil, testLogger())
	ctx := context.Background()
	checks := map[string]error{}
	_, checks["download_file"] = f.DownloadFile(ctx, "k", "")
	_, checks["download_files_with_prefix"] = f.DownloadFilesWithPrefix(ctx, "p", "")
	_, checks["list_all_keys"] = f.ListAllKeys(ctx, true)
	_, checks["list_keys_with_prefix"] = f.ListKeysWithPrefix(ctx, "p", true)
	checks["upload_file"] = f.UploadFile(ctx, "k", "/nope")
	checks["upload_text"] = f.UploadText(ctx, "k", "hi")
	checks["upload_image"] = f.UploadImage(ctx, "k", "/nope")
	checks["delete_file"] = f.DeleteFile(ctx, "k")
	_, checks["delete_files_with_prefix"] = f.DeleteFilesWithPrefix(ctx, "p")
	_, checks["upload_directory"] = f.UploadDirectory(ctx, "/nope", "p")
	_, checks["download_directory"] = f.DownloadDirectory(ctx, "p", "/nope")
	_, checks["list_directory_contents"] = f.ListDirectoryContents(ctx, "p", true)
	for op, err := range checks {
		if !errors.Is(err, domain.ErrNotInitialized) {
			t.Fatalf("%s: expected ErrNotInitialized, got %v", op, err)
		}
	}
	if f.Initialized() {
		t.Fatal("facade should not be initialized")
	}
}

func newTestFacade(t *testing.T, store *fake.Store) (*Facade, *bus.EventBus) {
	t.Helper()
	events := bus.NewEventBus(testLogger())
	opener := func(_ context.Context, opts Options) (domain.ObjectStore, error) {
		if opts.Bucket == "missing" {
			return nil, errors.New("bucket missing does not exist")
		}
		return store, nil
	}
	f := NewFacade(opener, events, testLogger())
	if err := f.Init(context.Background(), Options{Endpoint: "localhost:9000", Bucket: "assets"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	return f, events
}

func TestFacade_InitFailureKeepsPrevious(t *testing.T) {
	store := fake.NewStore(map[string]string{"a.txt": "a"})
	f, _ := newTestFacade(t, store)
	if err := f.Init(context.Background(), Options{Bucket: "missing"}); err == nil {
		t.Fatal("expected init error")
	}
	keys, err := f.ListAllKeys(context.Background(), true)
	if err != nil || len(keys) != 1 {
		t.Fatalf("previous store should remain: %v %v", keys, err)
	}
	if f.Bucket() != "assets" {
		t.Fatalf("unexpected bucket %q", f.Bucket())
	}
}

func TestFacade_ConcurrentInitAndBucket(t *testing.T) {
	store := fake.NewStore(nil)
	f, _ := newTestFacade(t, store)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := f.Init(context.Background(), Options{Bucket: "assets"}); err != nil {
				t.Errorf("init: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if b := f.Bucket(); b != "assets" {
				t.Errorf("unexpected bucket %q", b)
			}
		}()
	}
	wg.Wait()
}

func TestFacade_Operations(t *testing.T) {
	store := fake.NewStore(map[string]string{"docs/a.txt": "A", "docs/sub/b.txt": "B", "top.txt": "T"})
	f, events := newTestFacade(t, store)
	ctx := context.Background()

	var ops []string
	events.On(bus.EventStorageOperation, func(e bus.Event) {
		ops = append(ops, e.Payload["op"].(string))
	})

	keys, err := f.ListKeysWithPrefix(ctx, "docs/", true)
	if err != nil || !reflect.DeepEqual(keys, []string{"docs/a.txt", "docs/sub/b.txt"}) {
		t.Fatalf("list prefix: %v %v", keys, err)
	}
	if err := f.UploadText(ctx, "notes/hello.txt", "hello"); err != nil {
		t.Fatalf("upload text: %v", err)
	}
	if string(store.Objects["notes/hello.txt"]) != "hello" {
		t.Fatal("text not stored")
	}

	dir := t.TempDir()
	paths, err := f.DownloadDirectory(ctx, "docs/", dir)
	if err != nil || len(paths) != 2 {
		t.Fatalf("download directory: %v %v", paths, err)
	}
	b, _ := os.ReadFile(filepath.Join(dir, "sub", "b.txt"))
	if string(b) != "B" {
		t.Fatalf("unexpected content %q", b)
	}

	entries, err := f.ListDirectoryContents(ctx, "docs", true)
	if err != nil || len(entries) != 2 {
		t.Fatalf("list directory: %+v %v", entries, err)
	}

	n, err := f.DeleteFilesWithPrefix(ctx, "docs/")
	if err != nil || n != 2 {
		t.Fatalf("delete prefix: %d %v", n, err)
	}
	if _, ok := store.Objects["top.txt"]; !ok {
		t.Fatal("unrelated key removed")
	}

	want := []string{"list_keys_with_prefix", "upload_text", "download_directory", "list_directory_contents", "delete_files_with_prefix"}
	if !reflect.DeepEqual(ops, want) {
		t.Fatalf("events %v, want %v", ops, want)
	}
}

func TestFacade_ErrorEventCarriesReason(t *testing.T) {
	store := fake.NewStore(nil)
	store.Err = errors.New("access denied")
	f, events := newTestFacade(t, store)
	var reason string
	events.On(bus.EventStorageOperation, func(e bus.Event) {
		reason, _ = e.Payload["error"].(string)
	})
	if err := f.DeleteFile(context.Background(), "k"); err == nil {
		t.Fatal("expected store error")
	}
	if reason != "access denied" {
		t.Fatalf("unexpected reason %q", reason)
	}
}
