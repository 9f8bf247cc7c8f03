// Package storage exposes bucket operations over an S3-compatible object store.
// Every call fails with domain.ErrNotInitialized until Init succeeds.
package storage

import (
	"context"
	"log/slog"

	"larkmcp/internal/bus"
	"larkmcp/internal/domain"
	"larkmcp/internal/handle"
)

// Opener connects to a store. Open is the production opener.
type Opener func(ctx context.Context, opts Options) (domain.ObjectStore, error)

func defaultOpener(ctx context.Context, opts Options) (domain.ObjectStore, error) {
	return Open(ctx, opts)
}

type Emitter interface {
	Emit(event bus.Event)
}

// connection is the store together with the bucket it was opened on.
type connection struct {
	domain.ObjectStore
	bucket string
}

// Facade guards an ObjectStore behind explicit initialization and reports each operation.
type Facade struct {
	store  *handle.Handle[connection]
	open   Opener
	events Emitter
	logger *slog.Logger
}

// NewFacade creates an uninitialized facade. open and events may be nil.
func NewFacade(open Opener, events Emitter, logger *slog.Logger) *Facade {
	if open == nil {
		open = defaultOpener
	}
	return &Facade{
		store:  handle.New[connection]("oss", nil),
		open:   open,
		events: events,
		logger: logger,
	}
}

// Init connects to the bucket and replaces any previous connection.
func (f *Facade) Init(ctx context.Context, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = f.logger
	}
	s, err := f.open(ctx, opts)
	if err != nil {
		return err
	}
	f.store.Set(connection{ObjectStore: s, bucket: opts.Bucket})
	f.logger.Info("storage initialized", "endpoint", opts.Endpoint, "bucket", opts.Bucket)
	if f.events != nil {
		f.events.Emit(bus.Event{
			Type:    bus.EventClientInitialized,
			Source:  "storage",
			Payload: map[string]any{"client": "oss", "bucket": opts.Bucket},
		})
	}
	return nil
}

func (f *Facade) Initialized() bool { return f.store.Initialized() }

// Bucket is the bucket of the current connection, empty before Init.
func (f *Facade) Bucket() string {
	if !f.store.Initialized() {
		return ""
	}
	c, err := f.store.Get(context.Background())
	if err != nil {
		return ""
	}
	return c.bucket
}

func (f *Facade) report(op, target string, count int, err error) {
	payload := map[string]any{"op": op, "target": target, "count": count}
	if err != nil {
		payload["error"] = err.Error()
		f.logger.Warn("storage operation failed", "op", op, "target", target, "error", err)
	} else {
		f.logger.Debug("storage operation", "op", op, "target", target, "count", count)
	}
	if f.events != nil {
		f.events.Emit(bus.Event{Type: bus.EventStorageOperation, Source: "storage", Payload: payload})
	}
}

func (f *Facade) DownloadFile(ctx context.Context, key, rootDir string) (string, error) {
	s, err := f.store.Get(ctx)
	if err != nil {
		return "", err
	}
	p, err := s.DownloadFile(ctx, key, rootDir)
	f.report("download_file", key, 1, err)
	return p, err
}

func (f *Facade) DownloadFilesWithPrefix(ctx context.Context, prefix, rootDir string) ([]string, error) {
	s, err := f.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	paths, err := s.DownloadFilesWithPrefix(ctx, prefix, rootDir)
	f.report("download_files_with_prefix", prefix, len(paths), err)
	return paths, err
}

func (f *Facade) ListAllKeys(ctx context.Context, sorted bool) ([]string, error) {
	s, err := f.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := s.ListAllKeys(ctx, sorted)
	f.report("list_all_keys", "", len(keys), err)
	return keys, err
}

func (f *Facade) ListKeysWithPrefix(ctx context.Context, prefix string, sorted bool) ([]string, error) {
	s, err := f.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := s.ListKeysWithPrefix(ctx, prefix, sorted)
	f.report("list_keys_with_prefix", prefix, len(keys), err)
	return keys, err
}

func (f *Facade) UploadFile(ctx context.Context, key, path string) error {
	s, err := f.store.Get(ctx)
	if err != nil {
		return err
	}
	err = s.UploadFile(ctx, key, path)
	f.report("upload_file", key, 1, err)
	return err
}

func (f *Facade) UploadText(ctx context.Context, key, text string) error {
	s, err := f.store.Get(ctx)
	if err != nil {
		return err
	}
	err = s.UploadText(ctx, key, text)
	f.report("upload_text", key, 1, err)
	return err
}

func (f *Facade) UploadImage(ctx context.Context, key, path string) error {
	s, err := f.store.Get(ctx)
	if err != nil {
		return err
	}
	err = s.UploadImage(ctx, key, path)
	f.report("upload_image", key, 1, err)
	return err
}

func (f *Facade) DeleteFile(ctx context.Context, key string) error {
	s, err := f.store.Get(ctx)
	if err != nil {
		return err
	}
	err = s.DeleteFile(ctx, key)
	f.report("delete_file", key, 1, err)
	return err
}

func (f *Facade) DeleteFilesWithPrefix(ctx context.Context, prefix string) (int, error) {
	s, err := f.store.Get(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.DeleteFilesWithPrefix(ctx, prefix)
	f.report("delete_files_with_prefix", prefix, n, err)
	return n, err
}

func (f *Facade) UploadDirectory(ctx context.Context, localPath, prefix string) ([]string, error) {
	s, err := f.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := s.UploadDirectory(ctx, localPath, prefix)
	f.report("upload_directory", prefix, len(keys), err)
	return keys, err
}

func (f *Facade) DownloadDirectory(ctx context.Context, prefix, localPath string) ([]string, error) {
	s, err := f.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	paths, err := s.DownloadDirectory(ctx, prefix, localPath)
	f.report("download_directory", prefix, len(paths), err)
	return paths, err
}

func (f *Facade) ListDirectoryContents(ctx context.Context, prefix string, sorted bool) ([]domain.DirEntry, error) {
	s, err := f.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.ListDirectoryContents(ctx, prefix, sorted)
	f.report("list_directory_contents", prefix, len(entries), err)
	return entries, err
}

var _ domain.ObjectStore = (*Facade)(nil)
