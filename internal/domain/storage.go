package domain

import "context"

// DirEntry is one immediate child of a storage prefix.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// ObjectStore is a bucket-scoped object storage client.
// Local paths are files or directories on this machine; keys are object names.
type ObjectStore interface {
	DownloadFile(ctx context.Context, key, rootDir string) (string, error)
	DownloadFilesWithPrefix(ctx context.Context, prefix, rootDir string) ([]string, error)
	ListAllKeys(ctx context.Context, sort bool) ([]string, error)
	ListKeysWithPrefix(ctx context.Context, prefix string, sort bool) ([]string, error)
	UploadFile(ctx context.Context, key, path string) error
	UploadText(ctx context.Context, key, text string) error
	UploadImage(ctx context.Context, key, path string) error
	DeleteFile(ctx context.Context, key string) error
	DeleteFilesWithPrefix(ctx context.Context, prefix string) (int, error)
	UploadDirectory(ctx context.Context, localPath, prefix string) ([]string, error)
	DownloadDirectory(ctx context.Context, prefix, localPath string) ([]string, error)
	ListDirectoryContents(ctx context.Context, prefix string, sort bool) ([]DirEntry, error)
}
