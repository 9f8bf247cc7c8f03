package tool

import (
	"context"
	"log/slog"

	"larkmcp/internal/domain"
	"larkmcp/internal/storage"
)

// StorageConfig wires the object storage tool set.
type StorageConfig struct {
	Facade *storage.Facade
	Logger *slog.Logger
}

const initConnectionPrompt = `Please initialize the OSS connection. I need to provide:
1. endpoint
2. bucket_name
3. api_key (optional)
4. api_secret (optional)
5. verbose (optional, default true)`

const listOperationsPrompt = `I can perform the following OSS operations:
1. Download a file (download_file)
2. Download files by prefix (download_files_with_prefix)
3. List all keys (list_all_keys)
4. List keys with a prefix (list_keys_with_prefix)
5. Upload a file (upload_file)
6. Upload text (upload_text)
7. Upload an image (upload_image)
8. Delete a file (delete_file)
9. Delete files by prefix (delete_files_with_prefix)
10. Upload a directory (upload_directory)
11. Download a directory (download_directory)
12. List directory contents (list_directory_contents)

Which operation would you like to run?`

// RegisterStorageTools adds the bucket tools and prompts to reg.
// Operation failures, including a missing init_oss, are returned as errors.
func RegisterStorageTools(reg *Registry, cfg StorageConfig) {
	f := cfg.Facade
	keyParam := Param{Type: "string", Description: "Object key"}
	prefixParam := Param{Type: "string", Description: "Key prefix"}
	rootParam := Param{Type: "string", Description: "Local root directory, default current directory"}
	sortParam := Param{Type: "boolean", Description: "Natural sort, default true"}

	tools := []*funcTool{
		{
			name:        "init_oss",
			description: "Connect to an S3-compatible bucket (Aliyun OSS, MinIO, S3). Keys are optional for public buckets.",
			parameters: ToolParameters(map[string]Param{
				"endpoint":    {Type: "string", Description: "Endpoint host or URL, e.g. oss-cn-hangzhou.aliyuncs.com"},
				"bucket_name": {Type: "string", Description: "Bucket name"},
				"api_key":     {Type: "string", Description: "Access key id"},
				"api_secret":  {Type: "string", Description: "Access key secret"},
				"verbose":     {Type: "boolean", Description: "Log every operation, default true"},
			}, []string{"endpoint", "bucket_name"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "endpoint", "bucket_name"); err != nil {
					return "", err
				}
				err := f.Init(ctx, storage.Options{
					Endpoint:        ArgsString(args, "endpoint"),
					Bucket:          ArgsString(args, "bucket_name"),
					AccessKeyID:     ArgsString(args, "api_key"),
					AccessKeySecret: ArgsString(args, "api_secret"),
					Verbose:         ArgsBool(args, "verbose", true),
				})
				if err != nil {
					return "", err
				}
				return "OSS connection initialized", nil
			},
		},
		{
			name:        "download_file",
			description: "Download one object to root_dir/key.",
			parameters:  ToolParameters(map[string]Param{"key": keyParam, "root_dir": rootParam}, []string{"key"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "key"); err != nil {
					return "", err
				}
				p, err := f.DownloadFile(ctx, ArgsString(args, "key"), ArgsString(args, "root_dir"))
				if err != nil {
					return "", err
				}
				return jsonResult(map[string]any{"success": true, "path": p})
			},
		},
		{
			name:        "download_files_with_prefix",
			description: "Download every object under a prefix to root_dir/key.",
			parameters:  ToolParameters(map[string]Param{"prefix": prefixParam, "root_dir": rootParam}, []string{"prefix"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				paths, err := f.DownloadFilesWithPrefix(ctx, ArgsString(args, "prefix"), ArgsString(args, "root_dir"))
				if err != nil {
					return "", err
				}
				return jsonResult(map[string]any{"success": true, "paths": nonNil(paths)})
			},
		},
		{
			name:        "list_all_keys",
			description: "List every key in the bucket.",
			parameters:  ToolParameters(map[string]Param{"sort": sortParam}, nil),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				keys, err := f.ListAllKeys(ctx, ArgsBool(args, "sort", true))
				if err != nil {
					return "", err
				}
				return jsonResult(nonNil(keys))
			},
		},
		{
			name:        "list_keys_with_prefix",
			description: "List every key under a prefix.",
			parameters:  ToolParameters(map[string]Param{"prefix": prefixParam, "sort": sortParam}, []string{"prefix"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				keys, err := f.ListKeysWithPrefix(ctx, ArgsString(args, "prefix"), ArgsBool(args, "sort", true))
				if err != nil {
					return "", err
				}
				return jsonResult(nonNil(keys))
			},
		},
		{
			name:        "upload_file",
			description: "Upload a local file as key.",
			parameters: ToolParameters(map[string]Param{
				"key":       keyParam,
				"file_path": {Type: "string", Description: "Local file path"},
			}, []string{"key", "file_path"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "key", "file_path"); err != nil {
					return "", err
				}
				return successOr(f.UploadFile(ctx, ArgsString(args, "key"), ArgsString(args, "file_path")))
			},
		},
		{
			name:        "upload_text",
			description: "Store text as key.",
			parameters: ToolParameters(map[string]Param{
				"key":  keyParam,
				"text": {Type: "string", Description: "Text content"},
			}, []string{"key", "text"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "key"); err != nil {
					return "", err
				}
				return successOr(f.UploadText(ctx, ArgsString(args, "key"), ArgsString(args, "text")))
			},
		},
		{
			name:        "upload_image",
			description: "Upload a local image as key, re-encoded to match the key's extension. The file must decode as an image.",
			parameters: ToolParameters(map[string]Param{
				"key":        keyParam,
				"image_path": {Type: "string", Description: "Local image path"},
			}, []string{"key", "image_path"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "key", "image_path"); err != nil {
					return "", err
				}
				return successOr(f.UploadImage(ctx, ArgsString(args, "key"), ArgsString(args, "image_path")))
			},
		},
		{
			name:        "delete_file",
			description: "Delete one object.",
			parameters:  ToolParameters(map[string]Param{"key": keyParam}, []string{"key"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "key"); err != nil {
					return "", err
				}
				return successOr(f.DeleteFile(ctx, ArgsString(args, "key")))
			},
		},
		{
			name:        "delete_files_with_prefix",
			description: "Delete every object under a prefix.",
			parameters:  ToolParameters(map[string]Param{"prefix": prefixParam}, []string{"prefix"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				// An empty prefix would empty the bucket.
				if err := RequireArgs(args, "prefix"); err != nil {
					return "", err
				}
				n, err := f.DeleteFilesWithPrefix(ctx, ArgsString(args, "prefix"))
				if err != nil {
					return "", err
				}
				return jsonResult(map[string]any{"success": true, "deleted": n})
			},
		},
		{
			name:        "upload_directory",
			description: "Upload every file under a local directory, keyed by prefix plus its relative path.",
			parameters: ToolParameters(map[string]Param{
				"local_path": {Type: "string", Description: "Local directory"},
				"prefix":     {Type: "string", Description: "Key prefix, default none"},
			}, []string{"local_path"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "local_path"); err != nil {
					return "", err
				}
				keys, err := f.UploadDirectory(ctx, ArgsString(args, "local_path"), ArgsString(args, "prefix"))
				if err != nil {
					return "", err
				}
				return jsonResult(map[string]any{"success": true, "keys": nonNil(keys)})
			},
		},
		{
			name:        "download_directory",
			description: "Download every object under a prefix into a local directory, preserving relative paths.",
			parameters: ToolParameters(map[string]Param{
				"prefix":     prefixParam,
				"local_path": {Type: "string", Description: "Local directory"},
			}, []string{"prefix", "local_path"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				if err := RequireArgs(args, "local_path"); err != nil {
					return "", err
				}
				paths, err := f.DownloadDirectory(ctx, ArgsString(args, "prefix"), ArgsString(args, "local_path"))
				if err != nil {
					return "", err
				}
				return jsonResult(map[string]any{"success": true, "paths": nonNil(paths)})
			},
		},
		{
			name:        "list_directory_contents",
			description: "List the files and folders directly under a prefix without descending. Returns [name, is_directory] pairs.",
			parameters:  ToolParameters(map[string]Param{"prefix": prefixParam, "sort": sortParam}, []string{"prefix"}),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				entries, err := f.ListDirectoryContents(ctx, ArgsString(args, "prefix"), ArgsBool(args, "sort", true))
				if err != nil {
					return "", err
				}
				return jsonResult(entryPairs(entries))
			},
		},
	}
	for _, t := range tools {
		reg.Register(t)
	}

	reg.RegisterPrompt(domain.Prompt{Name: "init_connection", Description: "Prompt template for initializing the OSS connection", Text: initConnectionPrompt})
	reg.RegisterPrompt(domain.Prompt{Name: "list_operations", Description: "Prompt template listing the available OSS operations", Text: listOperationsPrompt})
}

func successOr(err error) (string, error) {
	if err != nil {
		return "", err
	}
	return jsonResult(map[string]bool{"success": true})
}

// entryPairs renders entries as [name, is_directory] tuples.
func entryPairs(entries []domain.DirEntry) [][2]any {
	out := make([][2]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, [2]any{e.Name, e.IsDir})
	}
	return out
}
