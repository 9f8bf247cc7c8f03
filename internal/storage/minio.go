package storage

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	_ "golang.org/x/image/webp"

	"larkmcp/internal/domain"
)

// Options configures a bucket connection.
type Options struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
	Region          string
	Verbose         bool
	Logger          *slog.Logger
}

// NewClient builds an S3-compatible client. Without keys the client falls back to
// the environment credential chain and finally anonymous access.
func NewClient(ep Endpoint, accessKey, secretKey, region string) (*minio.Client, error) {
	creds := credentials.NewStaticV4(accessKey, secretKey, "")
	if accessKey == "" || secretKey == "" {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
		})
	}
	lookup := minio.BucketLookupAuto
	if ep.VirtualHost {
		lookup = minio.BucketLookupDNS
	}
	if region == "" {
		region = ep.Region
	}
	return minio.New(ep.Host, &minio.Options{
		Creds:        creds,
		Secure:       ep.Secure,
		Region:       region,
		BucketLookup: lookup,
	})
}

// MinioStore implements domain.ObjectStore against a single bucket.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	verbose bool
	logger  *slog.Logger
}

var _ domain.ObjectStore = (*MinioStore)(nil)

// Open connects to the bucket and checks that it exists.
func Open(ctx context.Context, opts Options) (*MinioStore, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	ep, err := ParseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(ep, opts.AccessKeyID, opts.AccessKeySecret, opts.Region)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", opts.Bucket)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MinioStore{client: client, bucket: opts.Bucket, verbose: opts.Verbose, logger: logger}, nil
}

func (s *MinioStore) trace(msg string, args ...any) {
	if s.verbose {
		s.logger.Info(msg, args...)
		return
	}
	s.logger.Debug(msg, args...)
}

func (s *MinioStore) DownloadFile(ctx context.Context, key, rootDir string) (string, error) {
	dest, err := localPathFor(rootDir, key)
	if err != nil {
		return "", err
	}
	if err := s.client.FGetObject(ctx, s.bucket, key, dest, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	s.trace("object downloaded", "key", key, "path", dest)
	return dest, nil
}

func (s *MinioStore) DownloadFilesWithPrefix(ctx context.Context, prefix, rootDir string) ([]string, error) {
	keys, err := s.ListKeysWithPrefix(ctx, prefix, true)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, "/") {
			continue
		}
		p, err := s.DownloadFile(ctx, key, rootDir)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (s *MinioStore) ListAllKeys(ctx context.Context, sorted bool) ([]string, error) {
	return s.ListKeysWithPrefix(ctx, "", sorted)
}

func (s *MinioStore) ListKeysWithPrefix(ctx context.Context, prefix string, sorted bool) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	if sorted {
		NaturalSort(keys)
	}
	return keys, nil
}

func (s *MinioStore) UploadFile(ctx context.Context, key, path string) error {
	info, err := s.client.FPutObject(ctx, s.bucket, key, path, minio.PutObjectOptions{ContentType: contentType(path)})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	s.trace("object uploaded", "key", key, "size", info.Size)
	return nil
}

func (s *MinioStore) UploadText(ctx context.Context, key, text string) error {
	r := strings.NewReader(text)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, int64(r.Len()), minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return fmt.Errorf("upload text %s: %w", key, err)
	}
	s.trace("text uploaded", "key", key, "size", len(text))
	return nil
}

// UploadImage decodes the image at path and stores it encoded in the format implied by key.
func (s *MinioStore) UploadImage(ctx context.Context, key, path string) error {
	data, err := EncodeImage(key, path)
	if err != nil {
		return err
	}
	r := bytes.NewReader(data)
	_, err = s.client.PutObject(ctx, s.bucket, key, r, int64(r.Len()), minio.PutObjectOptions{ContentType: contentType(key)})
	if err != nil {
		return fmt.Errorf("upload image %s: %w", key, err)
	}
	s.trace("image uploaded", "key", key, "size", r.Size())
	return nil
}

func (s *MinioStore) DeleteFile(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	s.trace("object deleted", "key", key)
	return nil
}

// DeleteFilesWithPrefix removes every key under prefix and returns how many were removed.
func (s *MinioStore) DeleteFilesWithPrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.ListKeysWithPrefix(ctx, prefix, false)
	if err != nil {
		return 0, err
	}
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: k}
	}
	close(objects)

	failed := 0
	var firstErr error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		failed++
		if firstErr == nil {
			firstErr = fmt.Errorf("delete %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	s.trace("prefix deleted", "prefix", prefix, "count", len(keys)-failed)
	return len(keys) - failed, firstErr
}

// UploadDirectory uploads every regular file under localPath, keyed by its path relative to localPath.
func (s *MinioStore) UploadDirectory(ctx context.Context, localPath, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(localPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localPath, p)
		if err != nil {
			return err
		}
		key := keyFor(prefix, rel)
		if err := s.UploadFile(ctx, key, p); err != nil {
			return err
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return keys, fmt.Errorf("upload directory %s: %w", localPath, err)
	}
	return keys, nil
}

// DownloadDirectory mirrors every key under prefix into localPath.
func (s *MinioStore) DownloadDirectory(ctx context.Context, prefix, localPath string) ([]string, error) {
	keys, err := s.ListKeysWithPrefix(ctx, prefix, true)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, key := range keys {
		rel := relativeKey(prefix, key)
		if rel == "" || strings.HasSuffix(key, "/") {
			continue
		}
		dest, err := localPathFor(localPath, rel)
		if err != nil {
			return paths, err
		}
		if err := s.client.FGetObject(ctx, s.bucket, key, dest, minio.GetObjectOptions{}); err != nil {
			return paths, fmt.Errorf("download %s: %w", key, err)
		}
		paths = append(paths, dest)
	}
	s.trace("directory downloaded", "prefix", prefix, "count", len(paths))
	return paths, nil
}

// ListDirectoryContents lists the immediate children of prefix, treating "/" as the separator.
func (s *MinioStore) ListDirectoryContents(ctx context.Context, prefix string, sorted bool) ([]domain.DirEntry, error) {
	prefix = dirPrefix(prefix)
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return childEntries(prefix, keys, sorted), nil
}

// EncodeImage decodes path and re-encodes it in the format implied by key's extension.
// Keys without a recognised image extension keep the original bytes.
func EncodeImage(key, path string) ([]byte, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	format, err := imaging.FormatFromFilename(key)
	if err != nil {
		raw, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, fmt.Errorf("read image %s: %w", path, rerr)
		}
		return raw, nil
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("encode image %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

func contentType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
