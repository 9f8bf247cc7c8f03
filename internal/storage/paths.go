package storage

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"larkmcp/internal/domain"
)

// Endpoint is a parsed storage endpoint.
type Endpoint struct {
	Host   string
	Secure bool
	Region string
	// VirtualHost is set for providers that only accept bucket-in-hostname requests.
	VirtualHost bool
}

// ParseEndpoint accepts "host", "host:port" or a full URL. Without a scheme TLS is assumed.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("empty endpoint")
	}
	ep := Endpoint{Secure: true}
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Endpoint{}, fmt.Errorf("parse endpoint: %w", err)
		}
		switch u.Scheme {
		case "http":
			ep.Secure = false
		case "https":
		default:
			return Endpoint{}, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
		}
		raw = u.Host
	}
	ep.Host = strings.TrimRight(raw, "/")
	if ep.Host == "" {
		return Endpoint{}, fmt.Errorf("endpoint has no host")
	}
	hostname := ep.Host
	if h, _, ok := strings.Cut(hostname, ":"); ok {
		hostname = h
	}
	if strings.HasSuffix(hostname, ".aliyuncs.com") {
		ep.VirtualHost = true
		ep.Region = strings.TrimSuffix(strings.TrimSuffix(hostname, ".aliyuncs.com"), "-internal")
	}
	return ep, nil
}

// localPathFor maps an object key under rootDir. Keys that would escape rootDir are rejected.
func localPathFor(rootDir, key string) (string, error) {
	if rootDir == "" {
		rootDir = "."
	}
	dest := filepath.Join(rootDir, filepath.FromSlash(strings.TrimLeft(key, "/")))
	rel, err := filepath.Rel(rootDir, dest)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes %s", key, rootDir)
	}
	return dest, nil
}

// keyFor builds the object key for a file found at rel (slash or OS separated) under prefix.
func keyFor(prefix, rel string) string {
	rel = filepath.ToSlash(rel)
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// dirPrefix normalizes a listing prefix to end in "/" unless it is empty.
func dirPrefix(prefix string) string {
	prefix = strings.TrimLeft(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// relativeKey strips prefix from key for placement under a local directory.
func relativeKey(prefix, key string) string {
	return strings.TrimLeft(strings.TrimPrefix(key, prefix), "/")
}

// childEntries turns a flat key list into the immediate children of prefix.
// Directories come first, then files; each group is naturally sorted when sorted is set.
func childEntries(prefix string, keys []string, sorted bool) []domain.DirEntry {
	prefix = dirPrefix(prefix)
	seen := map[string]bool{}
	var dirs, files []domain.DirEntry
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if rest == k && prefix != "" || rest == "" {
			continue
		}
		name, _, isDir := strings.Cut(rest, "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		if isDir {
			dirs = append(dirs, domain.DirEntry{Name: name, IsDir: true})
		} else {
			files = append(files, domain.DirEntry{Name: name})
		}
	}
	if sorted {
		sort.SliceStable(dirs, func(i, j int) bool { return natural.Less(dirs[i].Name, dirs[j].Name) })
		sort.SliceStable(files, func(i, j int) bool { return natural.Less(files[i].Name, files[j].Name) })
	}
	return append(dirs, files...)
}
