// Package utils fetches remote assets and caches them on disk.
package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
)

var ErrNotFound = errors.New("file not found on server")

type progressWriter struct {
	io.Writer
	total uint64
	last  uint64
	label string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.total += uint64(n)
	if pw.total-pw.last > 5*1024*1024 { // Log every 5MB
		log.Printf("%s: Downloaded %d MB", pw.label, pw.total/1024/1024)
		pw.last = pw.total
	}
	return n, err
}

// IsURL reports whether source should be fetched over HTTP rather than read from disk.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// FetchURL downloads url into memory.
func FetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var buf bytes.Buffer
	pw := &progressWriter{Writer: &buf, label: CacheKey(url, "")}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CacheKey returns the store key for a source and logPrefix.
func CacheKey(source, logPrefix string) string {
	parts := strings.Split(source, "/")
	name := parts[len(parts)-1]

	// Include sanitized logPrefix in the key to prevent collisions between datasets
	sanitizedPrefix := strings.Trim(logPrefix, "[]")
	sanitizedPrefix = strings.ReplaceAll(sanitizedPrefix, " ", "_")
	if sanitizedPrefix != "" {
		name = sanitizedPrefix + "_" + name
	}
	return name + "@" + source
}

// GetCachedReader returns a reader for source. Local paths are opened directly.
// URLs are served from store when present, otherwise downloaded and stored.
// A nil store streams the response body.
func GetCachedReader(ctx context.Context, source string, store *AssetStore, logPrefix string) (io.ReadCloser, error) {
	if !IsURL(source) {
		log.Printf("%s Reading %s", logPrefix, source)
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", source, err)
		}
		return f, nil
	}

	if store != nil {
		key := CacheKey(source, logPrefix)
		data, err := store.Get(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read cache: %w", err)
		}
		if data != nil {
			log.Printf("%s Using cached copy of %s", logPrefix, source)
			return io.NopCloser(bytes.NewReader(data)), nil
		}
		log.Printf("%s Downloading %s", logPrefix, source)
		data, err = FetchURL(ctx, source)
		if err != nil {
			return nil, err // Return the error directly so caller can see ErrNotFound
		}
		if err := store.Put(key, data); err != nil {
			log.Printf("%s Failed to cache %s: %v", logPrefix, source, err)
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	log.Printf("%s Streaming from %s", logPrefix, source)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
	return resp.Body, nil
}

// EvictCached drops the cached copy of source so the next read downloads it again.
// It does nothing for local files or a nil store.
func EvictCached(source string, store *AssetStore, logPrefix string) error {
	if store == nil || !IsURL(source) {
		return nil
	}
	log.Printf("%s Evicting cached copy of %s", logPrefix, source)
	return store.Delete(CacheKey(source, logPrefix))
}

// ReadSource reads all of source through GetCachedReader.
func ReadSource(ctx context.Context, source string, store *AssetStore, logPrefix string) ([]byte, error) {
	r, err := GetCachedReader(ctx, source, store, logPrefix)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Printf("Error closing %s: %v", source, err)
		}
	}()
	return io.ReadAll(r)
}
