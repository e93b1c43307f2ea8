package store

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// publishedCacheControl lets CDNs cache artifacts briefly.
const publishedCacheControl = "public, max-age=300"

// GCSStore is a Cloud Storage-backed implementation of Store.
// Object writes are atomic: readers see the old or the new object, never a mix.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates a new GCSStore with the specified bucket and object prefix.
func NewGCS(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Get retrieves a value by key.
func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj := s.client.Bucket(s.bucket).Object(s.objectName(key, ".json"))
	reader, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// Set stores a value with the given key.
func (s *GCSStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithExtension(ctx, key, ".json", value)
}

// SetWithExtension stores raw bytes with a custom file extension.
func (s *GCSStore) SetWithExtension(ctx context.Context, key string, ext string, value []byte) error {
	obj := s.client.Bucket(s.bucket).Object(s.objectName(key, ext))
	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType(ext)
	if ext == ".json" {
		writer.CacheControl = publishedCacheControl
	}

	if _, err := writer.Write(value); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

// List returns the keys of all .json objects under the prefix, sorted.
func (s *GCSStore) List(ctx context.Context) ([]string, error) {
	q := &storage.Query{Prefix: s.objectPrefix()}
	it := s.client.Bucket(s.bucket).Objects(ctx, q)

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		name := strings.TrimPrefix(attrs.Name, s.objectPrefix())
		if strings.Contains(name, "/") || path.Ext(name) != ".json" {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) objectPrefix() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}

func (s *GCSStore) objectName(key, ext string) string {
	return s.objectPrefix() + strings.TrimPrefix(key, "/") + ext
}

func contentType(ext string) string {
	switch ext {
	case ".json":
		return "application/json; charset=utf-8"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
