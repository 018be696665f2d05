// Package blobstore provides bucket/path addressed object storage for the
// portal: profile images live in buckets and are served back through public
// URLs. It defines the Store interface, in-memory and Postgres
// implementations, and Echo handlers for public downloads.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectTooLarge = errors.New("object exceeds maximum allowed size")
	ErrObjectExists   = errors.New("object already exists")
	ErrInvalidBucket  = errors.New("invalid bucket name")
	ErrInvalidPath    = errors.New("invalid object path")
)

// MaxObjectSize is the largest object any bucket accepts (50 MB).
const MaxObjectSize = 50 * 1024 * 1024

var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,62}$`)

// Object describes a stored object.
type Object struct {
	Bucket      string    `json:"bucket"`
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the contract for object storage backends.
type Store interface {
	Put(ctx context.Context, bucket, path, contentType string, content io.Reader) (*Object, error)
	Get(ctx context.Context, bucket, path string) (io.ReadCloser, *Object, error)
	Stat(ctx context.Context, bucket, path string) (*Object, error)
	Remove(ctx context.Context, bucket string, paths ...string) error
	List(ctx context.Context, bucket, prefix string, limit, offset int) ([]*Object, int, error)
}

// ValidateKey checks bucket and path before they reach a backend.
func ValidateKey(bucket, path string) error {
	if !bucketPattern.MatchString(bucket) {
		return ErrInvalidBucket
	}
	if path == "" || strings.HasPrefix(path, "/") || strings.Contains(path, "..") || strings.Contains(path, "\\") {
		return ErrInvalidPath
	}
	return nil
}

// readLimited reads content fully, enforcing MaxObjectSize.
func readLimited(content io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxObjectSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxObjectSize {
		return nil, "", ErrObjectTooLarge
	}
	h := sha256.Sum256(data)
	return data, fmt.Sprintf("%x", h), nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedObject struct {
	meta    Object
	content []byte
}

// MemoryStore is a thread-safe, in-memory Store for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*storedObject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*storedObject)}
}

func memKey(bucket, path string) string { return bucket + "/" + path }

// Put stores a new object. Existing keys are rejected; callers upload under
// fresh keys and remove the old object afterwards.
func (s *MemoryStore) Put(_ context.Context, bucket, path, contentType string, content io.Reader) (*Object, error) {
	if err := ValidateKey(bucket, path); err != nil {
		return nil, err
	}
	data, hash, err := readLimited(content)
	if err != nil {
		return nil, err
	}

	meta := Object{
		Bucket:      bucket,
		Path:        path,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        hash,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[memKey(bucket, path)]; exists {
		return nil, ErrObjectExists
	}
	s.objects[memKey(bucket, path)] = &storedObject{meta: meta, content: data}

	out := meta
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, bucket, path string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[memKey(bucket, path)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrObjectNotFound
	}
	meta := obj.meta
	return io.NopCloser(bytes.NewReader(obj.content)), &meta, nil
}

func (s *MemoryStore) Stat(_ context.Context, bucket, path string) (*Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[memKey(bucket, path)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	meta := obj.meta
	return &meta, nil
}

// Remove deletes the given paths. Missing paths are ignored.
func (s *MemoryStore) Remove(_ context.Context, bucket string, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		delete(s.objects, memKey(bucket, p))
	}
	return nil
}

// List returns objects in bucket whose path starts with prefix, ordered by
// path, plus the total match count.
func (s *MemoryStore) List(_ context.Context, bucket, prefix string, limit, offset int) ([]*Object, int, error) {
	s.mu.RLock()
	var matched []*Object
	for _, o := range s.objects {
		if o.meta.Bucket != bucket || !strings.HasPrefix(o.meta.Path, prefix) {
			continue
		}
		m := o.meta
		matched = append(matched, &m)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Path < matched[j].Path })

	total := len(matched)
	if limit <= 0 {
		limit = 100
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
