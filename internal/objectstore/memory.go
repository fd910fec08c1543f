package objectstore

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/damacus/iron-drawer/internal/errs"
)

// MemoryStore is an in-process Client. It follows S3 listing semantics
// closely enough for the browser to run against it without a server.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*memObject
	now     func() time.Time
	// signingKey signs presigned links; it lives as long as the process.
	signingKey []byte
}

type memObject struct {
	data         []byte
	contentType  string
	metadata     map[string]string
	lastModified time.Time
	etag         string
}

// NewMemoryStore creates an empty store. Buckets are created on first write.
func NewMemoryStore() *MemoryStore {
	key := make([]byte, 32)
	// crypto/rand.Read never returns an error
	_, _ = rand.Read(key)
	return &MemoryStore{
		buckets:    make(map[string]map[string]*memObject),
		now:        time.Now,
		signingKey: key,
	}
}

// SetClock replaces the time source used for LastModified.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) ListObjects(ctx context.Context, bucket string, opts ListOptions) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, errs.Wrap(errs.ErrKindTimeout, "list cancelled", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects := s.buckets[bucket]
	keys := make([]string, 0, len(objects))
	for key := range objects {
		if strings.HasPrefix(key, opts.Prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var result ListResult
	seen := make(map[string]bool)
	for _, key := range keys {
		if !opts.Recursive {
			rest := key[len(opts.Prefix):]
			// the prefix's own marker has an empty rest and is listed as an object
			if idx := strings.Index(rest, "/"); idx >= 0 {
				common := opts.Prefix + rest[:idx+1]
				if !seen[common] {
					seen[common] = true
					result.CommonPrefixes = append(result.CommonPrefixes, common)
				}
				continue
			}
		}
		entry := objects[key].entry(key)
		if !opts.WithMetadata {
			entry.Metadata = nil
		}
		result.Objects = append(result.Objects, entry)
	}
	return result, nil
}

func (s *MemoryStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.lookup(bucket, key)
	if err != nil {
		return nil, Entry{}, err
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.entry(key), nil
}

func (s *MemoryStore) HeadObject(ctx context.Context, bucket, key string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.lookup(bucket, key)
	if err != nil {
		return Entry{}, err
	}
	return obj.entry(key), nil
}

func (s *MemoryStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts PutOptions) (Entry, error) {
	buf := &bytes.Buffer{}
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(buf, body); err != nil {
		return Entry{}, errs.Wrap(errs.ErrKindStorageFailed, "failed to read object data", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj := &memObject{
		data:         buf.Bytes(),
		contentType:  opts.ContentType,
		metadata:     normalizeMetadata(opts.Metadata),
		lastModified: s.now().UTC(),
	}
	obj.etag = etagOf(obj.data)
	s.bucket(bucket)[key] = obj
	return obj.entry(key), nil
}

func (s *MemoryStore) CopyObject(ctx context.Context, bucket, src, dst string, opts CopyOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.lookup(bucket, src)
	if err != nil {
		return err
	}
	metadata := cloneMetadata(obj.metadata)
	if opts.ReplaceMetadata {
		metadata = normalizeMetadata(opts.Metadata)
	}
	s.bucket(bucket)[dst] = &memObject{
		data:         obj.data,
		contentType:  obj.contentType,
		metadata:     metadata,
		lastModified: s.now().UTC(),
		etag:         obj.etag,
	}
	return nil
}

// DeleteObject removes key. Missing keys are not an error, as in S3.
func (s *MemoryStore) DeleteObject(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets[bucket], key)
	return nil
}

func (s *MemoryStore) DeleteObjects(ctx context.Context, bucket string, keys []string) []DeleteError {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.buckets[bucket], key)
	}
	return nil
}

// Keys returns every key in bucket, sorted.
func (s *MemoryStore) Keys(bucket string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.buckets[bucket]))
	for key := range s.buckets[bucket] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Presigner returns a PresignFunc whose URLs are served by s under baseURL.
// Mount s (it is an http.Handler) at that base. Each URL carries an
// HMAC-SHA256 signature over bucket, key and expiry.
func (s *MemoryStore) Presigner(baseURL string) PresignFunc {
	base := strings.TrimSuffix(baseURL, "/")
	return func(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
		s.mu.RLock()
		_, err := s.lookup(bucket, key)
		now := s.now()
		s.mu.RUnlock()
		if err != nil {
			return "", err
		}
		u := url.URL{Path: "/" + bucket + "/" + key}
		expires := strconv.FormatInt(now.Add(expiry).Unix(), 10)
		q := url.Values{}
		q.Set("expires", expires)
		q.Set("signature", s.sign(bucket, key, expires))
		return base + u.EscapedPath() + "?" + q.Encode(), nil
	}
}

// ServeHTTP serves presigned GETs issued by Presigner.
func (s *MemoryStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if !ok || key == "" {
		http.NotFound(w, r)
		return
	}
	query := r.URL.Query()
	rawExpires := query.Get("expires")
	if !s.verify(bucket, key, rawExpires, query.Get("signature")) {
		http.Error(w, "signature does not match", http.StatusForbidden)
		return
	}
	expires, err := strconv.ParseInt(rawExpires, 10, 64)
	s.mu.RLock()
	now := s.now()
	obj, lookupErr := s.lookup(bucket, key)
	s.mu.RUnlock()
	if err != nil || now.Unix() > expires {
		http.Error(w, "request has expired", http.StatusForbidden)
		return
	}
	if lookupErr != nil {
		http.NotFound(w, r)
		return
	}
	if obj.contentType != "" {
		w.Header().Set("Content-Type", obj.contentType)
	}
	w.Header().Set("ETag", obj.etag)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(obj.data)
	}
}

func (s *MemoryStore) sign(bucket, key, expires string) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(bucket + "/" + key + "\n" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *MemoryStore) verify(bucket, key, expires, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(s.sign(bucket, key, expires))
	return hmac.Equal(got, want)
}

func (s *MemoryStore) lookup(bucket, key string) (*memObject, error) {
	obj, ok := s.buckets[bucket][key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("object %q not found in bucket %q", key, bucket))
	}
	return obj, nil
}

func (s *MemoryStore) bucket(name string) map[string]*memObject {
	b, ok := s.buckets[name]
	if !ok {
		b = make(map[string]*memObject)
		s.buckets[name] = b
	}
	return b
}

func (o *memObject) entry(key string) Entry {
	return Entry{
		Key:          key,
		Size:         int64(len(o.data)),
		LastModified: o.lastModified,
		ETag:         o.etag,
		ContentType:  o.contentType,
		Metadata:     cloneMetadata(o.metadata),
	}
}

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func normalizeMetadata(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[NormalizeMetadataKey(k)] = v
	}
	return out
}

func cloneMetadata(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// NormalizeMetadataKey lower-cases a user metadata key and strips the
// x-amz-meta- header prefix.
func NormalizeMetadataKey(key string) string {
	key = strings.ToLower(key)
	return strings.TrimPrefix(key, "x-amz-meta-")
}
