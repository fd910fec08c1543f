package objects

import (
	"context"
	"fmt"
	"strings"

	"github.com/damacus/iron-drawer/internal/errs"
	"github.com/damacus/iron-drawer/internal/keys"
	"github.com/damacus/iron-drawer/internal/logger"
	"github.com/damacus/iron-drawer/internal/metadata"
	"github.com/damacus/iron-drawer/internal/metrics"
	"github.com/damacus/iron-drawer/internal/objectstore"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// mapConcurrency bounds the per-listing metadata calls in flight.
const mapConcurrency = 8

// Mapper turns listings of one bucket into Records.
type Mapper struct {
	client       objectstore.Client
	bucket       string
	meta         *metadata.Adapter
	newID        func() string
	withMetadata bool
	log          *logger.Logger
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithIDGenerator replaces uuid.NewString for synthesized ids.
func WithIDGenerator(fn func() string) Option {
	return func(m *Mapper) { m.newID = fn }
}

// WithListMetadata asks the store to include user metadata in listings so
// files that already carry an id need no extra call.
func WithListMetadata(enabled bool) Option {
	return func(m *Mapper) { m.withMetadata = enabled }
}

func NewMapper(client objectstore.Client, bucket string, log *logger.Logger, opts ...Option) *Mapper {
	m := &Mapper{
		client: client,
		bucket: bucket,
		meta:   metadata.NewAdapter(client, bucket, log),
		newID:  uuid.NewString,
		log:    log.Component("mapper"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MapFile builds the Record for a file entry listed at location. Files
// without an id get one, and a missing upload date is taken from the last
// modification time; both are persisted before the record is returned.
func (m *Mapper) MapFile(ctx context.Context, location string, entry objectstore.Entry) (Record, error) {
	md := metadata.Metadata(entry.Metadata)
	if md.ID() == "" {
		var err error
		md, err = m.ensureMetadata(ctx, entry)
		if err != nil {
			return Record{}, err
		}
	}

	name := keys.Name(entry.Key)
	rec := Record{
		ID:           md.ID(),
		Name:         name,
		Location:     keys.NormalizeLocation(location),
		Extension:    Extension(name),
		Size:         entry.Size,
		LastModified: entry.LastModified,
		VersionID:    entry.VersionID,
		ETag:         entry.ETag,
		Owner:        entry.Owner,
		Raw:          entry,
	}
	if uploaded, ok := md.UploadDate(); ok {
		rec.UploadDate = uploaded
	}
	return rec, nil
}

func (m *Mapper) ensureMetadata(ctx context.Context, entry objectstore.Entry) (metadata.Metadata, error) {
	md, err := m.meta.Read(ctx, entry.Key)
	if err != nil {
		return nil, errs.Wrap(kindOr(err, errs.ErrKindStorageFailed), fmt.Sprintf("failed to read metadata of %q", entry.Key), err)
	}
	if md.ID() != "" {
		if _, ok := md[metadata.KeyUploadDate]; ok {
			return md, nil
		}
	}

	md = md.Clone()
	if md.ID() == "" {
		md[metadata.KeyID] = m.newID()
	}
	if _, ok := md[metadata.KeyUploadDate]; !ok {
		md[metadata.KeyUploadDate] = metadata.FormatTime(entry.LastModified)
	}

	if !m.meta.Write(ctx, entry.Key, md) {
		metrics.MetadataSynthesized.WithLabelValues("failed").Inc()
		return nil, errs.New(errs.ErrKindMetadataFailed, fmt.Sprintf("failed to persist metadata of %q", entry.Key))
	}
	metrics.MetadataSynthesized.WithLabelValues("persisted").Inc()
	m.log.With().Str("key", entry.Key).Str("id", md.ID()).Logger().Debug("metadata synthesized")
	return md, nil
}

// MapFolder builds the Record for the folder whose marker key is prefix.
// Folders implied only by deeper keys have no marker; they map with zero
// size and times.
func (m *Mapper) MapFolder(ctx context.Context, location, prefix string) (Record, error) {
	entry, err := m.client.HeadObject(ctx, m.bucket, prefix)
	if err != nil {
		if !errs.IsNotFound(err) {
			return Record{}, errs.Wrap(kindOr(err, errs.ErrKindStorageFailed), fmt.Sprintf("failed to read folder %q", prefix), err)
		}
		entry = objectstore.Entry{}
	}
	entry.Key = prefix

	return Record{
		Name:         keys.Name(prefix),
		Location:     keys.NormalizeLocation(location),
		Size:         entry.Size,
		LastModified: entry.LastModified,
		VersionID:    entry.VersionID,
		ETag:         entry.ETag,
		Owner:        entry.Owner,
		IsFolder:     true,
		Raw:          entry,
	}, nil
}

// List returns the folders then the files directly inside location. Any
// mapping failure fails the whole listing.
func (m *Mapper) List(ctx context.Context, location string) ([]Record, error) {
	location = keys.NormalizeLocation(location)
	prefix := keys.Prefix(location)

	res, err := m.client.ListObjects(ctx, m.bucket, objectstore.ListOptions{
		Prefix:       prefix,
		WithMetadata: m.withMetadata,
	})
	if err != nil {
		return nil, errs.Wrap(kindOr(err, errs.ErrKindStorageFailed), fmt.Sprintf("failed to list %q", location), err)
	}

	var files []objectstore.Entry
	for _, obj := range res.Objects {
		// the folder's own marker
		if obj.Key == prefix {
			continue
		}
		files = append(files, obj)
	}

	records := make([]Record, len(res.CommonPrefixes)+len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mapConcurrency)
	for i, p := range res.CommonPrefixes {
		g.Go(func() error {
			rec, err := m.MapFolder(gctx, location, p)
			records[i] = rec
			return err
		})
	}
	offset := len(res.CommonPrefixes)
	for i, f := range files {
		g.Go(func() error {
			rec, err := m.MapFile(gctx, location, f)
			records[offset+i] = rec
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// ListAll returns every record under location, each level followed by the
// contents of its folders.
func (m *Mapper) ListAll(ctx context.Context, location string) ([]Record, error) {
	records, err := m.List(ctx, location)
	if err != nil {
		return nil, err
	}
	all := records
	for _, rec := range records {
		if !rec.IsFolder {
			continue
		}
		sub, err := m.ListAll(ctx, keys.ToKey(rec.Location, rec.Name, false))
		if err != nil {
			return nil, err
		}
		all = append(all, sub...)
	}
	return all, nil
}

// Search returns every record in the bucket whose name contains query,
// ignoring case. An empty query matches nothing.
func (m *Mapper) Search(ctx context.Context, query string) ([]Record, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	all, err := m.ListAll(ctx, "")
	if err != nil {
		return nil, err
	}
	var results []Record
	for _, rec := range all {
		if strings.Contains(strings.ToLower(rec.Name), q) {
			results = append(results, rec)
		}
	}
	return results, nil
}

// Stat maps the single file name inside location.
func (m *Mapper) Stat(ctx context.Context, location, name string) (Record, error) {
	location = keys.NormalizeLocation(location)
	key := keys.ToKey(location, name, false)
	entry, err := m.client.HeadObject(ctx, m.bucket, key)
	if err != nil {
		return Record{}, errs.Wrap(kindOr(err, errs.ErrKindStorageFailed), fmt.Sprintf("failed to stat %q", key), err)
	}
	entry.Key = key
	return m.MapFile(ctx, location, entry)
}

// Lookup maps the record stored at key, file or folder.
func (m *Mapper) Lookup(ctx context.Context, key string) (Record, error) {
	if strings.HasSuffix(key, keys.Delimiter) {
		return m.MapFolder(ctx, keys.Parent(key), key)
	}
	return m.Stat(ctx, keys.Parent(key), keys.Name(key))
}

func kindOr(err error, fallback errs.ErrKind) errs.ErrKind {
	if k := errs.KindOf(err); k != errs.ErrKindUnknown {
		return k
	}
	return fallback
}
