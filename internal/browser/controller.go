// Package browser holds the state and actions of one mounted file browser:
// navigation, listing snapshots and the create, rename, delete, upload and
// download verbs.
package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/damacus/iron-drawer/internal/errs"
	"github.com/damacus/iron-drawer/internal/events"
	"github.com/damacus/iron-drawer/internal/keys"
	"github.com/damacus/iron-drawer/internal/logger"
	"github.com/damacus/iron-drawer/internal/metadata"
	"github.com/damacus/iron-drawer/internal/models"
	"github.com/damacus/iron-drawer/internal/objects"
	"github.com/damacus/iron-drawer/internal/objectstore"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Options wires a Controller to its collaborators.
type Options struct {
	Client        objectstore.Client
	Bucket        string
	Label         string
	Mapper        *objects.Mapper
	Presign       objectstore.PresignFunc
	PresignExpiry time.Duration
	Bus           *events.Bus
	Permissions   Permissions
	// HTTP fetches presigned URLs for downloads.
	HTTP *resty.Client
	Log  *logger.Logger

	// NewID and Now are replaced in tests.
	NewID func() string
	Now   func() time.Time
}

// Snapshot is a copy of the controller's view state.
type Snapshot struct {
	Path       string
	Records    []objects.Record
	Loading    bool
	Selected   string
	Generation uint64
}

// Controller is the state machine behind one browser widget. It is safe for
// concurrent use; storage calls run outside the lock.
type Controller struct {
	client  objectstore.Client
	bucket  string
	label   string
	mapper  *objects.Mapper
	presign objectstore.PresignFunc
	expiry  time.Duration
	bus     *events.Bus
	perms   Permissions
	http    *resty.Client
	log     *logger.Logger
	newID   func() string
	now     func() time.Time

	mu      sync.Mutex
	path    string
	records []objects.Record
	names   map[string]bool
	// listed is the location records were listed from; loaded is false
	// until the first listing lands.
	listed     string
	loaded     bool
	loading    bool
	selected   string
	sort       Sort
	generation uint64
}

func NewController(opts Options) *Controller {
	c := &Controller{
		client:  opts.Client,
		bucket:  opts.Bucket,
		label:   opts.Label,
		mapper:  opts.Mapper,
		presign: opts.Presign,
		expiry:  opts.PresignExpiry,
		bus:     opts.Bus,
		perms:   opts.Permissions,
		http:    opts.HTTP,
		log:     opts.Log,
		newID:   opts.NewID,
		now:     opts.Now,
		names:   make(map[string]bool),
	}
	if c.label == "" {
		c.label = c.bucket
	}
	if c.expiry <= 0 {
		c.expiry = 60 * time.Second
	}
	if c.http == nil {
		c.http = resty.New().SetTimeout(5 * time.Minute)
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	if c.bus == nil {
		c.bus = events.NewBus(c.log)
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.log = c.log.Component("browser")
	return c
}

// Permissions returns the permissions the controller enforces.
func (c *Controller) Permissions() Permissions { return c.perms }

// Label is the bucket name shown to the user.
func (c *Controller) Label() string { return c.label }

// Bus is the widget's event bus.
func (c *Controller) Bus() *events.Bus { return c.bus }

// Navigate makes path current and lists it. If another Navigate or Refresh
// starts before this listing returns, its result is discarded. A failed
// listing puts the previous path back so path and records stay paired.
func (c *Controller) Navigate(ctx context.Context, path string) error {
	path = keys.NormalizeLocation(path)

	c.mu.Lock()
	prev, prevSelected := c.path, c.selected
	if c.path != path {
		c.selected = ""
	}
	c.path = path
	c.generation++
	gen := c.generation
	c.loading = true
	c.mu.Unlock()

	records, err := c.mapper.List(ctx, path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.log.With().Str("path", path).Logger().Debug("discarding stale listing")
		return nil
	}
	c.loading = false
	if err != nil {
		c.path, c.selected = prev, prevSelected
		return err
	}
	c.records = records
	c.names = make(map[string]bool, len(records))
	for _, rec := range records {
		c.names[strings.ToLower(rec.Name)] = true
	}
	c.listed, c.loaded = path, true
	return nil
}

// Refresh re-lists the current path.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	path := c.path
	c.mu.Unlock()
	return c.Navigate(ctx, path)
}

// Snapshot returns the current view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Path:       c.path,
		Records:    sortRecords(c.records, c.sort),
		Loading:    c.loading,
		Selected:   c.selected,
		Generation: c.generation,
	}
}

// Path is the current location.
func (c *Controller) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Select marks key as the selected record. An empty key clears it.
func (c *Controller) Select(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = key
}

// Lookup returns the record stored at key, from the current listing when
// it is there and from the store otherwise.
func (c *Controller) Lookup(ctx context.Context, key string) (objects.Record, error) {
	if key == "" {
		return objects.Record{}, errs.New(errs.ErrKindInvalidInput, "key is required")
	}
	c.mu.Lock()
	for _, rec := range c.records {
		if rec.StorageKey() == key {
			c.mu.Unlock()
			return rec, nil
		}
	}
	c.mu.Unlock()
	return c.mapper.Lookup(ctx, key)
}

// Breadcrumbs returns the bucket root followed by one crumb per segment of
// the current path.
func (c *Controller) Breadcrumbs() []models.Breadcrumb {
	path := c.Path()
	crumbs := []models.Breadcrumb{{Name: c.label, Path: ""}}
	segments := keys.Segments(path)
	for i, seg := range segments {
		crumbs = append(crumbs, models.Breadcrumb{
			Name: seg,
			Path: strings.Join(segments[:i+1], keys.Delimiter),
		})
	}
	return crumbs
}

// Search matches names across the whole bucket.
func (c *Controller) Search(ctx context.Context, query string) ([]objects.Record, error) {
	return c.mapper.Search(ctx, query)
}

// siblings returns the lower-cased names directly inside location. The
// current listing answers when it is of location; any other location is
// read from the store.
func (c *Controller) siblings(ctx context.Context, location string) (map[string]bool, error) {
	c.mu.Lock()
	if c.loaded && c.listed == location {
		names := make(map[string]bool, len(c.names))
		for name := range c.names {
			names[name] = true
		}
		c.mu.Unlock()
		return names, nil
	}
	c.mu.Unlock()

	prefix := keys.Prefix(location)
	res, err := c.client.ListObjects(ctx, c.bucket, objectstore.ListOptions{Prefix: prefix})
	if err != nil {
		return nil, errs.Wrap(kindOr(err, errs.ErrKindStorageFailed), fmt.Sprintf("failed to list %q", location), err)
	}
	names := make(map[string]bool, len(res.Objects)+len(res.CommonPrefixes))
	for _, obj := range res.Objects {
		if obj.Key != prefix {
			names[strings.ToLower(keys.Name(obj.Key))] = true
		}
	}
	for _, p := range res.CommonPrefixes {
		names[strings.ToLower(keys.Name(p))] = true
	}
	return names, nil
}

// validateNewName checks name for a new entry in location.
func (c *Controller) validateNewName(ctx context.Context, location, name string) error {
	if name == "" {
		return checkName(name, nil)
	}
	existing, err := c.siblings(ctx, location)
	if err != nil {
		return err
	}
	return checkName(name, existing)
}

func checkName(name string, existing map[string]bool) error {
	if name == "" {
		return errs.New(errs.ErrKindInvalidInput, "Name cannot be empty")
	}
	if existing[strings.ToLower(name)] {
		return errs.New(errs.ErrKindConflict, fmt.Sprintf("A file or folder named %q already exists", name))
	}
	if err := keys.ValidateName(name); err != nil {
		var ne *keys.NameError
		if errors.As(err, &ne) {
			return errs.Wrap(errs.ErrKindInvalidInput, "Invalid name: "+ne.Reason, err)
		}
		return errs.Wrap(errs.ErrKindInvalidInput, "Invalid name", err)
	}
	return nil
}

// CreateFolder puts a zero-byte marker for name in the current path.
func (c *Controller) CreateFolder(ctx context.Context, name string) error {
	if err := c.perms.check(ActionCreateFolder); err != nil {
		return err
	}
	location := c.Path()
	if err := c.validateNewName(ctx, location, name); err != nil {
		return err
	}

	key := keys.ToKey(location, name, true)
	if _, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(nil), 0, objectstore.PutOptions{}); err != nil {
		return errs.Wrap(kindOr(err, errs.ErrKindStorageFailed), fmt.Sprintf("failed to create folder %q", name), err)
	}
	c.log.With().Str("key", key).Logger().Info("folder created")
	return c.Refresh(ctx)
}

// BatchResult tallies the keys a multi-object operation handled.
type BatchResult struct {
	Done   []string
	Failed []string
}

// Rename moves rec to newName in its own location, which need not be the
// current path. Folders are renamed by
// copying every key under them and then deleting the originals. It is not
// atomic: a copy failure stops the loop and leaves the copies already made
// in place with every original untouched.
func (c *Controller) Rename(ctx context.Context, rec objects.Record, newName string) (BatchResult, error) {
	var result BatchResult
	if err := c.perms.check(ActionRename); err != nil {
		return result, err
	}
	if err := c.validateNewName(ctx, rec.Location, newName); err != nil {
		return result, err
	}

	src := rec.StorageKey()
	dst := keys.ToKey(rec.Location, newName, rec.IsFolder)

	var err error
	if rec.IsFolder {
		result, err = c.renameFolder(ctx, src, dst)
	} else {
		result, err = c.renameFile(ctx, src, dst)
	}
	if err != nil {
		c.refreshQuietly(ctx)
		return result, err
	}

	updated, lerr := c.mapper.Lookup(ctx, dst)
	if lerr != nil {
		c.log.WarnWith("renamed object could not be read back", lerr, map[string]interface{}{"key": dst})
		updated = rec
		updated.Name = newName
		updated.Raw = objectstore.Entry{Key: dst}
	}
	_ = c.bus.Trigger(ctx, events.ObjectUpdated, events.Updated{Old: rec, New: updated})
	c.log.With().Str("from", src).Str("to", dst).Logger().Info("object renamed")
	return result, c.Refresh(ctx)
}

func (c *Controller) renameFile(ctx context.Context, src, dst string) (BatchResult, error) {
	var result BatchResult
	if err := c.client.CopyObject(ctx, c.bucket, src, dst, objectstore.CopyOptions{}); err != nil {
		result.Failed = append(result.Failed, src)
		return result, errs.Wrap(kindOr(err, errs.ErrKindStorageFailed), fmt.Sprintf("failed to copy %q", src), err)
	}
	if err := c.client.DeleteObject(ctx, c.bucket, src); err != nil {
		result.Failed = append(result.Failed, src)
		return result, errs.Wrap(kindOr(err, errs.ErrKindStorageFailed), fmt.Sprintf("failed to remove %q after copy", src), err)
	}
	result.Done = append(result.Done, src)
	return result, nil
}

func (c *Controller) renameFolder(ctx context.Context, src, dst string) (BatchResult, error) {
	var result BatchResult
	entries, err := c.listUnder(ctx, src, false)
	if err != nil {
		return result, err
	}
	keyList := entryKeys(entries)

	for i, key := range keyList {
		target := dst + strings.TrimPrefix(key, src)
		if err := c.client.CopyObject(ctx, c.bucket, key, target, objectstore.CopyOptions{}); err != nil {
			result.Failed = append(result.Failed, keyList[i:]...)
			return result, errs.Wrap(kindOr(err, errs.ErrKindStorageFailed),
				fmt.Sprintf("rename stopped after %d of %d objects at %q", i, len(keyList), key), err)
		}
	}

	failed := c.client.DeleteObjects(ctx, c.bucket, keyList)
	result.Done, result.Failed = partition(keyList, failed)
	if len(failed) > 0 {
		return result, errs.Wrap(errs.ErrKindStorageFailed,
			fmt.Sprintf("copied %d objects but failed to remove %d originals", len(keyList), len(failed)), failed[0].Err)
	}
	return result, nil
}

// Delete removes rec. Folders lose every key under them in one batch call,
// and the deleted event lists the files that went with them.
func (c *Controller) Delete(ctx context.Context, rec objects.Record) (BatchResult, error) {
	var result BatchResult
	if err := c.perms.check(ActionDelete); err != nil {
		return result, err
	}

	key := rec.StorageKey()
	var (
		err      error
		contents []objects.Record
	)
	if rec.IsFolder {
		var entries []objectstore.Entry
		entries, err = c.listUnder(ctx, key, true)
		if err == nil {
			keyList := entryKeys(entries)
			failed := c.client.DeleteObjects(ctx, c.bucket, keyList)
			result.Done, result.Failed = partition(keyList, failed)
			contents = removedFiles(entries, result.Done)
			if len(failed) > 0 {
				err = errs.Wrap(errs.ErrKindStorageFailed,
					fmt.Sprintf("failed to delete %d of %d objects", len(failed), len(keyList)), failed[0].Err)
			}
		}
	} else {
		if derr := c.client.DeleteObject(ctx, c.bucket, key); derr != nil {
			result.Failed = append(result.Failed, key)
			err = errs.Wrap(kindOr(derr, errs.ErrKindStorageFailed), fmt.Sprintf("failed to delete %q", key), derr)
		} else {
			result.Done = append(result.Done, key)
		}
	}

	if err != nil {
		c.refreshQuietly(ctx)
		return result, err
	}
	_ = c.bus.Trigger(ctx, events.ObjectDeleted, events.Deleted{Object: rec, Contents: contents})
	c.log.With().Str("key", key).Int("objects", len(result.Done)).Logger().Info("object deleted")
	return result, c.Refresh(ctx)
}

// Download streams the bytes of rec to w through a presigned URL.
func (c *Controller) Download(ctx context.Context, rec objects.Record, w io.Writer) (int64, error) {
	if err := c.perms.check(ActionDownload); err != nil {
		return 0, err
	}
	if rec.IsFolder {
		return 0, errs.New(errs.ErrKindInvalidInput, "Folders cannot be downloaded")
	}
	if c.presign == nil {
		return 0, errs.New(errs.ErrKindStorageFailed, "no presigner configured")
	}

	key := rec.StorageKey()
	link, err := c.presign(ctx, c.bucket, key, c.expiry)
	if err != nil {
		return 0, errs.Wrap(kindOr(err, errs.ErrKindStorageFailed), fmt.Sprintf("failed to presign %q", key), err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(link)
	if err != nil {
		return 0, errs.Wrap(errs.ErrKindConnectionFailed, fmt.Sprintf("failed to fetch %q", key), err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return 0, errs.New(errs.ErrKindNotFound, fmt.Sprintf("%q no longer exists", key))
	case resp.StatusCode() >= 300:
		return 0, errs.New(errs.ErrKindStorageFailed, fmt.Sprintf("fetching %q returned %s", key, resp.Status()))
	}

	n, err := io.Copy(w, body)
	if err != nil {
		return n, errs.Wrap(errs.ErrKindConnectionFailed, fmt.Sprintf("download of %q interrupted", key), err)
	}
	return n, nil
}

// listUnder returns every entry under the folder prefix, marker included.
func (c *Controller) listUnder(ctx context.Context, prefix string, withMetadata bool) ([]objectstore.Entry, error) {
	res, err := c.client.ListObjects(ctx, c.bucket, objectstore.ListOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: withMetadata,
	})
	if err != nil {
		return nil, errs.Wrap(kindOr(err, errs.ErrKindStorageFailed), fmt.Sprintf("failed to list %q", prefix), err)
	}
	return res.Objects, nil
}

func entryKeys(entries []objectstore.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key)
	}
	return out
}

// removedFiles returns records for the deleted entries that are files.
// Only the id and position are filled in.
func removedFiles(entries []objectstore.Entry, done []string) []objects.Record {
	gone := make(map[string]bool, len(done))
	for _, key := range done {
		gone[key] = true
	}
	var out []objects.Record
	for _, e := range entries {
		if !gone[e.Key] || strings.HasSuffix(e.Key, keys.Delimiter) {
			continue
		}
		out = append(out, objects.Record{
			ID:       metadata.Metadata(e.Metadata).ID(),
			Name:     keys.Name(e.Key),
			Location: keys.Parent(e.Key),
			Size:     e.Size,
			Raw:      e,
		})
	}
	return out
}

// refreshQuietly refreshes after a failed action; the action's error is
// the one reported.
func (c *Controller) refreshQuietly(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.log.WarnWith("refresh after failed action failed", err, nil)
	}
}

func partition(all []string, failed []objectstore.DeleteError) (done, notDone []string) {
	bad := make(map[string]bool, len(failed))
	for _, f := range failed {
		bad[f.Key] = true
		notDone = append(notDone, f.Key)
	}
	for _, key := range all {
		if !bad[key] {
			done = append(done, key)
		}
	}
	return done, notDone
}

func kindOr(err error, fallback errs.ErrKind) errs.ErrKind {
	if k := errs.KindOf(err); k != errs.ErrKindUnknown {
		return k
	}
	return fallback
}
