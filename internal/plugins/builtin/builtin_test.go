package builtin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/damacus/iron-drawer/internal/events"
	"github.com/damacus/iron-drawer/internal/logger"
	"github.com/damacus/iron-drawer/internal/objects"
	"github.com/damacus/iron-drawer/internal/plugins"
	"github.com/labstack/echo/v4"
	"github.com/minio/madmin-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fixedPresign(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	return "https://s3.local/" + bucket + "/" + key + "?X-Amz-Expires=60&sig=abc", nil
}

func TestDocViewerDescribesItself(t *testing.T) {
	d := NewDocViewer(fixedPresign, "drawer", time.Minute)
	assert.Equal(t, "Document Viewer", d.Name())
	assert.Equal(t, "View images, PDFs, and Office Files", d.Description())
	assert.Len(t, d.FileExtensions(), 16)
	assert.NotContains(t, d.FileExtensions(), plugins.Wildcard)
}

func TestDocViewerRendersImage(t *testing.T) {
	d := NewDocViewer(fixedPresign, "drawer", time.Minute)
	html, err := d.View(context.Background(), objects.Record{Name: "cat.png", Location: "pics", Extension: "png"})
	require.NoError(t, err)
	assert.Contains(t, string(html), `<img`)
	assert.Contains(t, string(html), `https://s3.local/drawer/pics/cat.png`)
	assert.Contains(t, string(html), `alt="cat.png"`)
}

func TestDocViewerWrapsOfficeDocuments(t *testing.T) {
	d := NewDocViewer(fixedPresign, "drawer", time.Minute)
	html, err := d.View(context.Background(), objects.Record{Name: "plan.docx", Extension: "docx"})
	require.NoError(t, err)
	out := string(html)
	assert.Contains(t, out, `<iframe`)
	assert.Contains(t, out, OfficeViewerURL+"?src=")
	assert.Contains(t, out, url.QueryEscape("https://s3.local/drawer/plan.docx"))
}

func TestDocViewerPDFUsesPlainFrame(t *testing.T) {
	d := NewDocViewer(fixedPresign, "drawer", time.Minute)
	html, err := d.View(context.Background(), objects.Record{Name: "a.pdf", Extension: "pdf"})
	require.NoError(t, err)
	assert.Contains(t, string(html), `<iframe`)
	assert.NotContains(t, string(html), OfficeViewerURL)
}

func TestDocViewerPresignFailure(t *testing.T) {
	failing := func(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
		return "", errors.New("no credentials")
	}
	_, err := NewDocViewer(failing, "drawer", time.Minute).View(context.Background(), objects.Record{Name: "a.pdf", Extension: "pdf"})
	assert.Error(t, err)
}

func TestMemoryCommentStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCommentStore()

	require.NoError(t, s.Add(ctx, "a", Comment{ID: "1", Body: "first"}))
	require.NoError(t, s.Add(ctx, "a", Comment{ID: "2", Body: "second"}))
	require.NoError(t, s.Add(ctx, "b", Comment{ID: "3", Body: "other"}))

	thread, err := s.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, bodies(thread))

	require.NoError(t, s.Move(ctx, "a", "b"))
	thread, _ = s.List(ctx, "b")
	assert.Equal(t, []string{"other", "first", "second"}, bodies(thread))
	thread, _ = s.List(ctx, "a")
	assert.Empty(t, thread)

	require.NoError(t, s.Move(ctx, "missing", "c"))
	require.NoError(t, s.Drop(ctx, "b"))
	thread, _ = s.List(ctx, "b")
	assert.Empty(t, thread)
}

func TestRedisCommentStore(t *testing.T) {
	addr := os.Getenv("DRAWER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DRAWER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	s := NewRedisCommentStore(RedisOptions{Addr: addr})
	s.prefix = "drawer:test:" + time.Now().Format("150405.000000") + ":"
	defer s.Close()
	require.NoError(t, s.Ping(ctx))

	require.NoError(t, s.Add(ctx, "a", Comment{ID: "1", Body: "first", CreatedAt: time.Now().UTC()}))
	require.NoError(t, s.Add(ctx, "a", Comment{ID: "2", Body: "second"}))
	require.NoError(t, s.Move(ctx, "a", "b"))

	thread, err := s.List(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, bodies(thread))

	require.NoError(t, s.Move(ctx, "missing", "c"))
	require.NoError(t, s.Drop(ctx, "b"))
	thread, err = s.List(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, thread)
}

func bodies(thread []Comment) []string {
	out := make([]string, 0, len(thread))
	for _, c := range thread {
		out = append(out, c.Body)
	}
	return out
}

func TestCommentsAddValidates(t *testing.T) {
	c := NewComments(NewMemoryCommentStore(), logger.Nop())
	ctx := context.Background()

	_, err := c.Add(ctx, "", "me", "hi")
	assert.Error(t, err)
	_, err = c.Add(ctx, "id-1", "me", "   ")
	assert.Error(t, err)
	_, err = c.Add(ctx, "id-1", "me", strings.Repeat("x", maxCommentBytes+1))
	assert.Error(t, err)

	got, err := c.Add(ctx, "id-1", "", " hello ")
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", got.Author)
	assert.Equal(t, "hello", got.Body)
	assert.NotEmpty(t, got.ID)
}

func TestCommentsView(t *testing.T) {
	store := NewMemoryCommentStore()
	c := NewComments(store, logger.Nop())
	ctx := context.Background()
	_, err := c.Add(ctx, "id-1", "Ada", "<b>looks good</b>")
	require.NoError(t, err)

	html, err := c.View(ctx, objects.Record{ID: "id-1", Name: "a.txt"})
	require.NoError(t, err)
	assert.Contains(t, string(html), "Ada")
	assert.Contains(t, string(html), "&lt;b&gt;looks good&lt;/b&gt;")
	assert.Contains(t, string(html), `hx-post="/plugins/comments/id-1"`)

	html, err = c.View(ctx, objects.Record{Name: "docs", IsFolder: true})
	require.NoError(t, err)
	assert.Contains(t, string(html), "files only")
}

func TestCommentsFollowEvents(t *testing.T) {
	store := NewMemoryCommentStore()
	c := NewComments(store, logger.Nop())
	ctx := context.Background()
	_, _ = c.Add(ctx, "old", "a", "moved")
	_, _ = c.Add(ctx, "gone", "a", "dropped")

	bus := events.NewBus(logger.Nop())
	r := plugins.NewRegistry()
	require.NoError(t, r.Register(c))
	plugins.Subscribe(bus, r)

	require.NoError(t, bus.Trigger(ctx, events.ObjectUpdated, events.Updated{
		Old: objects.Record{ID: "old"}, New: objects.Record{ID: "new"},
	}))
	require.NoError(t, bus.Trigger(ctx, events.ObjectDeleted, events.Deleted{Object: objects.Record{ID: "gone"}}))

	thread, _ := store.List(ctx, "new")
	assert.Equal(t, []string{"moved"}, bodies(thread))
	thread, _ = store.List(ctx, "gone")
	assert.Empty(t, thread)

	assert.Error(t, bus.Trigger(ctx, events.ObjectDeleted, "not a payload"))
}

func TestCommentsDropThreadsInsideDeletedFolder(t *testing.T) {
	store := NewMemoryCommentStore()
	c := NewComments(store, logger.Nop())
	ctx := context.Background()
	_, _ = c.Add(ctx, "inner-a", "a", "first")
	_, _ = c.Add(ctx, "inner-b", "a", "second")
	_, _ = c.Add(ctx, "elsewhere", "a", "kept")

	bus := events.NewBus(logger.Nop())
	r := plugins.NewRegistry()
	require.NoError(t, r.Register(c))
	plugins.Subscribe(bus, r)

	require.NoError(t, bus.Trigger(ctx, events.ObjectDeleted, events.Deleted{
		Object: objects.Record{Name: "docs", IsFolder: true},
		Contents: []objects.Record{
			{ID: "inner-a", Name: "a.txt", Location: "docs"},
			{ID: "inner-b", Name: "b.txt", Location: "docs/sub"},
			{Name: "no-id.txt", Location: "docs"},
		},
	}))

	thread, _ := store.List(ctx, "inner-a")
	assert.Empty(t, thread)
	thread, _ = store.List(ctx, "inner-b")
	assert.Empty(t, thread)
	thread, _ = store.List(ctx, "elsewhere")
	assert.Equal(t, []string{"kept"}, bodies(thread))
}

func TestCommentsRoutes(t *testing.T) {
	c := NewComments(NewMemoryCommentStore(), logger.Nop())
	e := echo.New()
	c.Routes(e.Group("/plugins"))

	form := url.Values{"author": {"Ada"}, "body": {"Nice file"}}
	req := httptest.NewRequest(http.MethodPost, "/plugins/comments/id-9", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nice file")

	req = httptest.NewRequest(http.MethodPost, "/plugins/comments/id-9", strings.NewReader("body="))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/plugins/comments/id-9", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nice file")
}

type mockAdmin struct {
	mock.Mock
}

func (m *mockAdmin) DataUsageInfo(ctx context.Context) (madmin.DataUsageInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(madmin.DataUsageInfo), args.Error(1)
}

func (m *mockAdmin) GetBucketQuota(ctx context.Context, bucket string) (madmin.BucketQuota, error) {
	args := m.Called(ctx, bucket)
	return args.Get(0).(madmin.BucketQuota), args.Error(1)
}

func TestStorageUnavailableWithoutAdmin(t *testing.T) {
	html, err := NewStorage(nil, "drawer", logger.Nop()).View(context.Background(), objects.Record{})
	require.NoError(t, err)
	assert.Contains(t, string(html), "unavailable")
}

func TestStorageShowsUsageAndQuota(t *testing.T) {
	admin := new(mockAdmin)
	admin.On("DataUsageInfo", mock.Anything).Return(madmin.DataUsageInfo{
		BucketsUsage: map[string]madmin.BucketUsageInfo{
			"drawer": {Size: 2048, ObjectsCount: 7},
		},
	}, nil)
	admin.On("GetBucketQuota", mock.Anything, "drawer").Return(madmin.BucketQuota{Size: 4096, Type: madmin.HardQuota}, nil)

	html, err := NewStorage(admin, "drawer", logger.Nop()).View(context.Background(), objects.Record{Name: "a.bin", Size: 512})
	require.NoError(t, err)
	out := string(html)
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "<dd>7</dd>")
	assert.Contains(t, out, "4.0 KB (hard)")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "25.00%")
	admin.AssertExpectations(t)
}

func TestStorageToleratesQuotaFailure(t *testing.T) {
	admin := new(mockAdmin)
	admin.On("DataUsageInfo", mock.Anything).Return(madmin.DataUsageInfo{
		BucketSizes: map[string]uint64{"drawer": 100},
	}, nil)
	admin.On("GetBucketQuota", mock.Anything, "drawer").Return(madmin.BucketQuota{}, errors.New("not supported"))

	html, err := NewStorage(admin, "drawer", logger.Nop()).View(context.Background(), objects.Record{Name: "docs", IsFolder: true})
	require.NoError(t, err)
	assert.Contains(t, string(html), "100 B")
	assert.Contains(t, string(html), "None")
	assert.NotContains(t, string(html), "Share of bucket")
}
