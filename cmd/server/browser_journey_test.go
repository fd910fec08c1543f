package main

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/damacus/iron-drawer/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journey is one browser tab. Tabs opened with tab share cookies but each
// page load has its own widget.
type journey struct {
	t      *testing.T
	base   string
	client *http.Client
	widget string
}

func (j *journey) tab() *journey {
	return &journey{t: j.t, base: j.base, client: j.client}
}

func startJourney(t *testing.T) *journey {
	t.Helper()
	chdirRoot(t)

	srv := httptest.NewUnstartedServer(nil)
	base := "http://" + srv.Listener.Addr().String()

	cfg := testConfig(t)
	cfg.Server.PublicURL = base
	srv.Config.Handler = newServer(t.Context(), cfg, logger.Nop(), memoryDeps(t, cfg))
	srv.Start()
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &journey{t: t, base: base, client: &http.Client{Jar: jar}}
}

func (j *journey) csrf() string {
	u, _ := url.Parse(j.base)
	for _, c := range j.client.Jar.Cookies(u) {
		if c.Name == "csrf" {
			return c.Value
		}
	}
	return ""
}

func (j *journey) send(req *http.Request) (int, string) {
	j.t.Helper()
	if req.Method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", j.csrf())
	}
	req.Header.Set("HX-Request", "true")
	if j.widget != "" {
		req.Header.Set("X-Widget-ID", j.widget)
	}
	resp, err := j.client.Do(req)
	require.NoError(j.t, err)
	defer func() { _ = resp.Body.Close() }()
	if id := resp.Header.Get("X-Widget-ID"); id != "" {
		j.widget = id
	}
	body, err := io.ReadAll(resp.Body)
	require.NoError(j.t, err)
	return resp.StatusCode, string(body)
}

func (j *journey) get(path string) (int, string) {
	req, err := http.NewRequest(http.MethodGet, j.base+path, nil)
	require.NoError(j.t, err)
	return j.send(req)
}

func (j *journey) post(path string, form url.Values) (int, string) {
	req, err := http.NewRequest(http.MethodPost, j.base+path, strings.NewReader(form.Encode()))
	require.NoError(j.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return j.send(req)
}

func (j *journey) upload(name, content string) (int, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", name)
	require.NoError(j.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(j.t, err)
	require.NoError(j.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, j.base+"/browser/upload", &buf)
	require.NoError(j.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return j.send(req)
}

var commentsRoute = regexp.MustCompile(`/plugins/comments/([0-9a-f-]{36})`)

func TestBrowserJourney(t *testing.T) {
	j := startJourney(t)

	status, body := j.get("/browser")
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, j.csrf())
	assert.Contains(t, body, `content="`+j.csrf()+`"`)

	status, body = j.post("/browser/folders", url.Values{"name": {"docs"}})
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, "docs/")

	status, body = j.get("/browser/listing?path=docs")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "This folder is empty.")

	status, body = j.upload("plan.pdf", "%PDF-1.4 plan")
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, "Successfully uploaded 1 file")
	assert.Contains(t, body, "plan.pdf")

	status, body = j.get("/browser/download?key=" + url.QueryEscape("docs/plan.pdf"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "%PDF-1.4 plan", body)

	status, body = j.get("/browser/preview?key=" + url.QueryEscape("docs/plan.pdf"))
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, "<iframe")
	assert.Contains(t, body, "/_objects/drawer/docs/plan.pdf?expires=")

	status, body = j.get("/browser/panel?tab=1&key=" + url.QueryEscape("docs/plan.pdf"))
	require.Equal(t, http.StatusOK, status, body)
	match := commentsRoute.FindStringSubmatch(body)
	require.Len(t, match, 2, "comments form rendered")
	id := match[1]

	status, body = j.post("/plugins/comments/"+id, url.Values{"author": {"Sam"}, "body": {"Looks good"}})
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, "Looks good")

	// the thread follows the file through a rename
	req, err := http.NewRequest(http.MethodPost, j.base+"/browser/rename?key="+url.QueryEscape("docs/plan.pdf"), nil)
	require.NoError(t, err)
	req.Header.Set("HX-Prompt", "final.pdf")
	status, body = j.send(req)
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, "final.pdf")
	assert.NotContains(t, body, "plan.pdf")

	status, body = j.get("/browser/panel?tab=1&key=" + url.QueryEscape("docs/final.pdf"))
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, "Looks good")

	status, body = j.post("/browser/delete?key="+url.QueryEscape("docs/final.pdf"), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, "This folder is empty.")

	status, body = j.get("/plugins/comments/" + id)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "No comments yet.")
}

func TestBrowserJourneyRejectsDuplicateFolder(t *testing.T) {
	j := startJourney(t)
	_, _ = j.get("/browser")

	status, _ := j.post("/browser/folders", url.Values{"name": {"docs"}})
	require.Equal(t, http.StatusOK, status)

	status, body := j.post("/browser/folders", url.Values{"name": {"DOCS"}})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body, "already exists")
}

func TestBrowserJourneyTabsKeepTheirOwnFolder(t *testing.T) {
	first := startJourney(t)
	_, _ = first.get("/browser")
	status, body := first.post("/browser/folders", url.Values{"name": {"docs"}})
	require.Equal(t, http.StatusOK, status, body)
	status, _ = first.get("/browser/listing?path=docs")
	require.Equal(t, http.StatusOK, status)
	status, body = first.upload("a.txt", "AAA")
	require.Equal(t, http.StatusOK, status, body)
	status, body = first.upload("b.txt", "precious")
	require.Equal(t, http.StatusOK, status, body)

	second := first.tab()
	status, body = second.get("/browser")
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, first.widget, second.widget)
	assert.Contains(t, body, `<meta name="widget-id" content="`+second.widget+`">`)

	// the second tab sits at the root; the first still acts inside docs
	req, err := http.NewRequest(http.MethodPost, first.base+"/browser/rename?key="+url.QueryEscape("docs/a.txt"), nil)
	require.NoError(t, err)
	req.Header.Set("HX-Prompt", "b.txt")
	status, body = first.send(req)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body, "already exists")

	status, body = first.get("/browser/download?key=" + url.QueryEscape("docs/b.txt"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "precious", body)

	status, body = first.post("/browser/folders", url.Values{"name": {"inner"}})
	require.Equal(t, http.StatusOK, status, body)
	status, body = second.get("/browser/listing?path=docs")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "inner/")
}
