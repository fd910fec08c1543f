// Package builtin contains the plugins shipped with Iron Drawer.
package builtin

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"time"

	"github.com/damacus/iron-drawer/internal/objects"
	"github.com/damacus/iron-drawer/internal/objectstore"
)

// OfficeViewerURL embeds Office documents, which browsers cannot render.
const OfficeViewerURL = "https://view.officeapps.live.com/op/embed.aspx"

var (
	imageExts  = map[string]bool{"bmp": true, "gif": true, "jpg": true, "jpeg": true, "png": true, "tiff": true}
	officeExts = map[string]bool{"doc": true, "docx": true, "ppt": true, "pptx": true, "xls": true, "xlsx": true, "odt": true}
)

// DocViewer previews images, PDFs, text and Office files from a presigned URL.
type DocViewer struct {
	presign objectstore.PresignFunc
	bucket  string
	expiry  time.Duration
}

func NewDocViewer(presign objectstore.PresignFunc, bucket string, expiry time.Duration) *DocViewer {
	return &DocViewer{presign: presign, bucket: bucket, expiry: expiry}
}

func (d *DocViewer) Name() string        { return "Document Viewer" }
func (d *DocViewer) Description() string { return "View images, PDFs, and Office Files" }

func (d *DocViewer) FileExtensions() []string {
	return []string{"bmp", "csv", "odt", "doc", "docx", "gif", "jpg", "jpeg", "pdf", "png", "ppt", "pptx", "tiff", "txt", "xls", "xlsx"}
}

var docViewTemplate = template.Must(template.New("docview").Parse(
	`{{if .Image}}<img class="max-h-[75vh] mx-auto" src="{{.URL}}" alt="{{.Name}}">` +
		`{{else}}<iframe class="w-full h-[75vh]" src="{{.URL}}" title="{{.Name}}"></iframe>{{end}}`))

func (d *DocViewer) View(ctx context.Context, rec objects.Record) (template.HTML, error) {
	link, err := d.presign(ctx, d.bucket, rec.StorageKey(), d.expiry)
	if err != nil {
		return "", err
	}
	if officeExts[rec.Extension] {
		link = OfficeViewerURL + "?src=" + url.QueryEscape(link)
	}

	var buf bytes.Buffer
	err = docViewTemplate.Execute(&buf, map[string]interface{}{
		"Image": imageExts[rec.Extension],
		"URL":   template.URL(link),
		"Name":  rec.Name,
	})
	if err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
