package plugins

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/damacus/iron-drawer/internal/errs"
	"github.com/damacus/iron-drawer/internal/objects"
	"github.com/damacus/iron-drawer/internal/utils"
)

// InfoTabName is the built-in first side-panel tab.
const InfoTabName = "Info"

// Tab is one side-panel tab. Index 0 is always Info, which has no plugin.
type Tab struct {
	Index  int
	Name   string
	Icon   string
	Plugin Plugin
}

// Resolution is what the host would show for a record.
type Resolution struct {
	// Preview is nil for folders and extensions without a preview plugin.
	Preview Plugin
	Tabs    []Tab
}

// Host resolves and renders plugins for records.
type Host struct {
	registry *Registry
}

func NewHost(r *Registry) *Host {
	return &Host{registry: r}
}

func (h *Host) Resolve(rec objects.Record) Resolution {
	var res Resolution
	if !rec.IsFolder && rec.Extension != "" {
		if ps := h.registry.Plugins(rec.Extension); len(ps) > 0 {
			res.Preview = ps[0]
		}
	}
	res.Tabs = h.tabs()
	return res
}

func (h *Host) tabs() []Tab {
	tabs := []Tab{{Index: 0, Name: InfoTabName}}
	for i, p := range h.registry.Plugins(Wildcard) {
		tab := Tab{Index: i + 1, Name: p.Name(), Plugin: p}
		if ic, ok := p.(Iconer); ok {
			tab.Icon = ic.Icon()
		}
		tabs = append(tabs, tab)
	}
	return tabs
}

// RenderPreview renders the preview plugin for rec.
func (h *Host) RenderPreview(ctx context.Context, rec objects.Record) (template.HTML, error) {
	p := h.Resolve(rec).Preview
	if p == nil {
		return "", errs.New(errs.ErrKindNotFound, fmt.Sprintf("no preview available for %q", rec.Name))
	}
	view, err := p.View(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("plugin %q: %w", p.Name(), err)
	}
	return view, nil
}

// RenderTab renders side-panel tab index for rec.
func (h *Host) RenderTab(ctx context.Context, rec objects.Record, index int) (template.HTML, error) {
	tabs := h.tabs()
	if index < 0 || index >= len(tabs) {
		return "", errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("no side panel tab %d", index))
	}
	if index == 0 {
		return InfoView(rec)
	}
	p := tabs[index].Plugin
	view, err := p.View(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("plugin %q: %w", p.Name(), err)
	}
	return view, nil
}

var infoTemplate = template.Must(template.New("info").Parse(`<dl class="space-y-2 text-sm">
  <div><dt class="font-semibold">Size</dt><dd>{{.Size}}</dd></div>
  <div><dt class="font-semibold">Location</dt><dd>{{.Location}}</dd></div>
  <div><dt class="font-semibold">Uploaded At</dt><dd>{{.UploadDate}}</dd></div>
  <div><dt class="font-semibold">Last Modified At</dt><dd>{{.LastModified}}</dd></div>
</dl>`))

// InfoView renders the built-in Info tab.
func InfoView(rec objects.Record) (template.HTML, error) {
	var buf bytes.Buffer
	err := infoTemplate.Execute(&buf, map[string]string{
		"Size":         utils.FormatSize(rec.Size),
		"Location":     rec.Location + "/",
		"UploadDate":   utils.FormatTime(rec.UploadDate),
		"LastModified": utils.FormatTime(rec.LastModified),
	})
	if err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
