// Package models contains data structures used across handlers
package models

import (
	"html/template"

	"github.com/damacus/iron-drawer/internal/keys"
	"github.com/damacus/iron-drawer/internal/objects"
	"github.com/damacus/iron-drawer/internal/plugins"
)

// Breadcrumb for navigation
type Breadcrumb struct {
	Name string
	Path string
}

// Perms is the permission set as templates see it. Field for field the same
// as browser.Permissions so the two convert directly.
type Perms struct {
	Actions      bool
	Upload       bool
	Preview      bool
	Delete       bool
	Download     bool
	Rename       bool
	CreateFolder bool
}

// Row is one listing line.
type Row struct {
	Record objects.Record
	Key    string
	// Path is the location a folder row navigates to.
	Path    string
	Preview bool
}

// NewRow builds a row; preview is whether a preview plugin covers rec.
func NewRow(rec objects.Record, preview bool) Row {
	row := Row{Record: rec, Key: rec.StorageKey(), Preview: preview && !rec.IsFolder}
	if rec.IsFolder {
		row.Path = keys.NormalizeLocation(rec.Location + "/" + rec.Name)
	}
	return row
}

// ListingPage feeds the browser page and the listing fragment.
type ListingPage struct {
	Label string
	CSRF  string
	// WidgetID is sent back by htmx requests and download links.
	WidgetID string
	Path     string
	// Sort is the active column, "" for listing order.
	Sort        string
	Desc        bool
	Perms       Perms
	Breadcrumbs []Breadcrumb
	Rows        []Row
	// Report is an upload report shown above the table, if any.
	Report interface{}
	Error  string
}

// SearchPage feeds the search results fragment.
type SearchPage struct {
	Query string
	Path  string
	Rows  []Row
}

// SidePanel feeds the side panel fragment.
type SidePanel struct {
	Key    string
	Name   string
	Tabs   []plugins.Tab
	Active int
	Body   template.HTML
}

// Preview feeds the preview modal.
type Preview struct {
	Name string
	Body template.HTML
}

// Alert is a one-line message fragment.
type Alert struct {
	Level   string
	Message string
}
