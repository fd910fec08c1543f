// Package plugins indexes preview and side-panel plugins by file extension
// and renders them for a record.
//
// A plugin bound to the Wildcard extension is a side-panel plugin: it gets a
// tab next to Info for every object. Any other extension makes it a preview
// plugin for files of that type.
package plugins

import (
	"context"
	"html/template"

	"github.com/damacus/iron-drawer/internal/events"
	"github.com/damacus/iron-drawer/internal/objects"
	"github.com/labstack/echo/v4"
)

// Wildcard binds a plugin to every object.
const Wildcard = "*"

// Plugin renders a view for one record.
type Plugin interface {
	Name() string
	Description() string
	FileExtensions() []string
	// View returns the HTML fragment shown for rec. It is embedded as is.
	View(ctx context.Context, rec objects.Record) (template.HTML, error)
}

// Iconer is implemented by plugins that show an icon on their tab.
type Iconer interface {
	Icon() string
}

// Subscriber is implemented by plugins that react to browser events.
type Subscriber interface {
	Subscriptions() map[events.Kind]events.Handler
}

// Router is implemented by plugins that serve their own endpoints. Routes
// are mounted under /plugins.
type Router interface {
	Routes(g *echo.Group)
}
