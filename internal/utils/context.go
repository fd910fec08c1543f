// Package utils provides shared formatting helpers and request constants
package utils

// ContextKeyController is the key used to store the widget's browser
// controller in the echo context
const ContextKeyController = "controller"

// ContextKeyWidgetID is the key used to store the widget id in the echo context
const ContextKeyWidgetID = "widget_id"

// HeaderWidgetID carries the id of the widget a page was rendered for. Each
// page load mounts its own widget, so two tabs never share one.
const HeaderWidgetID = "X-Widget-ID"

// QueryWidgetID names the widget on plain links, which cannot send headers
const QueryWidgetID = "widget"
