package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/damacus/iron-drawer/internal/errs"
	"github.com/damacus/iron-drawer/internal/events"
	"github.com/damacus/iron-drawer/internal/logger"
	"github.com/damacus/iron-drawer/internal/objects"
	"github.com/damacus/iron-drawer/internal/plugins"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const maxCommentBytes = 4096

// Comments is a side-panel plugin that keeps a discussion thread per file.
type Comments struct {
	store CommentStore
	log   *logger.Logger
	now   func() time.Time
}

func NewComments(store CommentStore, log *logger.Logger) *Comments {
	return &Comments{
		store: store,
		log:   log.Component("comments"),
		now:   time.Now,
	}
}

func (c *Comments) Name() string             { return "Comments" }
func (c *Comments) Description() string      { return "Discuss files with your team" }
func (c *Comments) FileExtensions() []string { return []string{plugins.Wildcard} }
func (c *Comments) Icon() string             { return "chat-bubble-left-right" }

var commentsTemplate = template.Must(template.New("comments").Funcs(template.FuncMap{
	"when": func(t time.Time) string { return t.Local().Format("2006-01-02 15:04") },
}).Parse(`<div id="comments-{{.ID}}" class="space-y-3">
{{- if not .ID}}<p class="text-sm text-gray-500">Comments are available for files only.</p>
{{- else}}
<ul class="space-y-2">
{{- range .Comments}}
<li class="rounded bg-gray-50 p-2"><p class="text-xs text-gray-500">{{.Author}} &middot; {{when .CreatedAt}}</p><p class="text-sm whitespace-pre-wrap">{{.Body}}</p></li>
{{- else}}
<li class="text-sm text-gray-500">No comments yet.</li>
{{- end}}
</ul>
<form hx-post="/plugins/comments/{{.ID}}" hx-target="#comments-{{.ID}}" hx-swap="outerHTML" class="space-y-2">
<input type="text" name="author" placeholder="Your name" class="w-full rounded border p-1 text-sm">
<textarea name="body" required class="w-full rounded border p-1 text-sm"></textarea>
<button type="submit" class="rounded bg-blue-600 px-3 py-1 text-sm text-white">Comment</button>
</form>
{{- end}}
</div>`))

func (c *Comments) View(ctx context.Context, rec objects.Record) (template.HTML, error) {
	if rec.IsFolder || rec.ID == "" {
		return c.render("", nil)
	}
	thread, err := c.store.List(ctx, rec.ID)
	if err != nil {
		return "", err
	}
	return c.render(rec.ID, thread)
}

func (c *Comments) render(id string, thread []Comment) (template.HTML, error) {
	var buf bytes.Buffer
	if err := commentsTemplate.Execute(&buf, map[string]interface{}{
		"ID":       id,
		"Comments": thread,
	}); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Add appends a comment to the thread of objectID.
func (c *Comments) Add(ctx context.Context, objectID, author, body string) (Comment, error) {
	body = strings.TrimSpace(body)
	if objectID == "" {
		return Comment{}, errs.New(errs.ErrKindInvalidInput, "object id is required")
	}
	if body == "" {
		return Comment{}, errs.New(errs.ErrKindInvalidInput, "comment cannot be empty")
	}
	if len(body) > maxCommentBytes {
		return Comment{}, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("comment exceeds %d bytes", maxCommentBytes))
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = "Anonymous"
	}
	comment := Comment{
		ID:        uuid.NewString(),
		Author:    author,
		Body:      body,
		CreatedAt: c.now().UTC(),
	}
	if err := c.store.Add(ctx, objectID, comment); err != nil {
		return Comment{}, err
	}
	return comment, nil
}

// Routes mounts the thread endpoints under g.
func (c *Comments) Routes(g *echo.Group) {
	g.GET("/comments/:id", c.handleList)
	g.POST("/comments/:id", c.handleAdd)
}

func (c *Comments) handleList(ctx echo.Context) error {
	id := ctx.Param("id")
	thread, err := c.store.List(ctx.Request().Context(), id)
	if err != nil {
		return ctx.String(http.StatusBadGateway, "Failed to load comments")
	}
	html, err := c.render(id, thread)
	if err != nil {
		return err
	}
	return ctx.HTML(http.StatusOK, string(html))
}

func (c *Comments) handleAdd(ctx echo.Context) error {
	id := ctx.Param("id")
	reqCtx := ctx.Request().Context()
	if _, err := c.Add(reqCtx, id, ctx.FormValue("author"), ctx.FormValue("body")); err != nil {
		if errs.IsInvalidInput(err) {
			return ctx.String(http.StatusBadRequest, errs.Message(err))
		}
		c.log.ErrorWith("failed to add comment", err, map[string]interface{}{"object_id": id})
		return ctx.String(http.StatusBadGateway, "Failed to save comment")
	}
	return c.handleList(ctx)
}

// Subscriptions drops a thread when its file is deleted, directly or with
// its folder, and follows the file when an update changes its id.
func (c *Comments) Subscriptions() map[events.Kind]events.Handler {
	return map[events.Kind]events.Handler{
		events.ObjectDeleted: func(ctx context.Context, payload any) error {
			ev, ok := payload.(events.Deleted)
			if !ok {
				return fmt.Errorf("unexpected payload %T", payload)
			}
			var errList []error
			for _, rec := range append([]objects.Record{ev.Object}, ev.Contents...) {
				if rec.ID == "" {
					continue
				}
				if err := c.store.Drop(ctx, rec.ID); err != nil {
					errList = append(errList, err)
				}
			}
			return errors.Join(errList...)
		},
		events.ObjectUpdated: func(ctx context.Context, payload any) error {
			ev, ok := payload.(events.Updated)
			if !ok {
				return fmt.Errorf("unexpected payload %T", payload)
			}
			if ev.Old.ID == "" || ev.New.ID == "" || ev.Old.ID == ev.New.ID {
				return nil
			}
			return c.store.Move(ctx, ev.Old.ID, ev.New.ID)
		},
	}
}
