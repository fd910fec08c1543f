package browser

import (
	"fmt"

	"github.com/damacus/iron-drawer/internal/config"
	"github.com/damacus/iron-drawer/internal/errs"
)

// Action names a user-facing browser operation.
type Action string

const (
	ActionUpload       Action = "upload"
	ActionPreview      Action = "preview"
	ActionDelete       Action = "delete"
	ActionDownload     Action = "download"
	ActionRename       Action = "rename"
	ActionCreateFolder Action = "create folder"
)

// Permissions are supplied by the host application. Actions gates the
// per-row actions (rename, delete, download) as a group.
type Permissions struct {
	Actions      bool
	Upload       bool
	Preview      bool
	Delete       bool
	Download     bool
	Rename       bool
	CreateFolder bool
}

// AllowAll enables every action.
func AllowAll() Permissions {
	return Permissions{
		Actions:      true,
		Upload:       true,
		Preview:      true,
		Delete:       true,
		Download:     true,
		Rename:       true,
		CreateFolder: true,
	}
}

// PermissionsFrom copies the configured flags.
func PermissionsFrom(p config.Permissions) Permissions {
	return Permissions(p)
}

// Allows reports whether a is enabled.
func (p Permissions) Allows(a Action) bool {
	switch a {
	case ActionUpload:
		return p.Upload
	case ActionPreview:
		return p.Preview
	case ActionCreateFolder:
		return p.CreateFolder
	case ActionDelete:
		return p.Actions && p.Delete
	case ActionDownload:
		return p.Actions && p.Download
	case ActionRename:
		return p.Actions && p.Rename
	}
	return false
}

func (p Permissions) check(a Action) error {
	if !p.Allows(a) {
		return errs.New(errs.ErrKindPermissionDenied, fmt.Sprintf("%s is not permitted", a))
	}
	return nil
}
