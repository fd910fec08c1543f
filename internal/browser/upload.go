package browser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/damacus/iron-drawer/internal/errs"
	"github.com/damacus/iron-drawer/internal/events"
	"github.com/damacus/iron-drawer/internal/keys"
	"github.com/damacus/iron-drawer/internal/metadata"
	"github.com/damacus/iron-drawer/internal/metrics"
	"github.com/damacus/iron-drawer/internal/objects"
	"github.com/damacus/iron-drawer/internal/objectstore"
)

// UploadFile is one file submitted for upload.
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// UploadStatus summarizes a batch.
type UploadStatus string

const (
	UploadAll     UploadStatus = "all"
	UploadPartial UploadStatus = "partial"
	UploadNone    UploadStatus = "none"
)

// UploadFailure is a file that was not uploaded and why.
type UploadFailure struct {
	Name   string
	Reason string
}

// UploadReport is the outcome of Upload.
type UploadReport struct {
	Status   UploadStatus
	Message  string
	Total    int
	Uploaded []objects.Record
	Failures []UploadFailure
}

// Upload puts files into the current path one at a time. Each gets a fresh
// id and upload date. Files with invalid or taken names are skipped without
// a store call. When at least one file lands the uploaded event fires and
// the listing is refreshed.
func (c *Controller) Upload(ctx context.Context, files []UploadFile) (UploadReport, error) {
	if err := c.perms.check(ActionUpload); err != nil {
		return UploadReport{}, err
	}

	location := c.Path()
	existing, err := c.siblings(ctx, location)
	if err != nil {
		return UploadReport{}, err
	}
	report := UploadReport{Total: len(files)}
	taken := make(map[string]bool)

	for _, f := range files {
		rec, err := c.uploadOne(ctx, location, f, existing, taken)
		if err != nil {
			report.Failures = append(report.Failures, UploadFailure{Name: f.Name, Reason: errs.Message(err)})
			metrics.UploadFiles.WithLabelValues(uploadOutcome(err)).Inc()
			c.log.WarnWith("upload failed", err, map[string]interface{}{"name": f.Name, "location": location})
			continue
		}
		taken[strings.ToLower(f.Name)] = true
		report.Uploaded = append(report.Uploaded, rec)
		metrics.UploadFiles.WithLabelValues("ok").Inc()
	}

	report.Status, report.Message = summarize(len(report.Uploaded), report.Total)
	if len(report.Uploaded) == 0 {
		return report, nil
	}

	_ = c.bus.Trigger(ctx, events.ObjectUploaded, events.Uploaded{Objects: report.Uploaded})
	if err := c.Refresh(ctx); err != nil {
		c.log.WarnWith("refresh after upload failed", err, nil)
	}
	return report, nil
}

func (c *Controller) uploadOne(ctx context.Context, location string, f UploadFile, existing, taken map[string]bool) (objects.Record, error) {
	if err := checkName(f.Name, existing); err != nil {
		return objects.Record{}, err
	}
	if taken[strings.ToLower(f.Name)] {
		return objects.Record{}, errs.New(errs.ErrKindConflict, fmt.Sprintf("%q appears more than once", f.Name))
	}

	body, err := f.Open()
	if err != nil {
		return objects.Record{}, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("cannot read %q", f.Name), err)
	}
	defer func() { _ = body.Close() }()

	key := keys.ToKey(location, f.Name, false)
	md := metadata.Fresh(c.newID(), c.now())
	entry, err := c.client.PutObject(ctx, c.bucket, key, body, f.Size, objectstore.PutOptions{
		ContentType: f.ContentType,
		Metadata:    md,
	})
	if err != nil {
		return objects.Record{}, errs.Wrap(kindOr(err, errs.ErrKindStorageFailed), fmt.Sprintf("failed to upload %q", f.Name), err)
	}
	if entry.Metadata == nil {
		entry.Metadata = md
	}
	entry.Key = key
	return c.mapper.MapFile(ctx, location, entry)
}

func summarize(ok, total int) (UploadStatus, string) {
	switch {
	case total > 0 && ok == total:
		if ok == 1 {
			return UploadAll, "Successfully uploaded 1 file"
		}
		return UploadAll, fmt.Sprintf("Successfully uploaded %d files", ok)
	case ok > 0:
		failed := total - ok
		noun := "failures"
		if failed == 1 {
			noun = "failure"
		}
		return UploadPartial, fmt.Sprintf("%d of %d succeeded, %d %s", ok, total, failed, noun)
	case total == 0:
		return UploadNone, "No files selected"
	default:
		return UploadNone, "Failed to upload all files"
	}
}

func uploadOutcome(err error) string {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput:
		return "invalid"
	case errs.ErrKindConflict:
		return "conflict"
	default:
		return "error"
	}
}
