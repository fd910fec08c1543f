package builtin

import (
	"bytes"
	"context"
	"html/template"

	"github.com/damacus/iron-drawer/internal/logger"
	"github.com/damacus/iron-drawer/internal/objects"
	"github.com/damacus/iron-drawer/internal/plugins"
	"github.com/damacus/iron-drawer/internal/services"
	"github.com/damacus/iron-drawer/internal/utils"
)

// Storage is a side-panel plugin showing bucket usage and quota from the
// MinIO admin API.
type Storage struct {
	admin  services.MinioAdminClient
	bucket string
	log    *logger.Logger
}

// NewStorage returns the plugin. admin may be nil when the admin API is
// disabled; the tab then says so.
func NewStorage(admin services.MinioAdminClient, bucket string, log *logger.Logger) *Storage {
	return &Storage{admin: admin, bucket: bucket, log: log.Component("storage-plugin")}
}

func (s *Storage) Name() string             { return "Storage" }
func (s *Storage) Description() string      { return "Bucket usage and quota" }
func (s *Storage) FileExtensions() []string { return []string{plugins.Wildcard} }
func (s *Storage) Icon() string             { return "circle-stack" }

var storageTemplate = template.Must(template.New("storage").Parse(`<div class="space-y-2 text-sm">
{{- if not .Available}}
<p class="text-gray-500">Storage details are unavailable.</p>
{{- else}}
<dl class="grid grid-cols-2 gap-1">
<dt class="font-medium">Bucket usage</dt><dd>{{.Used}}</dd>
<dt class="font-medium">Objects</dt><dd>{{.Objects}}</dd>
{{- if .HasQuota}}
<dt class="font-medium">Quota</dt><dd>{{.Quota}} ({{.QuotaType}})</dd>
<dt class="font-medium">Quota used</dt><dd>{{printf "%.1f" .QuotaPercent}}%</dd>
{{- else}}
<dt class="font-medium">Quota</dt><dd>None</dd>
{{- end}}
{{- if not .IsFolder}}
<dt class="font-medium">Share of bucket</dt><dd>{{printf "%.2f" .Share}}%</dd>
{{- end}}
</dl>
{{- end}}
</div>`))

func (s *Storage) View(ctx context.Context, rec objects.Record) (template.HTML, error) {
	data := map[string]interface{}{"Available": false}
	if s.admin != nil {
		if usage, err := s.admin.DataUsageInfo(ctx); err != nil {
			s.log.WarnWith("failed to fetch data usage", err, map[string]interface{}{"bucket": s.bucket})
		} else {
			var used, count uint64
			if info, ok := usage.BucketsUsage[s.bucket]; ok {
				used, count = info.Size, info.ObjectsCount
			} else if usage.BucketSizes != nil {
				used = usage.BucketSizes[s.bucket]
			}
			data = map[string]interface{}{
				"Available": true,
				"Used":      utils.FormatBytes(used),
				"Objects":   count,
				"IsFolder":  rec.IsFolder,
				"Share":     utils.Percent(nonNegative(rec.Size), used),
			}

			quota, err := s.admin.GetBucketQuota(ctx, s.bucket)
			if err != nil {
				s.log.WarnWith("failed to fetch bucket quota", err, map[string]interface{}{"bucket": s.bucket})
			}
			if err == nil && quota.Size > 0 {
				data["HasQuota"] = true
				data["Quota"] = utils.FormatBytes(quota.Size)
				data["QuotaType"] = string(quota.Type)
				data["QuotaPercent"] = utils.Percent(used, quota.Size)
			}
		}
	}

	var buf bytes.Buffer
	if err := storageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func nonNegative(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}
