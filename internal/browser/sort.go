package browser

import (
	"sort"
	"strings"

	"github.com/damacus/iron-drawer/internal/errs"
	"github.com/damacus/iron-drawer/internal/objects"
)

// SortField names a listing column.
type SortField string

const (
	SortNone     SortField = ""
	SortName     SortField = "name"
	SortOwner    SortField = "owner"
	SortModified SortField = "modified"
	SortSize     SortField = "size"
)

// Sort orders a listing. The zero value keeps the listing order, folders
// first then files as the store returned them.
type Sort struct {
	Field SortField
	Desc  bool
}

// ParseSort reads the sort and order query values. Order is "asc" or
// "desc"; empty means ascending.
func ParseSort(field, order string) (Sort, error) {
	s := Sort{Field: SortField(strings.ToLower(field))}
	switch s.Field {
	case SortNone, SortName, SortOwner, SortModified, SortSize:
	default:
		return Sort{}, errs.New(errs.ErrKindInvalidInput, "Unknown sort column: "+field)
	}
	switch strings.ToLower(order) {
	case "", "asc":
	case "desc":
		s.Desc = true
	default:
		return Sort{}, errs.New(errs.ErrKindInvalidInput, "Sort order must be asc or desc")
	}
	return s, nil
}

// SetSort changes how Snapshot orders records.
func (c *Controller) SetSort(s Sort) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sort = s
}

// Sort returns the active ordering.
func (c *Controller) Sort() Sort {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sort
}

// sortRecords returns a sorted copy. Folders always lead; ties fall back to
// the name.
func sortRecords(records []objects.Record, s Sort) []objects.Record {
	out := append([]objects.Record(nil), records...)
	if s.Field == SortNone {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsFolder != b.IsFolder {
			return a.IsFolder
		}
		cmp := compareBy(a, b, s.Field)
		if s.Desc {
			cmp = -cmp
		}
		if cmp == 0 {
			cmp = compareBy(a, b, SortName)
		}
		return cmp < 0
	})
	return out
}

func compareBy(a, b objects.Record, field SortField) int {
	switch field {
	case SortOwner:
		return strings.Compare(strings.ToLower(a.Owner), strings.ToLower(b.Owner))
	case SortModified:
		return a.LastModified.Compare(b.LastModified)
	case SortSize:
		switch {
		case a.Size < b.Size:
			return -1
		case a.Size > b.Size:
			return 1
		}
		return 0
	default:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}
}
