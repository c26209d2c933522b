package timeline

import (
	"fmt"
	"slices"
	"strings"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusUploading Status = "uploading"
	StatusPending   Status = "pending"
	StatusDone      Status = "done"
	StatusError     Status = "error"
)

// Fallback messages stored when a failure carries no text.
const (
	UploadFailedMessage       = "upload failed"
	GenerationFailedMessage   = "generation failed"
	UploadInterruptedMessage  = "upload interrupted"
	GenerateInterruptedDetail = "generation interrupted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusUploading, StatusPending, StatusDone, StatusError:
		return true
	}
	return false
}

// Busy reports whether an operation is in flight for the status.
func (s Status) Busy() bool {
	return s == StatusUploading || s == StatusPending
}

// PhotoEntry is one timeline item.
type PhotoEntry struct {
	ID           string `json:"id"`
	ImageURL     string `json:"imageUrl,omitempty"`
	LocalPreview string `json:"-"`
	Date         string `json:"date"`
	Message      string `json:"message"`
	Status       Status `json:"status"`
	GeneratedURL string `json:"generatedImageUrl,omitempty"`
	ErrorDetail  string `json:"errorDetail,omitempty"`
}

// Check verifies the per-status field invariants.
func (e PhotoEntry) Check() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("entry has no id")
	}
	switch e.Status {
	case StatusUploading:
		if e.ImageURL != "" || e.LocalPreview == "" {
			return fmt.Errorf("entry %s: uploading requires a local preview and no image url", e.ID)
		}
	case StatusDone:
		if e.GeneratedURL == "" || e.ErrorDetail != "" {
			return fmt.Errorf("entry %s: done requires a generated url and no error", e.ID)
		}
	case StatusError:
		if e.ErrorDetail == "" {
			return fmt.Errorf("entry %s: error requires a detail", e.ID)
		}
	case StatusIdle, StatusPending:
	default:
		return fmt.Errorf("entry %s: unknown status %q", e.ID, e.Status)
	}
	return nil
}

// Normalize repairs an entry that arrives from storage or an import, where no
// operation can be in flight. Interrupted operations become errors and fields
// that contradict the status are cleared.
func Normalize(e PhotoEntry) PhotoEntry {
	e.LocalPreview = ""
	switch e.Status {
	case StatusUploading:
		e.Status = StatusError
		e.ErrorDetail = UploadInterruptedMessage
	case StatusPending:
		e.Status = StatusError
		e.ErrorDetail = GenerateInterruptedDetail
	case StatusDone:
		if e.GeneratedURL == "" {
			e.Status = StatusIdle
		}
		e.ErrorDetail = ""
	case StatusError:
		if e.ErrorDetail == "" {
			e.ErrorDetail = GenerationFailedMessage
		}
	case StatusIdle:
		e.ErrorDetail = ""
	default:
		e.Status = StatusIdle
		e.ErrorDetail = ""
		if e.GeneratedURL != "" {
			e.Status = StatusDone
		}
	}
	return e
}

// MergeByID returns a new list where the entry whose ID matches updated is
// replaced. A list without that ID is returned unchanged.
func MergeByID(list []PhotoEntry, updated PhotoEntry) []PhotoEntry {
	out := make([]PhotoEntry, len(list))
	for i, entry := range list {
		if entry.ID == updated.ID {
			out[i] = updated
			continue
		}
		out[i] = entry
	}
	return out
}

// DisplayOrder returns a copy sorted by date using a plain string compare.
// Entries with equal dates keep their insertion order.
func DisplayOrder(list []PhotoEntry) []PhotoEntry {
	out := slices.Clone(list)
	slices.SortStableFunc(out, func(a, b PhotoEntry) int {
		return strings.Compare(a.Date, b.Date)
	})
	return out
}

func indexOf(list []PhotoEntry, id string) int {
	return slices.IndexFunc(list, func(e PhotoEntry) bool { return e.ID == id })
}
