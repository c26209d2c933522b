package share

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/wenyongqd/anniversary/internal/services"
	"github.com/wenyongqd/anniversary/internal/timeline"
)

// File is the export document.
type File struct {
	Photos       []timeline.PhotoEntry `json:"photos"`
	ShareableURL string                `json:"shareableUrl,omitempty"`
}

// wireEntry accepts both the current and the legacy field names.
type wireEntry struct {
	ID           string `json:"id"`
	ImageURL     string `json:"imageUrl"`
	DataURL      string `json:"dataUrl"`
	Date         string `json:"date"`
	Message      string `json:"message"`
	Status       string `json:"status"`
	GeneratedURL string `json:"generatedImageUrl"`
	ErrorDetail  string `json:"errorDetail"`
}

// ExportFile writes entries and an optional shareable link as an export
// document.
func ExportFile(w io.Writer, entries []timeline.PhotoEntry, shareableURL string) error {
	doc := File{Photos: entries, ShareableURL: strings.TrimSpace(shareableURL)}
	if doc.Photos == nil {
		doc.Photos = []timeline.PhotoEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// ImportFile parses an export document or a bare entry array. Every entry
// needs an id and an image reference; one bad entry rejects the whole file.
// Returned entries are normalized for adoption.
func ImportFile(data []byte) ([]timeline.PhotoEntry, string, error) {
	entries, shareable, err := parseTimeline(data)
	if err != nil {
		return nil, "", err
	}
	for i := range entries {
		entries[i] = timeline.Normalize(entries[i])
	}
	return entries, shareable, nil
}

func parseTimeline(data []byte) ([]timeline.PhotoEntry, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, "", invalidFormat("document is empty", nil)
	}

	var (
		raw       []wireEntry
		shareable string
	)
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, "", invalidFormat("malformed entry array", err)
		}
	case '{':
		var doc struct {
			Photos       *[]wireEntry `json:"photos"`
			ShareableURL string       `json:"shareableUrl"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, "", invalidFormat("malformed timeline document", err)
		}
		if doc.Photos == nil {
			return nil, "", invalidFormat("document has no photos array", nil)
		}
		raw = *doc.Photos
		shareable = strings.TrimSpace(doc.ShareableURL)
	default:
		return nil, "", invalidFormat("document is not a JSON array or object", nil)
	}

	entries := make([]timeline.PhotoEntry, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, w := range raw {
		entry, err := w.entry()
		if err != nil {
			return nil, "", invalidFormat(fmt.Sprintf("entry %d", i), err)
		}
		if _, dup := seen[entry.ID]; dup {
			return nil, "", invalidFormat(fmt.Sprintf("entry %d: duplicate id %q", i, entry.ID), nil)
		}
		seen[entry.ID] = struct{}{}
		entries = append(entries, entry)
	}
	return entries, shareable, nil
}

func (w wireEntry) entry() (timeline.PhotoEntry, error) {
	id := strings.TrimSpace(w.ID)
	if id == "" {
		return timeline.PhotoEntry{}, fmt.Errorf("missing id")
	}
	image := strings.TrimSpace(w.ImageURL)
	if image == "" {
		image = strings.TrimSpace(w.DataURL)
	}
	if image == "" {
		return timeline.PhotoEntry{}, fmt.Errorf("%s: missing imageUrl", id)
	}
	return timeline.PhotoEntry{
		ID:           id,
		ImageURL:     image,
		Date:         w.Date,
		Message:      w.Message,
		Status:       timeline.Status(w.Status),
		GeneratedURL: w.GeneratedURL,
		ErrorDetail:  w.ErrorDetail,
	}, nil
}

func invalidFormat(message string, err error) error {
	return services.Wrap(services.ErrInvalidFormat, "share", "parse", message, err)
}
