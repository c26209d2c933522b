package share

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/wenyongqd/anniversary/internal/timeline"
)

// SelectedFile is one file of a user selection.
type SelectedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Rejection records a file that could not be used.
type Rejection struct {
	Name string
	Err  error
}

// Selection is the outcome of ResolveSelection. When Timeline is non-nil it
// replaces the workspace and Images is empty.
type Selection struct {
	Timeline     []timeline.PhotoEntry
	TimelineFile string
	ShareableURL string
	Images       []SelectedFile
	Rejected     []Rejection
}

// HasTimeline reports whether a timeline file parsed.
func (s Selection) HasTimeline() bool {
	return s.Timeline != nil
}

// ResolveSelection sorts a batch of files. The first JSON file that parses as
// a timeline wins and every image in the batch is ignored; otherwise the
// images are returned in selection order.
func ResolveSelection(files []SelectedFile) Selection {
	var sel Selection
	var images []SelectedFile
	for _, f := range files {
		kind := classify(f)
		switch kind {
		case kindJSON:
			if sel.HasTimeline() {
				continue
			}
			entries, shareable, err := ImportFile(f.Data)
			if err != nil {
				sel.Rejected = append(sel.Rejected, Rejection{Name: f.Name, Err: err})
				continue
			}
			sel.Timeline = entries
			sel.TimelineFile = f.Name
			sel.ShareableURL = shareable
		case kindImage:
			if f.ContentType == "" || !strings.HasPrefix(f.ContentType, "image/") {
				f.ContentType = http.DetectContentType(f.Data)
			}
			images = append(images, f)
		default:
			sel.Rejected = append(sel.Rejected, Rejection{Name: f.Name, Err: invalidFormat("not an image or timeline file", nil)})
		}
	}
	if !sel.HasTimeline() {
		sel.Images = images
	}
	return sel
}

type fileKind int

const (
	kindOther fileKind = iota
	kindJSON
	kindImage
)

func classify(f SelectedFile) fileKind {
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	ext := strings.ToLower(filepath.Ext(f.Name))
	switch {
	case ext == ".json" || strings.HasPrefix(ct, "application/json"):
		return kindJSON
	case strings.HasPrefix(ct, "image/"):
		return kindImage
	}
	if strings.HasPrefix(http.DetectContentType(f.Data), "image/") {
		return kindImage
	}
	return kindOther
}
