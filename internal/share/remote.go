package share

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wenyongqd/anniversary/internal/imaging"
	"github.com/wenyongqd/anniversary/internal/services"
	"github.com/wenyongqd/anniversary/internal/timeline"
)

// Fetcher downloads a hosted document.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (imaging.Payload, error)
}

// JSONUploader stores a JSON document and returns its public URL.
type JSONUploader interface {
	UploadJSON(ctx context.Context, body []byte) (string, error)
}

// Loaded is the result of opening a link.
type Loaded struct {
	Entries []timeline.PhotoEntry
	Source  string
}

// LoadRemote fetches a hosted timeline and validates it like a file import.
func LoadRemote(ctx context.Context, fetcher Fetcher, documentURL string) ([]timeline.PhotoEntry, error) {
	documentURL = strings.TrimSpace(documentURL)
	if documentURL == "" {
		return nil, services.Wrap(services.ErrValidation, "share", "load remote", "document url is empty", nil)
	}
	payload, err := fetcher.Fetch(ctx, documentURL)
	if err != nil {
		return nil, fmt.Errorf("fetch shared timeline: %w", err)
	}
	entries, _, err := ImportFile(payload.Data)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Open resolves a link into entries. The data parameter wins when both
// sources are present since it needs no network.
func Open(ctx context.Context, fetcher Fetcher, link string) (Loaded, error) {
	params, err := ParseLoadParams(link)
	if err != nil {
		return Loaded{}, err
	}
	switch {
	case params.Data != "":
		entries, err := DecodeLink(params.Data)
		if err != nil {
			return Loaded{}, err
		}
		return Loaded{Entries: entries, Source: ParamData}, nil
	case params.LoadFromURL != "":
		entries, err := LoadRemote(ctx, fetcher, params.LoadFromURL)
		if err != nil {
			return Loaded{}, err
		}
		return Loaded{Entries: entries, Source: params.LoadFromURL}, nil
	}
	return Loaded{}, invalidFormat("link has neither data nor load_from_url", nil)
}

// SaveToCloud uploads entries as a plain JSON array and returns a link that
// loads them back from the hosted copy, along with the document URL.
func SaveToCloud(ctx context.Context, uploader JSONUploader, appBaseURL string, entries []timeline.PhotoEntry) (string, string, error) {
	if entries == nil {
		entries = []timeline.PhotoEntry{}
	}
	body, err := json.Marshal(entries)
	if err != nil {
		return "", "", fmt.Errorf("encode timeline: %w", err)
	}
	documentURL, err := uploader.UploadJSON(ctx, body)
	if err != nil {
		return "", "", fmt.Errorf("save timeline: %w", err)
	}
	link, err := BuildRemoteLink(appBaseURL, documentURL)
	if err != nil {
		return "", "", err
	}
	return link, documentURL, nil
}
