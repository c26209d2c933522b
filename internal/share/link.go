package share

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/wenyongqd/anniversary/internal/timeline"
)

// Query parameters recognized on a shared link.
const (
	ParamData        = "data"
	ParamLoadFromURL = "load_from_url"
)

// maxInflatedBytes bounds a decoded link payload.
const maxInflatedBytes = 32 << 20

// LoadParams holds the load sources found on a link.
type LoadParams struct {
	Data        string
	LoadFromURL string
}

// Empty reports whether the link carried no load source.
func (p LoadParams) Empty() bool {
	return p.Data == "" && p.LoadFromURL == ""
}

// EncodeLink compresses entries into the value of the data parameter.
func EncodeLink(entries []timeline.PhotoEntry) (string, error) {
	if entries == nil {
		entries = []timeline.PhotoEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("encode link entries: %w", err)
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return "", fmt.Errorf("create deflate writer: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("deflate link entries: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finish deflate: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeLink reverses EncodeLink. Entries are returned as encoded; callers
// adopting them normalize through timeline.Manager.Replace.
func DecodeLink(value string) ([]timeline.PhotoEntry, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, invalidFormat("link data is empty", nil)
	}
	compressed, err := decodeBase64(value)
	if err != nil {
		return nil, invalidFormat("link data is not base64", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, invalidFormat("link data is not deflate compressed", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(io.LimitReader(zr, maxInflatedBytes+1))
	if err != nil {
		return nil, invalidFormat("inflate link data", err)
	}
	if len(raw) > maxInflatedBytes {
		return nil, invalidFormat("link data is too large", nil)
	}

	var entries []timeline.PhotoEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, invalidFormat("link data is not an entry array", err)
	}
	if entries == nil {
		entries = []timeline.PhotoEntry{}
	}
	for i, e := range entries {
		if strings.TrimSpace(e.ID) == "" {
			return nil, invalidFormat(fmt.Sprintf("entry %d: missing id", i), nil)
		}
	}
	return entries, nil
}

// BuildDataLink returns appBaseURL with entries embedded in the data parameter.
func BuildDataLink(appBaseURL string, entries []timeline.PhotoEntry) (string, error) {
	token, err := EncodeLink(entries)
	if err != nil {
		return "", err
	}
	return withParam(appBaseURL, ParamData, token)
}

// BuildRemoteLink returns appBaseURL pointing at a hosted timeline document.
func BuildRemoteLink(appBaseURL, documentURL string) (string, error) {
	return withParam(appBaseURL, ParamLoadFromURL, documentURL)
}

// ParseLoadParams extracts the load sources from a full link or a bare query
// string.
func ParseLoadParams(link string) (LoadParams, error) {
	link = strings.TrimSpace(link)
	query := link
	if strings.Contains(link, "://") {
		parsed, err := url.Parse(link)
		if err != nil {
			return LoadParams{}, invalidFormat("malformed link", err)
		}
		query = parsed.RawQuery
	} else {
		query = strings.TrimPrefix(query, "?")
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return LoadParams{}, invalidFormat("malformed link query", err)
	}
	return LoadParams{
		Data:        strings.TrimSpace(values.Get(ParamData)),
		LoadFromURL: strings.TrimSpace(values.Get(ParamLoadFromURL)),
	}, nil
}

func withParam(base, key, value string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse app base url: %w", err)
	}
	q := parsed.Query()
	q.Del(ParamData)
	q.Del(ParamLoadFromURL)
	q.Set(key, value)
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// decodeBase64 accepts standard and URL-safe alphabets, padded or not. Query
// decoding can turn '+' into ' ', which is restored first.
func decodeBase64(value string) ([]byte, error) {
	value = strings.ReplaceAll(value, " ", "+")
	encodings := []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding}
	var lastErr error
	for _, enc := range encodings {
		out, err := enc.DecodeString(value)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
