package timeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/wenyongqd/anniversary/internal/imaging"
	"github.com/wenyongqd/anniversary/internal/services"
	"github.com/wenyongqd/anniversary/internal/timeline"
)

type mapFetcher struct {
	mu      sync.Mutex
	objects map[string][]byte
	fetched []string
}

func (f *mapFetcher) Fetch(_ context.Context, rawURL string) (imaging.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, rawURL)
	data, ok := f.objects[rawURL]
	if !ok {
		return imaging.Payload{}, errors.New("http 404")
	}
	return imaging.Payload{ContentType: "image/png", Data: data}, nil
}

func TestRenderAlbumUsesDoneEntriesOnly(t *testing.T) {
	fetcher := &mapFetcher{objects: map[string][]byte{
		"https://cdn.example.com/g1.png": pngBytes(t, 40, 30),
		"https://cdn.example.com/g2.png": pngBytes(t, 30, 40),
	}}
	entries := []timeline.PhotoEntry{
		{ID: "b", Date: "2021", Status: timeline.StatusDone, ImageURL: "s", GeneratedURL: "https://cdn.example.com/g2.png"},
		{ID: "x", Date: "2015", Status: timeline.StatusError, ErrorDetail: "boom", GeneratedURL: "https://cdn.example.com/stale.png"},
		{ID: "a", Date: "2019", Status: timeline.StatusDone, ImageURL: "s", GeneratedURL: "https://cdn.example.com/g1.png"},
		{ID: "i", Date: "2010", Status: timeline.StatusIdle, ImageURL: "s"},
	}

	payload, err := timeline.RenderAlbum(context.Background(), entries, fetcher, imaging.AlbumOptions{Width: 320, Height: 200})
	if err != nil {
		t.Fatalf("RenderAlbum: %v", err)
	}
	if payload.ContentType != imaging.JPEGContentType {
		t.Fatalf("unexpected content type %q", payload.ContentType)
	}
	img, err := imaging.Decode(payload.Data)
	if err != nil {
		t.Fatalf("decode album: %v", err)
	}
	if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 200 {
		t.Fatalf("unexpected album size %v", img.Bounds())
	}
	if len(fetcher.fetched) != 2 {
		t.Fatalf("expected two fetches, got %v", fetcher.fetched)
	}
}

func TestRenderAlbumErrors(t *testing.T) {
	_, err := timeline.RenderAlbum(context.Background(), []timeline.PhotoEntry{{ID: "a", Status: timeline.StatusIdle}}, &mapFetcher{}, imaging.AlbumOptions{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty album, got %v", err)
	}

	entries := []timeline.PhotoEntry{{ID: "a", Status: timeline.StatusDone, GeneratedURL: "https://cdn.example.com/missing.png"}}
	if _, err := timeline.RenderAlbum(context.Background(), entries, &mapFetcher{}, imaging.AlbumOptions{}); err == nil {
		t.Fatal("expected fetch error")
	}
}
