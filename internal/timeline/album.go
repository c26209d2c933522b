package timeline

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/wenyongqd/anniversary/internal/imaging"
	"github.com/wenyongqd/anniversary/internal/services"
)

const albumFetchConcurrency = 4

// Fetcher downloads a previously uploaded image.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (imaging.Payload, error)
}

// RenderAlbum composes the generated images of done entries, in display
// order and labelled by date, into a single album sheet.
func RenderAlbum(ctx context.Context, entries []PhotoEntry, fetcher Fetcher, opts imaging.AlbumOptions) (imaging.Payload, error) {
	var done []PhotoEntry
	for _, e := range DisplayOrder(entries) {
		if e.Status == StatusDone && e.GeneratedURL != "" {
			done = append(done, e)
		}
	}
	if len(done) == 0 {
		return imaging.Payload{}, services.Wrap(services.ErrValidation, "timeline", "album", "no generated images to place in the album", nil)
	}

	images := make([]image.Image, len(done))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(albumFetchConcurrency)
	for i, e := range done {
		g.Go(func() error {
			payload, err := fetcher.Fetch(gctx, e.GeneratedURL)
			if err != nil {
				return fmt.Errorf("fetch generated image for %s: %w", e.ID, err)
			}
			img, err := imaging.Decode(payload.Data)
			if err != nil {
				return fmt.Errorf("decode generated image for %s: %w", e.ID, err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return imaging.Payload{}, err
	}

	tiles := make([]imaging.AlbumImage, len(done))
	for i, e := range done {
		tiles[i] = imaging.AlbumImage{Label: e.Date, Image: images[i]}
	}
	return imaging.CreateAlbumPage(tiles, opts)
}
