package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wenyongqd/anniversary/internal/fileutil"
	"github.com/wenyongqd/anniversary/internal/imaging"
	"github.com/wenyongqd/anniversary/internal/timeline"
)

func newAlbumCommand(ctx *commandContext) *cobra.Command {
	var width, height int

	cmd := &cobra.Command{
		Use:   "album <out.jpg>",
		Short: "Compose the generated images into one album sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd.Context(), workspaceOptions{}, func(ws *workspace) error {
				opts := imaging.AlbumOptions{
					Width:   ws.cfg.Imaging.AlbumWidth,
					Height:  ws.cfg.Imaging.AlbumHeight,
					Quality: ws.cfg.Imaging.JPEGQuality,
				}
				if width > 0 {
					opts.Width = width
				}
				if height > 0 {
					opts.Height = height
				}
				payload, err := timeline.RenderAlbum(cmd.Context(), ws.manager.Snapshot(), ws.gateway, opts)
				if err != nil {
					return err
				}
				if err := fileutil.WriteFileAtomic(args[0], payload.Data, 0o644); err != nil {
					return fmt.Errorf("write album: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %dx%d album to %s\n", opts.Width, opts.Height, args[0])
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&width, "width", 0, "Album width in pixels (default from config)")
	cmd.Flags().IntVar(&height, "height", 0, "Album height in pixels (default from config)")
	return cmd
}
