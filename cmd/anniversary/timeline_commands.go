package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wenyongqd/anniversary/internal/share"
	"github.com/wenyongqd/anniversary/internal/timeline"
	"github.com/wenyongqd/anniversary/internal/timelinestore"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var date, message string

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Add photos, or load a timeline JSON file",
		Long: "Add uploads each photo to the asset gateway. When the selection contains a\n" +
			"timeline JSON file that parses, it replaces the workspace and the photos in\n" +
			"the same selection are ignored.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readSelection(args)
			if err != nil {
				return err
			}
			return ctx.withWorkspace(cmd.Context(), workspaceOptions{write: true}, func(ws *workspace) error {
				sel := share.ResolveSelection(files)
				for _, r := range sel.Rejected {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", r.Name, r.Err)
				}
				out := cmd.OutOrStdout()

				if sel.HasTimeline() {
					if err := adoptTimeline(cmd, ws, sel.Timeline, sel.ShareableURL); err != nil {
						return err
					}
					fmt.Fprintf(out, "Loaded %s from %s\n", pluralize(len(sel.Timeline), "entry", "entries"), sel.TimelineFile)
					if ignored := countImages(files); ignored > 0 {
						fmt.Fprintf(out, "Ignored %s in the same selection\n", pluralize(ignored, "image", "images"))
					}
					return nil
				}
				if len(sel.Images) == 0 {
					return errors.New("no photos or timeline files in selection")
				}

				created := make([]string, 0, len(sel.Images))
				for _, img := range sel.Images {
					entry, err := ws.manager.Create(cmd.Context(), timeline.NewPhoto{
						Preview: img.Name,
						Data:    img.Data,
						Date:    date,
						Message: message,
					})
					if err != nil {
						return err
					}
					created = append(created, entry.ID)
				}
				if err := ws.wait(cmd.Context()); err != nil {
					return err
				}
				return reportEntries(out, ws.manager, created)
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Date label for the new photos (default: today)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Caption for the new photos")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the timeline in date order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd.Context(), workspaceOptions{}, func(ws *workspace) error {
				entries := ws.manager.Display()
				if jsonOutput {
					if entries == nil {
						entries = []timeline.PhotoEntry{}
					}
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Timeline is empty")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					detail := e.GeneratedURL
					if e.Status == timeline.StatusError {
						detail = e.ErrorDetail
					}
					rows = append(rows, []string{
						shortID(e.ID),
						e.Date,
						colorizeStatus(e.Status, colorize),
						truncateText(e.Message, 40),
						truncateText(detail, 60),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Date", "Status", "Message", "Result"}, rows, nil, colorize))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print entries as JSON")
	return cmd
}

func newEditCommand(ctx *commandContext) *cobra.Command {
	var date, message string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the date or caption of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fields timeline.EditFields
			if cmd.Flags().Changed("date") {
				fields.Date = &date
			}
			if cmd.Flags().Changed("message") {
				fields.Message = &message
			}
			if fields.Date == nil && fields.Message == nil {
				return errors.New("nothing to change; pass --date or --message")
			}
			return ctx.withWorkspace(cmd.Context(), workspaceOptions{write: true}, func(ws *workspace) error {
				ids, err := resolveIDs(ws.manager.Snapshot(), args)
				if err != nil {
					return err
				}
				entry, err := ws.manager.Edit(cmd.Context(), ids[0], fields)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s): %s\n", shortID(entry.ID), entry.Date, entry.Message)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "New date label")
	cmd.Flags().StringVarP(&message, "message", "m", "", "New caption")
	return cmd
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "generate [id...]",
		Short: "Generate illustrations for entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("pass entry ids or --all")
			}
			return ctx.withWorkspace(cmd.Context(), workspaceOptions{write: true, generate: true}, func(ws *workspace) error {
				out := cmd.OutOrStdout()
				var ids []string
				if all {
					for _, e := range ws.manager.Snapshot() {
						if e.ImageURL == "" || strings.TrimSpace(e.Message) == "" {
							fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: needs an uploaded photo and a message\n", shortID(e.ID))
							continue
						}
						ids = append(ids, e.ID)
					}
				} else {
					resolved, err := resolveIDs(ws.manager.Snapshot(), args)
					if err != nil {
						return err
					}
					ids = resolved
				}
				if len(ids) == 0 {
					fmt.Fprintln(out, "Nothing to generate")
					return nil
				}

				started := make([]string, 0, len(ids))
				for _, id := range ids {
					if _, err := ws.manager.Generate(cmd.Context(), id); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", shortID(id), err)
						continue
					}
					started = append(started, id)
				}
				if err := ws.wait(cmd.Context()); err != nil {
					return err
				}
				if err := reportEntries(out, ws.manager, started); err != nil {
					return err
				}
				failed := 0
				for _, id := range started {
					if e, ok := ws.manager.Get(id); ok && e.Status == timeline.StatusError {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d generations failed", failed, len(started))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Generate every entry that has a photo and a message")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Remove entries from the timeline",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd.Context(), workspaceOptions{write: true}, func(ws *workspace) error {
				ids, err := resolveIDs(ws.manager.Snapshot(), args)
				if err != nil {
					return err
				}
				removed, err := ws.manager.Delete(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", pluralize(removed, "entry", "entries"))
				return nil
			})
		},
	}
}

func readSelection(paths []string) ([]share.SelectedFile, error) {
	files := make([]share.SelectedFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, share.SelectedFile{Name: filepath.Base(path), Data: data})
	}
	return files, nil
}

func countImages(files []share.SelectedFile) int {
	n := 0
	for _, f := range files {
		if !strings.EqualFold(filepath.Ext(f.Name), ".json") {
			n++
		}
	}
	return n
}

// adoptTimeline replaces the workspace list and remembers the link it came with.
func adoptTimeline(cmd *cobra.Command, ws *workspace, entries []timeline.PhotoEntry, shareableURL string) error {
	if err := ws.manager.Replace(cmd.Context(), entries); err != nil {
		return err
	}
	return ws.store.SetMeta(cmd.Context(), timelinestore.MetaShareableURL, shareableURL)
}

func reportEntries(out io.Writer, m *timeline.Manager, ids []string) error {
	for _, id := range ids {
		e, ok := m.Get(id)
		if !ok {
			continue
		}
		switch e.Status {
		case timeline.StatusError:
			fmt.Fprintf(out, "%s  %-8s %s\n", shortID(e.ID), statusLabel(e.Status), e.ErrorDetail)
		case timeline.StatusDone:
			fmt.Fprintf(out, "%s  %-8s %s\n", shortID(e.ID), statusLabel(e.Status), e.GeneratedURL)
		default:
			fmt.Fprintf(out, "%s  %-8s %s\n", shortID(e.ID), statusLabel(e.Status), e.ImageURL)
		}
	}
	return nil
}
