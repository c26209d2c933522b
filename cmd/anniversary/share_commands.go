package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wenyongqd/anniversary/internal/fileutil"
	"github.com/wenyongqd/anniversary/internal/logging"
	"github.com/wenyongqd/anniversary/internal/share"
	"github.com/wenyongqd/anniversary/internal/timelinestore"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var withLink bool

	cmd := &cobra.Command{
		Use:   "export <file.json>",
		Short: "Write the timeline to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := workspaceOptions{write: withLink}
			return ctx.withWorkspace(cmd.Context(), opts, func(ws *workspace) error {
				entries := ws.manager.Snapshot()
				shareable, err := ws.store.Meta(cmd.Context(), timelinestore.MetaShareableURL)
				if err != nil {
					return err
				}
				if withLink {
					link, _, err := share.SaveToCloud(cmd.Context(), ws.gateway, ws.cfg.Share.AppBaseURL, entries)
					if err != nil {
						return err
					}
					if err := ws.store.SetMeta(cmd.Context(), timelinestore.MetaShareableURL, link); err != nil {
						return err
					}
					shareable = link
				}

				var buf bytes.Buffer
				if err := share.ExportFile(&buf, entries, shareable); err != nil {
					return err
				}
				target := args[0]
				if err := fileutil.WriteFileAtomic(target, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Exported %s to %s\n", pluralize(len(entries), "entry", "entries"), target)
				if shareable != "" {
					fmt.Fprintf(out, "Shareable link: %s\n", shareable)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withLink, "with-link", false, "Save the timeline to the gateway and embed the shareable link")
	return cmd
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Replace the timeline with an exported JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			entries, shareable, err := share.ImportFile(data)
			if err != nil {
				return err
			}
			return ctx.withWorkspace(cmd.Context(), workspaceOptions{write: true}, func(ws *workspace) error {
				if err := adoptTimeline(cmd, ws, entries, shareable); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s from %s\n", pluralize(len(entries), "entry", "entries"), args[0])
				return nil
			})
		},
	}
}

func newShareCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "share",
		Short: "Print a link that embeds the timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd.Context(), workspaceOptions{}, func(ws *workspace) error {
				link, err := share.BuildDataLink(ws.cfg.Share.AppBaseURL, ws.manager.Snapshot())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), link)
				return nil
			})
		},
	}
}

func newSaveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Save the timeline to the gateway and print its link",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd.Context(), workspaceOptions{write: true}, func(ws *workspace) error {
				link, documentURL, err := share.SaveToCloud(cmd.Context(), ws.gateway, ws.cfg.Share.AppBaseURL, ws.manager.Snapshot())
				if err != nil {
					return err
				}
				if err := ws.store.SetMeta(cmd.Context(), timelinestore.MetaShareableURL, link); err != nil {
					return err
				}
				ws.logger.Info("timeline saved", logging.URL("document_url", documentURL))
				fmt.Fprintln(cmd.OutOrStdout(), link)
				return nil
			})
		},
	}
}

func newOpenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "open <link>",
		Short: "Replace the timeline with one from a shared link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd.Context(), workspaceOptions{write: true}, func(ws *workspace) error {
				loaded, err := share.Open(cmd.Context(), ws.gateway, args[0])
				if err != nil {
					return err
				}
				shareable := ""
				if loaded.Source != share.ParamData {
					shareable = args[0]
				}
				if err := adoptTimeline(cmd, ws, loaded.Entries, shareable); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Opened %s\n", pluralize(len(loaded.Entries), "entry", "entries"))
				return nil
			})
		},
	}
}
