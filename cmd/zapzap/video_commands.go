package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"zapzap/internal/api"
	"zapzap/internal/records"
)

const createdLayout = "2006-01-02 15:04"

func newListCommand(ctx *commandContext) *cobra.Command {
	var skip, limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				videos, total, err := s.store.List(cmd.Context(), skip, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), api.VideoListResponse{Items: api.FromVideos(videos), Total: total})
				}
				out := cmd.OutOrStdout()
				if len(videos) == 0 {
					fmt.Fprintln(out, "No videos")
					return nil
				}
				printTable(out,
					[]string{"ID", "Title", "Language", "Created", "Stage", "Archived"},
					videoRows(videos),
				)
				fmt.Fprintf(out, "Showing %d of %d\n", len(videos), total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&skip, "skip", 0, "Number of videos to skip")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of videos to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func videoRows(videos []records.Video) [][]string {
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{
			v.ID,
			truncate(v.Title, 40),
			v.Language,
			formatCreated(v.CreatedAt),
			api.StageLabel(v),
			v.ArchivedPath,
		})
	}
	return rows
}

func formatCreated(unix int64) string {
	if unix <= 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format(createdLayout)
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <video-id>",
		Short: "Show one video record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				video, err := s.store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if video == nil {
					return fmt.Errorf("video %s not found", args[0])
				}
				dto := api.FromVideo(*video)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), dto)
				}
				printTable(cmd.OutOrStdout(), []string{"Field", "Value"}, videoDetailRows(dto))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func videoDetailRows(v api.Video) [][]string {
	rows := [][]string{
		{"ID", v.VideoID},
		{"Title", v.Title},
		{"Language", v.Language},
		{"Created", formatCreated(v.CreatedAt)},
		{"Stage", v.StageLabel},
		{"Source URL", v.DownloadURL},
		{"Conversion job", v.CCJobID},
		{"Conversion status", v.CCStatus},
		{"Conversion error", v.CCError},
		{"Converted URL", v.ExportURL},
		{"Archive job", v.DropboxJobID},
		{"Archive status", v.DropboxStatus},
		{"Archive error", v.DropboxError},
		{"Archive target", v.DropboxTarget},
		{"Archive retry at", v.DropboxRetryAt},
		{"Archived path", v.DropboxPath},
		{"Archive URL", v.DropboxURL},
		{"Stored", yesNo(v.Stored)},
		{"Stored at", v.StoredAt},
		{"Updated", v.UpdatedAt},
	}
	if len(v.DropboxFailure) > 0 {
		rows = append(rows, []string{"Archive failure", string(v.DropboxFailure)})
	}
	out := rows[:0]
	for _, row := range rows {
		if strings.TrimSpace(row[1]) != "" {
			out = append(out, row)
		}
	}
	return out
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var page, limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show persisted log entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				entries, err := s.store.ListLogs(cmd.Context(), page, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), api.LogListResponse{Items: api.FromLogEntries(entries)})
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No log entries")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						strconv.FormatInt(entry.ID, 10),
						entry.Timestamp.UTC().Format(time.DateTime),
						strings.ToUpper(entry.Level),
						entry.Component,
						entry.VideoID,
						truncate(entry.Message, 60),
					})
				}
				printTable(out, []string{"ID", "Time", "Level", "Component", "Video", "Message"}, rows, 0)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&limit, "limit", 40, "Entries per page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
