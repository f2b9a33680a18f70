package main

import (
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"zapzap/internal/api"
	"zapzap/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var remote bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stage counts and preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				counts, err := s.store.Counts(cmd.Context())
				if err != nil {
					return err
				}
				checks := preflight.CheckDirectories(s.cfg)
				if remote {
					checks = append(checks, preflight.CheckCredentials(cmd.Context(), s.cfg)...)
				}
				status := api.DaemonStatus{
					Running:      daemonRunning(s.cfg),
					DatabasePath: s.store.Path(),
					LockFilePath: s.cfg.LockPath(),
					APIBind:      s.cfg.Paths.APIBind,
					ArchiveRoot:  s.cfg.Dropbox.Folder,
					Counts:       api.FromStageCounts(counts),
					Checks:       api.FromPreflight(checks),
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), status)
				}
				printStatus(cmd, status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", true, "Verify remote service credentials")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func printStatus(cmd *cobra.Command, status api.DaemonStatus) {
	p := newStatusPrinter(cmd.OutOrStdout())

	p.section("Daemon")
	if status.Running {
		p.line("Daemon", severityOK, "running")
	} else {
		p.line("Daemon", severityInfo, "not running")
	}
	p.line("API bind", severityInfo, status.APIBind)
	p.line("Database", severityInfo, status.DatabasePath)
	p.line("Archive root", severityInfo, status.ArchiveRoot)
	p.gap()

	p.section("Records")
	p.line("Total", severityInfo, strconv.Itoa(status.Counts.Total))
	p.line("Archived", severityOK, strconv.Itoa(status.Counts.Stored))
	for _, key := range sortedKeys(status.Counts.Conversion) {
		p.line("Conversion "+key, stageSeverity(key), strconv.Itoa(status.Counts.Conversion[key]))
	}
	for _, key := range sortedKeys(status.Counts.Archive) {
		p.line("Archive "+key, stageSeverity(key), strconv.Itoa(status.Counts.Archive[key]))
	}
	p.gap()

	p.section("Checks")
	for _, check := range status.Checks {
		sev := severityOK
		if !check.Passed {
			sev = severityError
		}
		p.line(check.Name, sev, check.Detail)
	}
}

func stageSeverity(stage string) severity {
	switch stage {
	case "errored", "failed":
		return severityWarn
	default:
		return severityInfo
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
