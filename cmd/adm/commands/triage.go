package commands

import (
	"fmt"
	"strings"

	"safereport/internal/models"
	"safereport/internal/services"
	contextutils "safereport/internal/utils"

	"github.com/spf13/cobra"
)

// TriageCommands returns the queue inspection commands
func TriageCommands(triageService services.TriageServiceInterface) *cobra.Command {
	triageCmd := &cobra.Command{
		Use:   "triage",
		Short: "Inspect the agency work queue",
	}

	triageCmd.AddCommand(queueCmd(triageService))
	triageCmd.AddCommand(statsCmd(triageService))

	return triageCmd
}

func queueCmd(triageService services.TriageServiceInterface) *cobra.Command {
	var limit int
	var incidentType string

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Print open reports in triage order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := triageService.GetQueue(cmd.Context(), models.QueueFilter{
				Limit:        limit,
				IncidentType: models.IncidentType(strings.ToLower(incidentType)),
			})
			if err != nil {
				return contextutils.WrapError(err, "failed to load triage queue")
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}

			tw := newTable(cmd.OutOrStdout())
			_, _ = fmt.Fprintln(tw, "SCORE\tTYPE\tSTATUS\tREPORTER\tCREATED\tID")
			for _, e := range entries {
				reporter := "anonymous"
				if e.Reporter != nil {
					reporter = e.Reporter.Username
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					formatScore(e.EmergencyScore), e.IncidentType, e.Status, reporter,
					e.CreatedAt.Format("2006-01-02 15:04"), e.ID)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of reports (0 uses the configured default)")
	cmd.Flags().StringVar(&incidentType, "type", "", "Only show one incident type")
	return cmd
}

func statsCmd(triageService services.TriageServiceInterface) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print counts of open work",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := triageService.GetQueueStats(cmd.Context())
			if err != nil {
				return contextutils.WrapError(err, "failed to load queue stats")
			}

			tw := newTable(cmd.OutOrStdout())
			rows := []struct {
				label string
				value int
			}{
				{"Pending", stats.Pending},
				{"Reviewing", stats.Reviewing},
				{"Assigned", stats.Assigned},
				{"High priority", stats.HighPriority},
				{"Unscored", stats.Unscored},
				{"Spam", stats.Spam},
				{"Total open", stats.TotalOpen},
			}
			for _, r := range rows {
				_, _ = fmt.Fprintf(tw, "%s\t%d\n", r.label, r.value)
			}
			return tw.Flush()
		},
	}
}
