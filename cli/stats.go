package cli

import "github.com/spf13/cobra"

func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Federation statistics",
		Long:  `Show active model count, average accuracy and contribution totals.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			stats, err := fsdk.Stats()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, stats)
		},
	}
}
