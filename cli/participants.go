package cli

import "github.com/spf13/cobra"

func NewParticipantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participants [register|view|list|contributions|deactivate|report]",
		Short: "Registered participants",
		Long:  `Register, inspect, deactivate and report participants.`,
	}

	registerCmd := &cobra.Command{
		Use:   "register <wallet_id> [display_name]",
		Short: "Register participant",
		Long:  `Register a wallet. A random display name is assigned when none is given.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 || len(args) > 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			name := ""
			if len(args) == 2 {
				name = args[1]
			}

			p, err := fsdk.RegisterParticipant(args[0], name)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view <wallet_id>",
		Short: "View participant",
		Long:  `View participant.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := fsdk.GetParticipant(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List participants",
		Long:  `List participants.`,
		Run: func(cmd *cobra.Command, args []string) {
			page, err := fsdk.ListParticipants(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	contributionsCmd := &cobra.Command{
		Use:   "contributions <wallet_id>",
		Short: "List participant contributions",
		Long:  `List the participant's contributions across all rounds, newest first.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := fsdk.ListParticipantContributions(args[0], defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	deactivateCmd := &cobra.Command{
		Use:   "deactivate <wallet_id>",
		Short: "Deactivate participant",
		Long:  `Deactivate participant. Later submissions are rejected.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := fsdk.DeactivateParticipant(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	reportCmd := &cobra.Command{
		Use:   "report <wallet_id> <round_id> <reason>",
		Short: "Report byzantine behaviour",
		Long:  `Report a participant's contribution to a round as byzantine and lower its reputation.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 3 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := fsdk.ReportByzantine(args[0], args[1], args[2])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	cmd.AddCommand(registerCmd, viewCmd, listCmd, contributionsCmd, deactivateCmd, reportCmd)
	addPageFlags(cmd)

	return cmd
}
