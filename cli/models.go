package cli

import (
	"strconv"
	"strings"

	"github.com/absmach/fedledger/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	defOffset uint64 = 0
	defLimit  uint64 = 10
	modelKind string
)

var fsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	fsdk = s
}

func NewModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models [create|view|list|pause|resume|delete]",
		Short: "Global models",
		Long:  `Create, inspect, pause, resume and delete global models.`,
	}

	createCmd := &cobra.Command{
		Use:   "create <disease> [initial weights]",
		Short: "Create model",
		Long: `Create a global model for a disease.

Examples:
  # Zero-dimensional model, the first round fixes the dimension
  fedledger-cli models create diabetes

  # Three features, logistic regression
  fedledger-cli models create diabetes 0,0,0 --kind logistic-regression`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 || len(args) > 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			var weights []float64
			if len(args) == 2 {
				w, err := parseFloats(args[1])
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				weights = w
			}

			m, err := fsdk.CreateModel(args[0], modelKind, weights)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	}
	createCmd.Flags().StringVar(&modelKind, "kind", "", "Model kind (default logistic-regression)")

	viewCmd := &cobra.Command{
		Use:   "view <id>",
		Short: "View model",
		Long:  `View model with its current global weights.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			m, err := fsdk.GetModel(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List models",
		Long:  `List models.`,
		Run: func(cmd *cobra.Command, args []string) {
			page, err := fsdk.ListModels(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	pauseCmd := &cobra.Command{
		Use:   "pause <id>",
		Short: "Pause model",
		Long:  `Pause a model. Fails while a round is open.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			m, err := fsdk.PauseModel(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume model",
		Long:  `Resume a paused model.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			m, err := fsdk.ResumeModel(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete model",
		Long:  `Delete model.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := fsdk.DeleteModel(args[0]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	cmd.AddCommand(createCmd, viewCmd, listCmd, pauseCmd, resumeCmd, deleteCmd)
	addPageFlags(cmd)

	return cmd
}

func addPageFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Uint64VarP(
		&defOffset,
		"offset",
		"o",
		defOffset,
		"Offset",
	)

	cmd.PersistentFlags().Uint64VarP(
		&defLimit,
		"limit",
		"l",
		defLimit,
		"Limit",
	)
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, nil
}
