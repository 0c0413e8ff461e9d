package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/mqtt"
	"github.com/absmach/fedledger/pkg/sdk"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const mqttTimeout = 10 * time.Second

var (
	submitCBOR bool
	brokerCfg  = mqtt.Config{BaseTopic: DefBaseTopic}
)

// SetBroker sets the MQTT broker used by the watch command.
func SetBroker(cfg MQTTConfig) {
	brokerCfg = mqtt.Config{
		URL:       cfg.URL,
		QoS:       1,
		ClientID:  "fedledger-cli-" + uuid.NewString(),
		Username:  cfg.Username,
		Password:  cfg.Password,
		BaseTopic: cfg.BaseTopic,
		Timeout:   mqttTimeout,
	}
}

func NewRoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rounds [open|view|active|list|submit|contributions|contribution|complete|min-participants|watch]",
		Short: "Training rounds",
		Long:  `Open rounds, submit contributions, aggregate and follow round events.`,
	}

	openCmd := &cobra.Command{
		Use:   "open <model_id>",
		Short: "Open round",
		Long:  `Open the next round for a model.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			r, err := fsdk.OpenRound(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view <round_id>",
		Short: "View round",
		Long:  `View round.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			r, err := fsdk.GetRound(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}

	activeCmd := &cobra.Command{
		Use:   "active <model_id>",
		Short: "View active round",
		Long:  `View the model's round that currently accepts contributions.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			r, err := fsdk.GetActiveRound(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list <model_id>",
		Short: "List rounds",
		Long:  `List a model's rounds, newest first.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := fsdk.ListRounds(args[0], defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	submitCmd := &cobra.Command{
		Use:   "submit <round_id> <contribution.json>",
		Short: "Submit contribution",
		Long: `Submit a contribution read from a JSON file holding participant_id,
weight_delta, metrics and proof.

Examples:
  fedledger-cli rounds submit 1f0c9e6a-... ./update.json
  fedledger-cli rounds submit 1f0c9e6a-... ./update.json --cbor`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			data, err := os.ReadFile(args[1])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			var c sdk.Contribution
			if err := json.Unmarshal(data, &c); err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			submit := fsdk.SubmitContribution
			if submitCBOR {
				submit = fsdk.SubmitContributionCBOR
			}

			res, err := submit(args[0], c)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, res)
		},
	}
	submitCmd.Flags().BoolVar(&submitCBOR, "cbor", false, "Send the contribution CBOR encoded")

	contributionsCmd := &cobra.Command{
		Use:   "contributions <round_id>",
		Short: "List contributions",
		Long:  `List the contributions accepted for a round.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			cs, err := fsdk.ListContributions(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, cs)
		},
	}

	contributionCmd := &cobra.Command{
		Use:   "contribution <contribution_id>",
		Short: "View contribution",
		Long:  `View a single accepted contribution.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			c, err := fsdk.GetContribution(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, c)
		},
	}

	completeCmd := &cobra.Command{
		Use:   "complete <round_id>",
		Short: "Complete round",
		Long:  `Aggregate the round's contributions into the next global weights.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			res, err := fsdk.CompleteRound(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, res)
		},
	}

	minCmd := &cobra.Command{
		Use:   "min-participants <round_id> <n>",
		Short: "Set minimum participants",
		Long:  `Set how many contributions the round needs before it can be aggregated.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			n, err := strconv.Atoi(args[1])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			r, err := fsdk.SetRoundMinParticipants(args[0], n)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch [model_id]",
		Short: "Watch round events",
		Long:  `Print round lifecycle events from the broker until interrupted.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) > 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			modelID := ""
			if len(args) == 1 {
				modelID = args[0]
			}

			if err := watchRounds(cmd, modelID); err != nil {
				logErrorCmd(*cmd, err)
			}
		},
	}

	cmd.AddCommand(openCmd, viewCmd, activeCmd, listCmd, submitCmd, contributionsCmd, contributionCmd, completeCmd, minCmd, watchCmd)
	addPageFlags(cmd)

	return cmd
}

func watchRounds(cmd *cobra.Command, modelID string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	ps, err := mqtt.NewPubSub(brokerCfg, logger)
	if err != nil {
		return err
	}
	defer ps.Disconnect(context.Background())

	topic := coordinator.Topic(brokerCfg.BaseTopic, coordinator.EventType("+"))
	handler := func(_ string, msg map[string]any) error {
		if modelID != "" && msg["model_id"] != modelID {
			return nil
		}
		logJSONCmd(*cmd, msg)

		return nil
	}

	if err := ps.Subscribe(ctx, topic, handler); err != nil {
		return err
	}
	logSuccessCmd(*cmd, "Watching "+topic)

	<-ctx.Done()

	return ps.Unsubscribe(context.Background(), topic)
}
