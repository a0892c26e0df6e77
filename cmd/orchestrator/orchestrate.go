package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/username/llm-orchestrator/internal/consensus"
	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/execution"
	"github.com/username/llm-orchestrator/internal/orchestrator"
)

func newOrchestrateCmd() *cobra.Command {
	var (
		promptText    string
		providerNames []string
		systemPrompt  string
		strategyName  string
		consensusName string
		templateName  string
		templateVars  map[string]string
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "orchestrate",
		Short: "Run a prompt through every configured provider and settle on a consensus reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			requestID := uuid.New().String()
			logger := log.With().Str("request_id", requestID).Logger()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			overrides := orchestrator.Overrides{
				ProviderNames: providerNames,
				SystemPrompt:  systemPrompt,
			}
			if strategyName != "" {
				strategy, err := parseExecutionStrategy(strategyName)
				if err != nil {
					return err
				}
				overrides.Execution = strategy
			}
			if consensusName != "" {
				strategy, err := parseConsensusStrategy(consensusName)
				if err != nil {
					return err
				}
				overrides.Consensus = strategy
			}

			var outcome domain.ConsensusOutcome
			if templateName != "" {
				outcome, err = a.orchestrator.OrchestrateFromTemplate(ctx, templateName, templateVars, overrides)
			} else {
				if promptText == "" {
					return fmt.Errorf("orchestrate: either --prompt or --template is required")
				}
				outcome, err = a.orchestrator.Orchestrate(ctx, promptText, overrides)
			}
			if err != nil {
				logger.Error().Str("request_id", requestID).Err(err).Msg("orchestration failed")
			}

			return printOutcome(requestID, outcome, err)
		},
	}

	cmd.Flags().StringVar(&promptText, "prompt", "", "prompt to send to every provider")
	cmd.Flags().StringSliceVar(&providerNames, "providers", nil, "restrict to these providers (comma-separated), default is every configured provider")
	cmd.Flags().StringVar(&systemPrompt, "system", "", "system prompt to prepend")
	cmd.Flags().StringVar(&strategyName, "strategy", "", "execution strategy override: parallel, sequential, fallback")
	cmd.Flags().StringVar(&consensusName, "consensus", "", "consensus strategy override: highest-score, majority-vote, quorum")
	cmd.Flags().StringVar(&templateName, "template", "", "render a registered prompt template instead of --prompt")
	cmd.Flags().StringToStringVar(&templateVars, "var", nil, "template variable in key=value form, repeatable")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "overall deadline for the orchestration run")
	return cmd
}

func parseExecutionStrategy(name string) (execution.Strategy, error) {
	switch name {
	case "parallel":
		return execution.Parallel{}, nil
	case "sequential":
		return execution.Sequential{}, nil
	case "fallback":
		return execution.Fallback{Triggers: execution.TriggerAll}, nil
	default:
		return nil, fmt.Errorf("orchestrate: unknown --strategy %q", name)
	}
}

func parseConsensusStrategy(name string) (consensus.Strategy, error) {
	switch name {
	case "highest-score":
		return consensus.HighestScore{}, nil
	case "majority-vote":
		return consensus.MajorityVote{Threshold: 0.5}, nil
	case "quorum":
		return consensus.NewQuorum(2, 0.5)
	default:
		return nil, fmt.Errorf("orchestrate: unknown --consensus %q", name)
	}
}

// cliResult is the JSON shape printed to stdout: the subset of the
// consumer-facing result the Orchestrate/OrchestrateFromTemplate facade
// actually returns, plus the request ID stamped for this invocation.
type cliResult struct {
	RequestID            string              `json:"requestId"`
	Success              bool                `json:"success"`
	BestContent          string              `json:"bestContent,omitempty"`
	BestProvider         string              `json:"bestProvider,omitempty"`
	BestScore            float64             `json:"bestScore,omitempty"`
	ConsensusReached     bool                `json:"consensusReached"`
	ConsensusConfidence  float64             `json:"consensusConfidence"`
	AgreementCount       int                 `json:"agreementCount"`
	TotalModels          int                 `json:"totalModels"`
	DissentingProviders  []string            `json:"dissentingProviders,omitempty"`
	AllScored            []domain.ScoredReply `json:"allScored,omitempty"`
	FailureReason        string              `json:"failureReason,omitempty"`
}

func printOutcome(requestID string, outcome domain.ConsensusOutcome, orchestrateErr error) error {
	result := cliResult{
		RequestID:           requestID,
		Success:             orchestrateErr == nil,
		BestContent:         outcome.BestContent,
		BestProvider:        outcome.BestProvider,
		BestScore:           outcome.BestScore,
		ConsensusReached:    outcome.ConsensusReached,
		ConsensusConfidence: outcome.Confidence,
		AgreementCount:      outcome.AgreementCount,
		TotalModels:         outcome.TotalModels,
		DissentingProviders: outcome.DissentingProviders,
		AllScored:           outcome.AllScored,
	}
	if orchestrateErr != nil {
		result.FailureReason = orchestrateErr.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	return orchestrateErr
}
