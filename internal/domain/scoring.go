package domain

import "time"

// ScoredReply is a Reply that has passed through the scoring step. Score is
// always in [0,1]; Breakdown holds the contribution of each named scorer
// when the composite Weighted scorer was used.
type ScoredReply struct {
	ProviderName string
	Content      string
	Score        float64
	Breakdown    map[string]float64
	ResponseTime time.Duration
	TotalTokens  int
}

// ConsensusOutcome is produced once per pipeline pass by a ConsensusStrategy.
type ConsensusOutcome struct {
	ConsensusReached     bool
	BestContent          string
	BestProvider         string
	BestScore            float64
	Confidence           float64
	AgreementCount       int
	TotalModels          int
	DissentingProviders  []string
	AllScored            []ScoredReply
}
