// Package consensus picks a winner among several ScoredReplys and reports
// how much agreement backs that choice.
package consensus

import (
	"errors"
	"sort"

	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/scoring/similarity"
)

// Strategy ranks ScoredReplys and decides the winner.
type Strategy interface {
	Decide(scored []domain.ScoredReply) domain.ConsensusOutcome
}

func empty() domain.ConsensusOutcome {
	return domain.ConsensusOutcome{ConsensusReached: false, Confidence: 0}
}

// HighestScore picks the highest-scored reply outright.
type HighestScore struct{}

func (HighestScore) Decide(scored []domain.ScoredReply) domain.ConsensusOutcome {
	if len(scored) == 0 {
		return empty()
	}

	ranked := make([]domain.ScoredReply, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	winner := ranked[0]
	confidence := 1.0
	if len(ranked) > 1 {
		runnerUp := ranked[1].Score
		confidence = 0.5 + (winner.Score - runnerUp)
		if confidence > 1.0 {
			confidence = 1.0
		}
	}

	dissenting := make([]string, 0, len(ranked)-1)
	for _, r := range ranked[1:] {
		dissenting = append(dissenting, r.ProviderName)
	}

	return domain.ConsensusOutcome{
		ConsensusReached:    true,
		BestContent:         winner.Content,
		BestProvider:        winner.ProviderName,
		BestScore:           winner.Score,
		Confidence:          confidence,
		AgreementCount:      1,
		TotalModels:         len(ranked),
		DissentingProviders: dissenting,
		AllScored:           ranked,
	}
}

// MajorityVote greedily clusters replies by Jaccard token overlap and
// declares the largest cluster the winner, provided it holds more than half
// the replies.
type MajorityVote struct {
	Threshold float64
}

func (m MajorityVote) Decide(scored []domain.ScoredReply) domain.ConsensusOutcome {
	if len(scored) == 0 {
		return empty()
	}

	clusters := clusterByJaccard(scored, m.Threshold)
	largest := clusters[0]
	for _, c := range clusters[1:] {
		if len(c) > len(largest) {
			largest = c
		}
	}

	winner := largest[0]
	for _, r := range largest[1:] {
		if r.Score > winner.Score {
			winner = r
		}
	}

	inLargest := make(map[string]bool, len(largest))
	for _, r := range largest {
		inLargest[r.ProviderName] = true
	}
	dissenting := make([]string, 0, len(scored)-len(largest))
	for _, r := range scored {
		if !inLargest[r.ProviderName] {
			dissenting = append(dissenting, r.ProviderName)
		}
	}

	total := len(scored)
	reached := float64(len(largest)) > float64(total)/2

	return domain.ConsensusOutcome{
		ConsensusReached:    reached,
		BestContent:         winner.Content,
		BestProvider:        winner.ProviderName,
		BestScore:           winner.Score,
		Confidence:          float64(len(largest)) / float64(total),
		AgreementCount:      len(largest),
		TotalModels:         total,
		DissentingProviders: dissenting,
		AllScored:           scored,
	}
}

// clusterByJaccard seeds a cluster with each unassigned reply in order and
// attaches every later reply whose similarity to the seed meets threshold.
func clusterByJaccard(scored []domain.ScoredReply, threshold float64) [][]domain.ScoredReply {
	assigned := make([]bool, len(scored))
	var clusters [][]domain.ScoredReply

	for i := range scored {
		if assigned[i] {
			continue
		}
		cluster := []domain.ScoredReply{scored[i]}
		assigned[i] = true

		for j := i + 1; j < len(scored); j++ {
			if assigned[j] {
				continue
			}
			if similarity.Jaccard(scored[i].Content, scored[j].Content) >= threshold {
				cluster = append(cluster, scored[j])
				assigned[j] = true
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// ErrRequiredBelowOne is returned by NewQuorum when required < 1.
var ErrRequiredBelowOne = errors.New("consensus: quorum required count must be >= 1")

// Quorum picks the candidate whose similarity-≥-threshold peer count
// (including itself) is highest, provided that count reaches Required.
type Quorum struct {
	required  int
	threshold float64
}

// NewQuorum validates required before constructing a Quorum strategy.
func NewQuorum(required int, threshold float64) (*Quorum, error) {
	if required < 1 {
		return nil, ErrRequiredBelowOne
	}
	return &Quorum{required: required, threshold: threshold}, nil
}

func (q *Quorum) Decide(scored []domain.ScoredReply) domain.ConsensusOutcome {
	if len(scored) == 0 {
		return empty()
	}

	bestIdx, bestCount := 0, -1
	counts := make([]int, len(scored))
	for i, candidate := range scored {
		count := 0
		for _, peer := range scored {
			if similarity.Jaccard(candidate.Content, peer.Content) >= q.threshold {
				count++
			}
		}
		counts[i] = count
		if count > bestCount {
			bestCount = count
			bestIdx = i
		}
	}

	winner := scored[bestIdx]
	agreeing := make(map[string]bool)
	for _, candidate := range scored {
		if similarity.Jaccard(winner.Content, candidate.Content) >= q.threshold {
			agreeing[candidate.ProviderName] = true
		}
	}

	dissenting := make([]string, 0, len(scored))
	for _, r := range scored {
		if !agreeing[r.ProviderName] {
			dissenting = append(dissenting, r.ProviderName)
		}
	}

	return domain.ConsensusOutcome{
		ConsensusReached:    bestCount >= q.required,
		BestContent:         winner.Content,
		BestProvider:        winner.ProviderName,
		BestScore:           winner.Score,
		Confidence:          float64(bestCount) / float64(len(scored)),
		AgreementCount:      bestCount,
		TotalModels:         len(scored),
		DissentingProviders: dissenting,
		AllScored:           scored,
	}
}
