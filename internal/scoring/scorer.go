// Package scoring maps a reply, in the context of its peers, to a [0,1]
// quality score along several independent axes, and composes those axes
// into a single weighted score.
package scoring

import (
	"context"

	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/scoring/similarity"
	"github.com/username/llm-orchestrator/internal/validation"
)

// Scorer maps a reply plus its peers to a [0,1] quality score.
type Scorer interface {
	Name() string
	Score(ctx context.Context, reply domain.Reply, allReplies []domain.Reply) float64
}

func successfulPeers(reply domain.Reply, allReplies []domain.Reply) []domain.Reply {
	out := make([]domain.Reply, 0, len(allReplies))
	for _, r := range allReplies {
		if r.Success {
			out = append(out, r)
		}
	}
	return out
}

// ResponseTime linearly normalizes duration across successful peers: the
// fastest scores 1.0, the slowest 0.0. Degenerate cases (one reply, all
// equal) score 1.0.
type ResponseTime struct{}

func (ResponseTime) Name() string { return "ResponseTime" }

func (ResponseTime) Score(_ context.Context, reply domain.Reply, allReplies []domain.Reply) float64 {
	peers := successfulPeers(reply, allReplies)
	if len(peers) < 2 {
		return 1.0
	}

	min, max := peers[0].Duration, peers[0].Duration
	for _, p := range peers {
		if p.Duration < min {
			min = p.Duration
		}
		if p.Duration > max {
			max = p.Duration
		}
	}
	if min == max {
		return 1.0
	}
	return float64(max-reply.Duration) / float64(max-min)
}

// TokenEfficiency linearly normalizes completion-token count across
// successful peers with a positive token count: fewer tokens scores higher.
type TokenEfficiency struct{}

func (TokenEfficiency) Name() string { return "TokenEfficiency" }

func (TokenEfficiency) Score(_ context.Context, reply domain.Reply, allReplies []domain.Reply) float64 {
	peers := make([]domain.Reply, 0, len(allReplies))
	for _, r := range successfulPeers(reply, allReplies) {
		if r.CompletionTokens > 0 {
			peers = append(peers, r)
		}
	}
	if len(peers) < 2 || reply.CompletionTokens <= 0 {
		return 1.0
	}

	min, max := peers[0].CompletionTokens, peers[0].CompletionTokens
	for _, p := range peers {
		if p.CompletionTokens < min {
			min = p.CompletionTokens
		}
		if p.CompletionTokens > max {
			max = p.CompletionTokens
		}
	}
	if min == max {
		return 1.0
	}
	return float64(max-reply.CompletionTokens) / float64(max-min)
}

// Consensus scores a reply by its average TF-IDF cosine similarity to every
// other successful reply. A single reply scores 1.0.
type Consensus struct{}

func (Consensus) Name() string { return "Consensus" }

func (Consensus) Score(_ context.Context, reply domain.Reply, allReplies []domain.Reply) float64 {
	peers := successfulPeers(reply, allReplies)
	others := make([]domain.Reply, 0, len(peers))
	for _, p := range peers {
		if p.ProviderName != reply.ProviderName {
			others = append(others, p)
		}
	}
	if len(others) == 0 {
		return 1.0
	}

	corpus := make([]string, 0, len(peers))
	for _, p := range peers {
		corpus = append(corpus, p.Content)
	}

	var total float64
	for _, other := range others {
		total += similarity.CosineTFIDF(reply.Content, other.Content, corpus)
	}
	return total / float64(len(others))
}

// ValidationPass scores a reply by the fraction of Validators that pass.
type ValidationPass struct {
	Validators []validation.Validator
}

func (ValidationPass) Name() string { return "ValidationPass" }

func (v ValidationPass) Score(ctx context.Context, reply domain.Reply, _ []domain.Reply) float64 {
	if len(v.Validators) == 0 {
		return 1.0
	}
	passed := 0
	for _, validator := range v.Validators {
		if validator.Validate(ctx, reply.Content).Valid {
			passed++
		}
	}
	return float64(passed) / float64(len(v.Validators))
}

// weightedComponent pairs a scorer with its non-negative weight.
type weightedComponent struct {
	Scorer Scorer
	Weight float64
}

// Weighted composes several scorers into one: score = Σ(scorer·weight) / Σweight.
// A non-positive total weight scores 0.
type Weighted struct {
	components []weightedComponent
}

// NewWeighted builds an empty Weighted scorer; use Add to populate it.
func NewWeighted() *Weighted {
	return &Weighted{}
}

// Add appends a (scorer, weight) pair to the composite.
func (w *Weighted) Add(scorer Scorer, weight float64) *Weighted {
	w.components = append(w.components, weightedComponent{Scorer: scorer, Weight: weight})
	return w
}

func (w *Weighted) Name() string { return "Weighted" }

func (w *Weighted) Score(ctx context.Context, reply domain.Reply, allReplies []domain.Reply) float64 {
	score, _ := w.ScoreDetailed(ctx, reply, allReplies)
	return score
}

// ScoreDetailed behaves like Score but also reports each component
// scorer's contribution, keyed by name.
func (w *Weighted) ScoreDetailed(ctx context.Context, reply domain.Reply, allReplies []domain.Reply) (float64, map[string]float64) {
	breakdown := make(map[string]float64, len(w.components))
	var sumWeighted, sumWeight float64
	for _, c := range w.components {
		if c.Weight < 0 {
			continue
		}
		s := c.Scorer.Score(ctx, reply, allReplies)
		breakdown[c.Scorer.Name()] = s
		sumWeighted += s * c.Weight
		sumWeight += c.Weight
	}
	if sumWeight <= 0 {
		return 0, breakdown
	}
	return sumWeighted / sumWeight, breakdown
}
