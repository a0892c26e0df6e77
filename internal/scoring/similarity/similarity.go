// Package similarity implements the two text-similarity metrics the
// orchestration core needs: TF-IDF cosine similarity for scoring how
// representative a reply is of its peers, and plain Jaccard token overlap
// for clustering replies into a majority vote.
package similarity

import (
	"math"
	"strings"
)

const cutset = ",.;:!?()[]{}\"'"

// tokenize lowercases and splits on whitespace and punctuation, dropping
// single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(" \t\n\r", r) || strings.ContainsRune(cutset, r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.Trim(f, cutset))
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

// Jaccard returns the simple token-overlap similarity of a and b: the size
// of their token-set intersection over the size of their union. Two empty
// token sets are defined as identical (similarity 1.0).
func Jaccard(a, b string) float64 {
	setA := toSet(tokenize(a))
	setB := toSet(tokenize(b))

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// CosineTFIDF returns the TF-IDF cosine similarity of a and b. When corpus
// is empty, the comparison is scored against the two-document corpus
// {a, b} itself.
func CosineTFIDF(a, b string, corpus []string) float64 {
	if len(corpus) == 0 {
		corpus = []string{a, b}
	}

	docs := make([][]string, len(corpus))
	for i, doc := range corpus {
		docs[i] = tokenize(doc)
	}

	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, tok := range doc {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}
	n := float64(len(docs))

	idf := func(term string) float64 {
		d := df[term]
		if d == 0 {
			return 0
		}
		return math.Log(n/float64(d)) + 1
	}

	vecA := vectorize(tokenize(a), idf)
	vecB := vectorize(tokenize(b), idf)

	return cosine(vecA, vecB)
}

func vectorize(tokens []string, idf func(string) float64) map[string]float64 {
	counts := make(map[string]int)
	for _, t := range tokens {
		counts[t]++
	}
	vec := make(map[string]float64, len(counts))
	for term, count := range counts {
		tf := 1 + math.Log(float64(count))
		vec[term] = tf * idf(term)
	}
	return vec
}

func cosine(a, b map[string]float64) float64 {
	var dot, magA, magB float64
	for term, weight := range a {
		dot += weight * b[term]
		magA += weight * weight
	}
	for _, weight := range b {
		magB += weight * weight
	}
	magA = math.Sqrt(magA)
	magB = math.Sqrt(magB)
	if magA < 1e-10 || magB < 1e-10 {
		return 0
	}
	return dot / (magA * magB)
}
