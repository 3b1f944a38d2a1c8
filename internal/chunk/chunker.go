// Package chunk splits cleaned source text into overlapping, sentence-aware
// segments sized for embedding. Chunking is deterministic: the same text and
// config always produce the same chunk sequence.
package chunk

import (
	"strings"
	"unicode"

	"github.com/chirp-labs/chirp/internal/domain"
)

// charsPerToken is the rough heuristic used to budget chunks: 1 token ≈ 4
// characters of English text.
const charsPerToken = 4

// Config controls chunk sizing, in estimated tokens.
type Config struct {
	TargetTokens  int
	OverlapTokens int

	// MinTailTokens is the smallest acceptable final chunk. A trailing
	// fragment below this is merged into the previous chunk instead of being
	// stored as a near-useless retrieval unit.
	MinTailTokens int
}

// DefaultConfig provides the standard sizing for knowledge-base ingestion.
func DefaultConfig() Config {
	return Config{
		TargetTokens:  500,
		OverlapTokens: 50,
		MinTailTokens: 125,
	}
}

// EstimateTokens estimates the token count of text.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}

// SplitSentences splits text at sentence-ending punctuation followed by
// whitespace. Runs of closing punctuation (e.g. "?!" or "...") stay attached
// to their sentence.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if !isSentenceEnd(r) {
			continue
		}
		// Consume the rest of a punctuation run before deciding
		runLen := 1
		allDots := r == '.'
		for i+1 < len(runes) && isSentenceEnd(runes[i+1]) {
			i++
			current.WriteRune(runes[i])
			runLen++
			allDots = allDots && runes[i] == '.'
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		// An ellipsis trailing into a lowercase word is a pause inside the
		// sentence, not a boundary.
		if allDots && runLen >= 3 && startsLower(runes[i+1:]) {
			continue
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// startsLower reports whether the first non-space rune is a lowercase letter.
func startsLower(runes []rune) bool {
	for _, r := range runes {
		if unicode.IsSpace(r) {
			continue
		}
		return unicode.IsLower(r)
	}
	return false
}

// Split chunks text into overlapping sentence-aligned segments. Each chunk is
// packed with whole sentences up to the target budget; the next chunk repeats
// the trailing sentences of the previous one up to the overlap budget before
// continuing. Text shorter than one chunk yields a single chunk with no
// overlap.
func Split(text, source string, cfg Config) []domain.Chunk {
	if cfg.TargetTokens <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.MinTailTokens <= 0 {
		cfg.MinTailTokens = cfg.TargetTokens / 4
	}

	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}

	sentences := SplitSentences(clean)
	if len(sentences) == 0 {
		return nil
	}

	type packed struct {
		sentences []string
		carried   int // leading sentences repeated from the previous chunk
	}

	var groups []packed
	var current []string
	currentTokens := 0
	carried := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		groups = append(groups, packed{sentences: current, carried: carried})
	}

	for _, sentence := range sentences {
		sentenceTokens := EstimateTokens(sentence)

		// A single sentence over the budget becomes its own oversized chunk
		// rather than being cut mid-sentence.
		if sentenceTokens > cfg.TargetTokens && len(current) == 0 {
			groups = append(groups, packed{sentences: []string{sentence}})
			carried = 0
			continue
		}

		if currentTokens+sentenceTokens > cfg.TargetTokens && len(current) > 0 {
			flush()
			current, currentTokens = overlapTail(current, cfg.OverlapTokens)
			carried = len(current)
		}

		current = append(current, sentence)
		currentTokens += sentenceTokens
	}
	flush()

	// Merge an undersized trailing fragment into the previous chunk, skipping
	// the sentences it repeats from that chunk.
	if len(groups) > 1 {
		tail := groups[len(groups)-1]
		tailText := strings.Join(tail.sentences, " ")
		if EstimateTokens(tailText) < cfg.MinTailTokens {
			prev := &groups[len(groups)-2]
			prev.sentences = append(prev.sentences, tail.sentences[tail.carried:]...)
			groups = groups[:len(groups)-1]
		}
	}

	chunks := make([]domain.Chunk, 0, len(groups))
	for i, g := range groups {
		t := strings.Join(g.sentences, " ")
		chunks = append(chunks, domain.Chunk{
			ChunkIndex: i,
			Content:    t,
			Source:     source,
			TokenCount: EstimateTokens(t),
		})
	}

	return chunks
}

// overlapTail returns the trailing sentences of the previous chunk that fit
// within the overlap budget, oldest first, with their token total.
func overlapTail(sentences []string, overlapTokens int) ([]string, int) {
	if overlapTokens <= 0 {
		return nil, 0
	}

	total := 0
	start := len(sentences)
	for start > 0 {
		tokens := EstimateTokens(sentences[start-1])
		if total+tokens > overlapTokens {
			break
		}
		total += tokens
		start--
	}

	if start == len(sentences) {
		return nil, 0
	}

	tail := make([]string, len(sentences)-start)
	copy(tail, sentences[start:])
	return tail, total
}
