package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/clipperhouse/uax29/v2/sentences"
)

// DefaultSummaryWords is the summary length used when none is configured.
const DefaultSummaryWords = 50

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

var (
	positiveWords = []string{"good", "great", "excellent", "wonderful", "remarkable", "positive", "successful"}
	negativeWords = []string{"bad", "terrible", "awful", "negative", "sad", "problem", "error"}
)

// WordCount counts whitespace-separated words of "text".
type WordCount struct{}

func (WordCount) Name() string { return "word_count" }

func (WordCount) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := stringParam(input, "text")
	if err != nil {
		return nil, err
	}
	n := len(strings.Fields(text))
	return map[string]interface{}{
		"count":   n,
		ResultKey: fmt.Sprintf("word count: %d", n),
	}, nil
}

// SentenceCount counts the sentences of "text" using Unicode sentence
// boundaries. Whitespace-only segments are not sentences.
type SentenceCount struct{}

func (SentenceCount) Name() string { return "sentence_count" }

func (SentenceCount) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := stringParam(input, "text")
	if err != nil {
		return nil, err
	}
	n := countSentences(text)
	return map[string]interface{}{
		"count":   n,
		ResultKey: fmt.Sprintf("sentence count: %d", n),
	}, nil
}

func countSentences(text string) int {
	n := 0
	iter := sentences.FromString(text)
	for iter.Next() {
		if strings.TrimSpace(iter.Value()) != "" {
			n++
		}
	}
	return n
}

// Sentiment labels "text" by comparing how many positive and negative
// keywords it contains. Each keyword counts once however often it appears.
type Sentiment struct{}

func (Sentiment) Name() string { return "sentiment" }

func (Sentiment) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := stringParam(input, "text")
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(text)
	pos, neg := keywordHits(lower, positiveWords), keywordHits(lower, negativeWords)
	label := SentimentNeutral
	switch {
	case pos > neg:
		label = SentimentPositive
	case neg > pos:
		label = SentimentNegative
	}
	return map[string]interface{}{
		"label":    label,
		"positive": pos,
		"negative": neg,
		ResultKey:  "sentiment: " + label,
	}, nil
}

func keywordHits(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

// Summary truncates "text" to its first "max_words" words, appending "..."
// when anything was cut. Shorter text is returned whole.
type Summary struct {
	// Words is the default length when the input does not set max_words.
	// Zero means DefaultSummaryWords.
	Words int
}

func (Summary) Name() string { return "summary" }

func (s Summary) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := stringParam(input, "text")
	if err != nil {
		return nil, err
	}
	def := s.Words
	if def <= 0 {
		def = DefaultSummaryWords
	}
	limit, err := optionalInt(input, "max_words", def)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: max_words must be positive", ErrInvalidInput)
	}

	summary, truncated := Summarize(text, limit)
	return map[string]interface{}{
		"summary":   summary,
		"truncated": truncated,
		ResultKey:   summary,
	}, nil
}

// Summarize returns the first limit words of text. Whitespace is normalised
// only when the text is truncated.
func Summarize(text string, limit int) (string, bool) {
	words := strings.Fields(text)
	if len(words) <= limit {
		return text, false
	}
	return strings.Join(words[:limit], " ") + "...", true
}
