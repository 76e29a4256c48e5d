// Package keywords reduces free text to the set of content words used for
// matching against the knowledge base.
package keywords

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/carfix-labs/carfix/pkg/fn"
)

var folder = cases.Fold()

// edgePunct is trimmed from both ends of every token.
const edgePunct = "?.,!;:'\"()[]{}-«»،؛؟"

// TaggedToken is a token with its Penn Treebank part-of-speech tag.
type TaggedToken struct {
	Text string
	Tag  string
}

// Tagger assigns part-of-speech tags to the tokens of a text.
type Tagger interface {
	Tag(text string) ([]TaggedToken, error)
}

// Extractor turns query text into keywords. With a Tagger it keeps nouns,
// verbs and adjectives; otherwise, or when tagging yields nothing, it falls
// back to a whitespace split.
type Extractor struct {
	tagger Tagger
	logger *slog.Logger
}

// New creates an Extractor. tagger may be nil.
func New(tagger Tagger, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{tagger: tagger, logger: logger}
}

// Extract returns the distinct keywords of text in order of appearance.
// Empty or whitespace-only text yields an empty slice.
func (e *Extractor) Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	if e.tagger != nil {
		tokens, err := e.tagger.Tag(text)
		if err != nil {
			e.logger.Warn("keywords: tagger failed, using split fallback", "err", err)
		} else if kws := contentWords(tokens); len(kws) > 0 {
			return kws
		}
	}
	return Fallback(text)
}

// Fallback splits on whitespace, trims edge punctuation and keeps tokens
// longer than two runes.
func Fallback(text string) []string {
	out := []string{}
	for _, w := range strings.Fields(text) {
		w = Normalize(strings.Trim(w, edgePunct))
		if utf8.RuneCountInString(w) > 2 {
			out = append(out, w)
		}
	}
	return dedupe(out)
}

func contentWords(tokens []TaggedToken) []string {
	out := []string{}
	for _, tok := range tokens {
		if !isContentTag(tok.Tag) {
			continue
		}
		w := Normalize(strings.Trim(tok.Text, edgePunct))
		if w != "" {
			out = append(out, w)
		}
	}
	return dedupe(out)
}

func isContentTag(tag string) bool {
	return strings.HasPrefix(tag, "NN") || strings.HasPrefix(tag, "VB") || strings.HasPrefix(tag, "JJ")
}

// Normalize applies NFKC and Unicode case folding. Knowledge-base keywords
// and query keywords both pass through it so that set comparison is
// case-insensitive.
func Normalize(s string) string {
	s = folder.String(norm.NFKC.String(strings.TrimSpace(s)))
	return strings.ReplaceAll(s, "’", "'")
}

// NormalizeAll normalizes every entry, dropping blanks and duplicates.
func NormalizeAll(words []string) []string {
	out := fn.FilterMap(words, func(w string) (string, bool) {
		n := Normalize(w)
		return n, n != ""
	})
	return dedupe(out)
}

func dedupe(words []string) []string {
	u := fn.Unique(words)
	if u == nil {
		return []string{}
	}
	return u
}
