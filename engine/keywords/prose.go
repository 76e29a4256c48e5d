package keywords

import (
	"fmt"

	"github.com/jdkato/prose/v2"
)

// ProseTagger tags English text with the prose averaged-perceptron model.
type ProseTagger struct{}

// Tag implements Tagger.
func (ProseTagger) Tag(text string) ([]TaggedToken, error) {
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		return nil, fmt.Errorf("keywords: prose: %w", err)
	}
	toks := doc.Tokens()
	out := make([]TaggedToken, len(toks))
	for i, tok := range toks {
		out[i] = TaggedToken{Text: tok.Text, Tag: tok.Tag}
	}
	return out, nil
}
