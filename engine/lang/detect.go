// Package lang detects the query language and adapts external translation
// providers so that a failing provider never breaks a request.
package lang

import "github.com/carfix-labs/carfix/engine/domain"

// Arabic block boundaries.
const (
	arabicFirst = 0x0600
	arabicLast  = 0x06FF
)

// Detect returns LangArabic if any rune of text falls in the Arabic block,
// otherwise LangEnglish. Mixed-script text counts as Arabic.
func Detect(text string) domain.Language {
	for _, r := range text {
		if r >= arabicFirst && r <= arabicLast {
			return domain.LangArabic
		}
	}
	return domain.LangEnglish
}
