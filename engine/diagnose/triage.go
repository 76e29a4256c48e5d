package diagnose

import (
	"strings"
	"unicode"
)

// NeedMoreDetails is returned with every triage follow-up question.
const NeedMoreDetails = "I need more details to provide a solution, احتاج المزيد من التفاصيل لمساعدك."

// NoResults is the message for a query nothing matched.
const NoResults = "No relevant issues found. Try rephrasing your query or providing more details."

// TriageRule binds a vague trigger phrase to a clarifying question.
type TriageRule struct {
	Phrase   string
	Question string
}

// TriageRules are checked in order; the first phrase contained in the
// query wins.
var TriageRules = []TriageRule{
	{"car not starting", "Is the issue related to the battery, starter motor, or ignition?"},
	{"strange noise", "Where is the noise coming from? Engine, brakes, or tires?"},
	{"brakes issue", "Are the brakes making a noise, feeling weak, or completely failing?"},
	{"engine problem", "Is the engine misfiring, overheating, or consuming too much oil?"},
	{"ac problem", "Is the AC blowing hot air, making noise, or not turning on?"},
	{"السيارة لا تعمل", "هل المشكلة متعلقة بالبطارية، أو محرك التشغيل، أو الإشعال؟"},
	{"صوت غريب", "من اين الصوت بالتحديد ؟ المحرك, الفرامل ام الاطارات ؟"},
	{"مشكلة في الفرامل", "هل الفرامل تصدر صوتًا، أو تشعر بالضعف، أو تتعطل تمامًا؟"},
	{"مشكلة في المحرك", "هل المحرك لا يعمل بشكل صحيح، أو يسخن بشكل زائد، أو يستهلك كمية كبيرة من الزيت؟"},
	{"مشكلة في مكيف الهواء", "هل ينفث مكيف الهواء هواءً ساخنًا، أو يصدر ضوضاء، أو لا يعمل؟"},
}

// Triage returns the clarifying question for text when it contains a
// trigger phrase and has fewer than vagueLimit tokens. Longer queries carry
// enough detail to be ranked even if they mention a trigger phrase.
func Triage(rules []TriageRule, text string, vagueLimit int) (string, bool) {
	if len(strings.FieldsFunc(text, unicode.IsSpace)) >= vagueLimit {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, r := range rules {
		if strings.Contains(lower, strings.ToLower(r.Phrase)) {
			return r.Question, true
		}
	}
	return "", false
}
