package conversation

import (
	"strings"
	"unicode"
)

// DefaultMinMessages is how long a transcript must be before a weak
// closing phrase counts as an ending.
const DefaultMinMessages = 6

// strongEndings close a conversation regardless of its length.
var strongEndings = []string{
	"have a great day",
	"have a good day",
	"have a nice day",
	"have a wonderful day",
	"have a good one",
	"goodbye",
	"good bye",
	"bye for now",
	"take care",
	"nice talking to you",
	"nice talking with you",
	"it was nice talking",
	"it was great talking",
	"nice chatting",
	"talk to you later",
	"see you later",
	"see you soon",
	"farewell",
}

// weakEndings are polite phrases that also appear mid-conversation.
var weakEndings = []string{
	"thank you for your time",
	"thanks for your time",
	"thank you so much",
	"thanks for chatting",
	"thanks for coming in",
	"all the best",
	"best of luck",
	"good luck",
	"that's all for today",
	"that is all for today",
}

// EndingDetector recognises a partner reply that closes the conversation.
// It is a phrase heuristic, not an intent classifier.
type EndingDetector struct {
	// MinMessages is the transcript length from which weak phrases count.
	MinMessages int
}

// Match reports whether reply ends the conversation given the transcript
// length including reply.
func (d EndingDetector) Match(reply string, transcriptLen int) bool {
	text := normalize(reply)
	if containsAny(text, strongEndings) {
		return true
	}
	threshold := d.MinMessages
	if threshold <= 0 {
		threshold = DefaultMinMessages
	}
	return transcriptLen >= threshold && containsAny(text, weakEndings)
}

// normalize lowercases s, turns punctuation into spaces and pads the result
// so phrases can be matched on word boundaries.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			b.WriteRune(r)
			space = false
		case r == '’':
			b.WriteByte('\'')
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, " "+p+" ") {
			return true
		}
	}
	return false
}
