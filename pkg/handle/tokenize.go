package handle

import "regexp"

// separators are the characters people put between a handle and the rest of
// their bio. A period only separates when followed by whitespace or the end
// of the text, so the dots inside mastodon.social survive.
var separators = regexp.MustCompile(`[\s\p{Z}]|[,“”#()'’《》?・|…]|\.(?:\s|$)`)

// Tokenize splits normalized text into non-empty tokens.
func Tokenize(text string) []string {
	parts := separators.Split(text, -1)
	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}
