package driven

// TokenCounter counts model tokens in text. Counts follow one fixed
// BPE encoding, so they are comparable across calls.
//
// This is an optional service - when nil, document stats report zero
// token counts.
type TokenCounter interface {
	// CountTokens returns the number of tokens in text.
	CountTokens(text string) int
}
