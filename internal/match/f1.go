package match

// TokenF1 computes the token-overlap F1 between produced and expected text.
// Both strings are normalized and reduced to token sets first.
func TokenF1(produced, expected string) float64 {
	producedTokens := Tokens(produced)
	expectedTokens := Tokens(expected)
	if len(producedTokens) == 0 || len(expectedTokens) == 0 {
		return 0
	}
	overlap := 0
	for token := range producedTokens {
		if _, ok := expectedTokens[token]; ok {
			overlap++
		}
	}
	if overlap == 0 {
		return 0
	}
	precision := float64(overlap) / float64(len(producedTokens))
	recall := float64(overlap) / float64(len(expectedTokens))
	return 2 * precision * recall / (precision + recall)
}
