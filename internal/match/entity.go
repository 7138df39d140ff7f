package match

import "strings"

// minEntityTokenLen is the shortest token that counts toward entity presence.
// Shorter tokens (articles, initials) are too common to be evidence.
const minEntityTokenLen = 3

// entityMajorityFound reports whether a strict majority of the comma-separated
// entities in expected appear in produced. An entity is found when every one
// of its tokens of at least minEntityTokenLen runes appears in the produced
// token set.
func entityMajorityFound(produced, expected string) bool {
	entities := splitEntities(expected)
	if len(entities) == 0 {
		return false
	}
	producedTokens := Tokens(produced)
	found := 0
	for _, entity := range entities {
		if entityFound(entity, producedTokens) {
			found++
		}
	}
	return found*2 > len(entities)
}

func splitEntities(expected string) []string {
	parts := strings.Split(expected, ",")
	entities := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			entities = append(entities, part)
		}
	}
	return entities
}

func entityFound(entity string, producedTokens map[string]struct{}) bool {
	qualifying := 0
	for token := range Tokens(entity) {
		if len([]rune(token)) < minEntityTokenLen {
			continue
		}
		qualifying++
		if _, ok := producedTokens[token]; !ok {
			return false
		}
	}
	// An entity made only of short tokens carries no evidence either way.
	return qualifying > 0
}
