// Package karma — resolver.go подводит итог голосования по реакциям.
package karma

// DetermineSuccess решает, прошло ли голосование.
// Успех — когда голосов «за» строго больше, чем «против»; ничья — провал.
// Emoji вне обоих списков игнорируются, повторы в списке считаются один раз.
func DetermineSuccess(reactions Reactions, upvote, downvote []string) bool {
	return tally(reactions, upvote)-tally(reactions, downvote) > 0
}

func tally(reactions Reactions, emoji []string) int {
	seen := make(map[string]struct{}, len(emoji))
	total := 0
	for _, e := range emoji {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		total += reactions[e]
	}
	return total
}
