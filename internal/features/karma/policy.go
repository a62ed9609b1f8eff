// Package karma — policy.go проверяет запрос на изменение кармы до создания голосования.
package karma

import "serotonyl.ru/karmabot/internal/common"

// SanityCheck проверяет изменение кармы по бизнес-правилам.
// Правила проверяются по порядку, срабатывает первое:
//  1. карма самому себе (если запрещено KARMA_SELF_KARMA)
//  2. карма боту
//  3. |delta| больше KARMA_MAX_DIFF
func SanityCheck(s Settings, initiatorID, targetID, botID string, delta int) error {
	if !s.SelfKarmaAllowed && initiatorID == targetID {
		return common.ErrSelfKarmaDenied
	}
	if targetID == botID {
		return common.ErrRoboTargetDenied
	}
	if abs(delta) > s.MaxDiff {
		return common.ErrDeltaTooLarge
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
