// Package karma — parser.go разбирает упоминания бота и текст команды /karma.
package karma

import (
	"regexp"
	"strconv"
	"strings"
)

// userPattern — упоминание пользователя Slack: <@U123ABC>.
const userPattern = `<@([A-Za-z][A-Za-z0-9_-]+)>`

var (
	mentionRe = regexp.MustCompile(`^` + userPattern)
	// Берётся только первая однородная серия: "+++-" читается как +3
	karmaChangeRe = regexp.MustCompile(`^` + userPattern + ` ` + userPattern + ` (\++|-+)`)
)

// KarmaChange — разобранный запрос «@bot @user +++».
type KarmaChange struct {
	BotID    string
	TargetID string
	Delta    int
}

// ParseMention возвращает ID пользователя, упомянутого в начале текста.
func ParseMention(text string) (string, bool) {
	m := mentionRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseKarmaChange разбирает «<@BOT> <@USER> +++ ...». Число плюсов — положительный delta,
// число минусов — отрицательный.
func ParseKarmaChange(text string) (KarmaChange, bool) {
	m := karmaChangeRe.FindStringSubmatch(text)
	if m == nil {
		return KarmaChange{}, false
	}
	vote := m[3]
	delta := len(vote)
	if vote[0] == '-' {
		delta = -delta
	}
	return KarmaChange{BotID: m[1], TargetID: m[2], Delta: delta}, true
}

// parseUserArg принимает "<@U123>" или "<@U123|name>" и возвращает U123.
func parseUserArg(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "<@") || !strings.HasSuffix(arg, ">") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(arg, "<@"), ">")
	if i := strings.IndexByte(id, '|'); i >= 0 {
		id = id[:i]
	}
	if !userIDRe.MatchString(id) {
		return "", false
	}
	return id, true
}

var userIDRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]+$`)

// parseInt принимает "+5", "-3", "10".
func parseInt(arg string) (int, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, false
	}
	return n, true
}
