package words

import (
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
)

var supported = []language.Tag{language.English, language.Russian}

// Ключи сообщений в каталоге.
const (
	keyHello         = "hello"
	keyNewVoting     = "new_voting"
	keyVotingSuccess = "voting_result_success"
	keyVotingNothing = "voting_result_nothing"
	keyReportKarma   = "report_karma"
	keyParsingError  = "parsing_error"
	keyMaxDiffError  = "max_diff_error"
	keyStrangeError  = "strange_error"
	keyRoboError     = "robo_error"
	keyCmdError      = "cmd_error"
	keyNotAdminError = "not_admin_error"
	keyDigestHeader  = "digest_header"
	keyDigestItem    = "digest_item"
	keyDigestEmpty   = "digest_empty"
	keyPendingHeader = "pending_header"
	keyPendingItem   = "pending_item"
	keyPendingEmpty  = "pending_empty"
	keyConfig        = "config"

	keyWeeks   = "time_weeks"
	keyDays    = "time_days"
	keyHours   = "time_hours"
	keyMinutes = "time_minutes"
	keySeconds = "time_seconds"
)

var english = map[string]string{
	keyHello: "Hi! I'm *karmabot*. You can do:\n" +
		"- In any public channel\n" +
		"    `@karmabot @username +++ blah blah`\n" +
		"    If the most of you agree, the username will get a karma. Nothing will happen in any other case.\n\n" +
		"- With the `/karma` command:\n" +
		"    - `get @username` - get karma value for `username`\n" +
		"    - `set @username <KARMA>` - set karma value for `username`\n" +
		"    - `digest` - show users' karma in descending order (zero karma is skipped)\n" +
		"    - `pending` - show votings in progress\n" +
		"    - `help` - show this message\n" +
		"    - `config` - show config for this execution",
	keyNewVoting: "%s *A new voting for %+d karma for user @%s*\n" +
		" You can vote using emoji for that or initial message.\n" +
		" _FOR:_ %s\n" +
		" _AGAINST_: %s\n" +
		" Other emoji will be ignored. The voting will be *%s* long from now",
	keyVotingSuccess: "%s *The voting is finished*\n@%s receives %+d karma %s",
	keyVotingNothing: "%s *The voting is finished*\n@%s receives nothing %s",
	keyReportKarma:   "@%s: %d karma",
	keyParsingError: "Could not calculate what one has typed there %s\n" +
		"A request for karma change should be like `@karmabot @username +++ blah blah`",
	keyMaxDiffError:  "Max damage is %d karma",
	keyStrangeError:  "This, at least, looks strange %s",
	keyRoboError:     "Robots can also be offended %s",
	keyCmdError:      "One does not simply handle a command",
	keyNotAdminError: "Only admins can do that",
	keyDigestHeader:  "*username* => *karma*",
	keyDigestItem:    "_%s_ => *%d*",
	keyDigestEmpty:   "Seems like nothing to show. All the karma is zero",
	keyPendingHeader: "*initiator* | *receiver* | *channel* | *karma* | *expired*",
	keyPendingItem:   "%s | %s | %s | %+d | %s",
	keyPendingEmpty:  "Seems like nothing to show",
	keyConfig: "*Karma settings*\n" +
		"initial value: %d\n" +
		"max diff: %d\n" +
		"self karma: %t\n" +
		"vote timeout: %s\n" +
		"keep history: %s\n" +
		"upvote: %s\n" +
		"downvote: %s",
}

var russian = map[string]string{
	keyHello: "Привет! Я *karmabot*. Вы можете делать:\n" +
		"- В любом публичном канале:\n" +
		"    `@karmabot @username +++ бла бла`\n" +
		"    Если большинство согласно, username получит свое. В любом другом случае ничего не случится.\n\n" +
		"- Командой `/karma`:\n" +
		"    - `get @username` - получить карму `username`\n" +
		"    - `set @username <KARMA>` - установить новое значение кармы для `username`\n" +
		"    - `digest` - показать карму пользователей в нисходящем порядке (нулевая опускается)\n" +
		"    - `pending` - показать идущие голосования\n" +
		"    - `help` - показать это сообщение\n" +
		"    - `config` - показать конфиг для этого запуска",
	keyNewVoting: "%s *Голосование за %+d кармы пользователю @%s*\n" +
		"Голосовать нужно при помощи emoji к этому или оригинальному сообщению.\n" +
		"_ЗА:_ %s\n" +
		"_ПРОТИВ:_ %s\n" +
		"Остальные игнорируются. Голосование будет длиться *%s* с текущего времени",
	keyVotingSuccess: "%s *Голосование закончено*\n@%s получает %+d кармы %s",
	keyVotingNothing: "%s *Голосование закончено*\n@%s ничего не получает %s",
	keyReportKarma:   "@%s: %d кармы",
	keyParsingError: "Не удалось вычислить шо там пописано %s\n" +
		"Запрос на изменение кармы должен быть типа `@karmabot @username +++ бла бла`",
	keyMaxDiffError:  "Максимальный урон %d кармы",
	keyStrangeError:  "Это, как минимум, выглядит странно %s",
	keyRoboError:     "У роботов тоже есть чувства %s",
	keyCmdError:      "Нельзя просто взять и обработать команду",
	keyNotAdminError: "Это могут делать только админы",
	keyDigestHeader:  "*пользователь* => *карма*",
	keyDigestItem:    "_%s_ => *%d*",
	keyDigestEmpty:   "Похоже, показывать нечего. У всех нулевая карма",
	keyPendingHeader: "*инициатор* | *получатель* | *канал* | *карма* | *окончание*",
	keyPendingItem:   "%s | %s | %s | %+d | %s",
	keyPendingEmpty:  "Похоже, показывать нечего",
	keyConfig: "*Настройки кармы*\n" +
		"начальное значение: %d\n" +
		"максимальное изменение: %d\n" +
		"карма самому себе: %t\n" +
		"длительность голосования: %s\n" +
		"хранение истории: %s\n" +
		"за: %s\n" +
		"против: %s",
}

// newCatalog собирает каталог сообщений для всех поддерживаемых языков.
// Ошибки Set возможны только при некорректных ключах, поэтому игнорируются.
func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	for key, msg := range english {
		_ = b.SetString(language.English, key, msg)
	}
	for key, msg := range russian {
		_ = b.SetString(language.Russian, key, msg)
	}

	_ = b.Set(language.English, keyWeeks, plural.Selectf(1, "%d", "one", "%d week", "other", "%d weeks"))
	_ = b.Set(language.English, keyDays, plural.Selectf(1, "%d", "one", "%d day", "other", "%d days"))
	_ = b.Set(language.English, keyHours, plural.Selectf(1, "%d", "one", "%d hour", "other", "%d hours"))
	_ = b.Set(language.English, keyMinutes, plural.Selectf(1, "%d", "one", "%d minute", "other", "%d minutes"))
	_ = b.Set(language.English, keySeconds, plural.Selectf(1, "%d", "one", "%d second", "other", "%d seconds"))

	// Винительный падеж: «длиться 1 неделю / 2 недели / 5 недель»
	_ = b.Set(language.Russian, keyWeeks, plural.Selectf(1, "%d",
		"one", "%d неделю", "few", "%d недели", "many", "%d недель", "other", "%d недели"))
	_ = b.Set(language.Russian, keyDays, plural.Selectf(1, "%d",
		"one", "%d день", "few", "%d дня", "many", "%d дней", "other", "%d дня"))
	_ = b.Set(language.Russian, keyHours, plural.Selectf(1, "%d",
		"one", "%d час", "few", "%d часа", "many", "%d часов", "other", "%d часа"))
	_ = b.Set(language.Russian, keyMinutes, plural.Selectf(1, "%d",
		"one", "%d минуту", "few", "%d минуты", "many", "%d минут", "other", "%d минуты"))
	_ = b.Set(language.Russian, keySeconds, plural.Selectf(1, "%d",
		"one", "%d секунду", "few", "%d секунды", "many", "%d секунд", "other", "%d секунды"))

	return b
}
