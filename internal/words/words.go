// Package words формирует все сообщения бота.
// Format создаётся один раз с выбранным языком и передаётся туда, где нужен.
// Глобального «текущего языка» нет.
package words

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Color — цвет полоски вложения Slack.
type Color string

const (
	ColorError Color = "#FF0000"
	ColorInfo  Color = "#3AA3E3"
)

// Статусы голосования для заголовков сообщений.
const (
	StatusOpen   = ":hourglass_flowing_sand:"
	StatusClosed = ":white_check_mark:"
)

const cmdErrorImage = "https://i.imgflip.com/2cuafm.jpg"

// Message — транспортно-независимое сообщение: текст, цвет и необязательная картинка.
type Message struct {
	Color    Color
	Text     string
	ImageURL string
}

// DigestRow — строка дайджеста кармы.
type DigestRow struct {
	Name   string
	Points int
}

// PendingRow — строка списка открытых голосований.
type PendingRow struct {
	Initiator string
	Target    string
	Channel   string
	Points    int
	Expires   string
}

// Settings — настройки кармы для команды config.
type Settings struct {
	InitialValue int
	MaxDiff      int
	SelfKarma    bool
	VoteTimeout  time.Duration
	KeepHistory  time.Duration
}

// Format формирует сообщения на одном языке.
type Format struct {
	lang     language.Tag
	printer  *message.Printer
	upvote   []string
	downvote []string
	timeout  time.Duration
}

// New создаёт форматтер. Неизвестный язык заменяется английским.
func New(lang string, upvote, downvote []string, timeout time.Duration) *Format {
	tag := MatchLanguage(lang)
	return &Format{
		lang:     tag,
		printer:  message.NewPrinter(tag, message.Catalog(newCatalog())),
		upvote:   upvote,
		downvote: downvote,
		timeout:  timeout,
	}
}

// MatchLanguage подбирает поддерживаемый язык (en, ru) по коду из конфига.
func MatchLanguage(lang string) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return language.English
	}
	_, idx, conf := language.NewMatcher(supported).Match(tag)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Language возвращает выбранный язык.
func (f *Format) Language() language.Tag {
	return f.lang
}

func (f *Format) info(key string, args ...any) Message {
	return Message{Color: ColorInfo, Text: f.printer.Sprintf(key, args...)}
}

func (f *Format) errorMsg(key string, args ...any) Message {
	return Message{Color: ColorError, Text: f.printer.Sprintf(key, args...)}
}

// Hello — справка по использованию бота.
func (f *Format) Hello() Message {
	return f.info(keyHello)
}

// NewVoting — анонс нового голосования.
func (f *Format) NewVoting(username string, points int) Message {
	return f.info(keyNewVoting, StatusOpen, points, username,
		emojiList(f.upvote), emojiList(f.downvote), f.DisplayTime(f.timeout))
}

// VotingResult — итог голосования, которым обновляется анонс.
func (f *Format) VotingResult(username string, points int, success bool) Message {
	if !success {
		return f.info(keyVotingNothing, StatusClosed, username, ":fidget_spinner:")
	}
	emoji := ":tada:"
	if points <= 0 {
		emoji = ":face_palm:"
	}
	return f.info(keyVotingSuccess, StatusClosed, username, points, emoji)
}

// ReportKarma — текущее значение кармы пользователя.
func (f *Format) ReportKarma(username string, points int) Message {
	return f.info(keyReportKarma, username, points)
}

// ParsingError — запрос на изменение кармы не распознан.
func (f *Format) ParsingError() Message {
	return f.errorMsg(keyParsingError, ":robot_face:")
}

// MaxDiffError — изменение превышает допустимое.
func (f *Format) MaxDiffError(maxDiff int) Message {
	return f.errorMsg(keyMaxDiffError, maxDiff)
}

// StrangeError — попытка изменить карму самому себе.
func (f *Format) StrangeError() Message {
	return f.errorMsg(keyStrangeError, ":grimacing:")
}

// RoboError — попытка изменить карму боту.
func (f *Format) RoboError() Message {
	return f.errorMsg(keyRoboError, ":robot_face:")
}

// CmdError — команда не распознана.
func (f *Format) CmdError() Message {
	msg := f.errorMsg(keyCmdError)
	msg.ImageURL = cmdErrorImage
	return msg
}

// NotAdminError — команда доступна только администраторам.
func (f *Format) NotAdminError() Message {
	return f.errorMsg(keyNotAdminError)
}

// Digest — рейтинг пользователей с ненулевой кармой.
func (f *Format) Digest(rows []DigestRow) Message {
	if len(rows) == 0 {
		return f.info(keyDigestEmpty)
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, f.printer.Sprintf(keyDigestHeader))
	for _, r := range rows {
		lines = append(lines, f.printer.Sprintf(keyDigestItem, r.Name, r.Points))
	}
	return Message{Color: ColorInfo, Text: strings.Join(lines, "\n")}
}

// Pending — список открытых голосований.
func (f *Format) Pending(rows []PendingRow) Message {
	if len(rows) == 0 {
		return f.info(keyPendingEmpty)
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, f.printer.Sprintf(keyPendingHeader))
	for _, r := range rows {
		lines = append(lines, f.printer.Sprintf(keyPendingItem, r.Initiator, r.Target, r.Channel, r.Points, r.Expires))
	}
	return Message{Color: ColorInfo, Text: strings.Join(lines, "\n")}
}

// Config — настройки кармы, действующие в этом запуске.
func (f *Format) Config(s Settings) Message {
	return f.info(keyConfig, s.InitialValue, s.MaxDiff, s.SelfKarma,
		f.DisplayTime(s.VoteTimeout), f.DisplayTime(s.KeepHistory),
		emojiList(f.upvote), emojiList(f.downvote))
}

var intervals = []struct {
	seconds int64
	key     string
}{
	{604800, keyWeeks},
	{86400, keyDays},
	{3600, keyHours},
	{60, keyMinutes},
	{1, keySeconds},
}

// DisplayTime переводит длительность в текст: "1 hour, 30 minutes".
// Выводятся не больше четырёх старших единиц.
func (f *Format) DisplayTime(d time.Duration) string {
	const granularity = 4

	seconds := int64(d / time.Second)
	var parts []string
	for _, iv := range intervals {
		value := seconds / iv.seconds
		if value == 0 {
			continue
		}
		seconds -= value * iv.seconds
		parts = append(parts, f.printer.Sprintf(iv.key, int(value)))
	}
	if len(parts) > granularity {
		parts = parts[:granularity]
	}
	return strings.Join(parts, ", ")
}

// emojiList превращает ["+1", "tada"] в ":+1: :tada:".
func emojiList(emoji []string) string {
	if len(emoji) == 0 {
		return ""
	}
	return ":" + strings.Join(emoji, ": :") + ":"
}
