// Package karma — commands.go описывает команды /karma таблицей:
// имя, парсер аргументов и признак «только для админов».
// Команды проверяются по порядку, срабатывает первая подошедшая.
package karma

import "strings"

// CommandKind — вид команды.
type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdGet
	CmdSet
	CmdDigest
	CmdPending
	CmdConfig
	CmdHelp
)

// String возвращает имя команды для логов и метрик.
func (k CommandKind) String() string {
	for _, c := range commandTable {
		if c.kind == k {
			return c.name
		}
	}
	return "unknown"
}

// Command — разобранная команда. Аргументы заполняются в зависимости от вида:
// UserID — для get и set, Points — для set.
type Command struct {
	Kind      CommandKind
	AdminOnly bool
	UserID    string
	Points    int
}

type commandSpec struct {
	kind      CommandKind
	name      string
	adminOnly bool
	// parse получает аргументы после имени команды
	parse func(args []string) (Command, bool)
}

var commandTable = []commandSpec{
	{kind: CmdGet, name: "get", parse: parseGet},
	{kind: CmdSet, name: "set", adminOnly: true, parse: parseSet},
	{kind: CmdDigest, name: "digest", parse: noArgs},
	{kind: CmdPending, name: "pending", parse: noArgs},
	{kind: CmdConfig, name: "config", parse: noArgs},
	{kind: CmdHelp, name: "help", parse: noArgs},
}

// ParseCommand разбирает текст команды. Нераспознанный текст — CmdUnknown.
func ParseCommand(text string) Command {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{Kind: CmdUnknown}
	}
	for _, spec := range commandTable {
		if fields[0] != spec.name {
			continue
		}
		cmd, ok := spec.parse(fields[1:])
		if !ok {
			continue
		}
		cmd.Kind = spec.kind
		cmd.AdminOnly = spec.adminOnly
		return cmd
	}
	return Command{Kind: CmdUnknown}
}

func parseGet(args []string) (Command, bool) {
	if len(args) < 1 {
		return Command{}, false
	}
	id, ok := parseUserArg(args[0])
	if !ok {
		return Command{}, false
	}
	return Command{UserID: id}, true
}

func parseSet(args []string) (Command, bool) {
	if len(args) != 2 {
		return Command{}, false
	}
	id, ok := parseUserArg(args[0])
	if !ok {
		return Command{}, false
	}
	points, ok := parseInt(args[1])
	if !ok {
		return Command{}, false
	}
	return Command{UserID: id, Points: points}, true
}

func noArgs(args []string) (Command, bool) {
	return Command{}, len(args) == 0
}
