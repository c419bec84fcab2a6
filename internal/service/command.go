package service

import (
	"strings"
)

// CommandPrefix starts every bot command
const CommandPrefix = "/realname"

// Command kinds
const (
	CommandSet    = "set"
	CommandRemove = "remove"
	CommandShow   = "show"
	CommandHelp   = "help"
)

// Command is a parsed /realname command
type Command struct {
	Kind string
	Args string // Remaining text, the real name for set
}

// IsCommand reports whether text is addressed to the bot
func IsCommand(text string) bool {
	fields := strings.Fields(text)
	return len(fields) > 0 && strings.EqualFold(fields[0], CommandPrefix)
}

// ParseCommand parses "/realname <kind> [args...]". Mentions are carried
// separately by the message, so text holds only the typed words. A bare
// "/realname" is treated as help; an unknown kind keeps Kind as typed.
func ParseCommand(text string) (Command, bool) {
	if !IsCommand(text) {
		return Command{}, false
	}
	fields := strings.Fields(text)
	if len(fields) == 1 {
		return Command{Kind: CommandHelp}, true
	}
	return Command{
		Kind: strings.ToLower(fields[1]),
		Args: strings.Join(fields[2:], " "),
	}, true
}
