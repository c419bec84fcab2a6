package domain

import "fmt"

// Member represents a Feishu user as seen by the bot (value object)
type Member struct {
	OpenID   string
	Name     string // Directory name
	Nickname string // Display label, may be empty
}

// Label returns the observed display label: the nickname, or the
// directory name when no nickname is set
func (m *Member) Label() string {
	if m.Nickname != "" {
		return m.Nickname
	}
	return m.Name
}

// FormatMention formats the Feishu text @ mention tag. Feishu fills in the
// display name when the label is unknown.
func (m *Member) FormatMention() string {
	if m.Label() == "" {
		return fmt.Sprintf("<at user_id=\"%s\"></at>", m.OpenID)
	}
	return fmt.Sprintf("<at user_id=\"%s\">%s</at>", m.OpenID, m.Label())
}
