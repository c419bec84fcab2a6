package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MessagesConfig contains the bot's reply templates loaded from YAML.
// Templates use {{placeholder}} substitution.
type MessagesConfig struct {
	Help    string          `yaml:"help"`
	Usage   string          `yaml:"usage"`
	Set     SetMessages     `yaml:"set"`
	Remove  RemoveMessages  `yaml:"remove"`
	Show    ShowMessages    `yaml:"show"`
	Import  ImportMessages  `yaml:"import"`
	Errors  ErrorMessages   `yaml:"errors"`
	Warning WarningMessages `yaml:"warnings"`
}

// SetMessages are replies to /realname set
type SetMessages struct {
	Done string `yaml:"done"`
}

// RemoveMessages are replies to /realname remove
type RemoveMessages struct {
	Done string `yaml:"done"`
}

// ShowMessages are replies to /realname show
type ShowMessages struct {
	Bound   string `yaml:"bound"`
	Unbound string `yaml:"unbound"`
}

// ImportMessages are posted to the chat after a label import
type ImportMessages struct {
	Announce string `yaml:"announce"`
}

// ErrorMessages map request failures to replies
type ErrorMessages struct {
	InvalidInput   string `yaml:"invalid_input"`
	NameTooLong    string `yaml:"name_too_long"`
	NotFound       string `yaml:"not_found"`
	PolicyRejected string `yaml:"policy_rejected"`
	Generic        string `yaml:"generic"`
}

// WarningMessages are appended when a request succeeded with side-effect failures
type WarningMessages struct {
	RelabelFailed string `yaml:"relabel_failed"`
	PersistFailed string `yaml:"persist_failed"`
}

// LoadMessagesConfig loads reply templates from a YAML file
func LoadMessagesConfig(configPath string) (*MessagesConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/messages.yaml",
			"/etc/feishu-realname/messages.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "messages.yaml"))
		}
	}

	var raw []byte
	for _, p := range paths {
		if b, err := os.ReadFile(p); err == nil {
			raw = b
			break
		}
	}

	if raw == nil {
		// Fall back to built-in templates
		return DefaultMessagesConfig(), nil
	}

	var config MessagesConfig
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return DefaultMessagesConfig(), fmt.Errorf("failed to parse messages.yaml: %w", err)
	}

	config.fillDefaults()
	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *MessagesConfig) fillDefaults() {
	d := DefaultMessagesConfig()

	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&c.Help, d.Help)
	fill(&c.Usage, d.Usage)
	fill(&c.Set.Done, d.Set.Done)
	fill(&c.Remove.Done, d.Remove.Done)
	fill(&c.Show.Bound, d.Show.Bound)
	fill(&c.Show.Unbound, d.Show.Unbound)
	fill(&c.Import.Announce, d.Import.Announce)
	fill(&c.Errors.InvalidInput, d.Errors.InvalidInput)
	fill(&c.Errors.NameTooLong, d.Errors.NameTooLong)
	fill(&c.Errors.NotFound, d.Errors.NotFound)
	fill(&c.Errors.PolicyRejected, d.Errors.PolicyRejected)
	fill(&c.Errors.Generic, d.Errors.Generic)
	fill(&c.Warning.RelabelFailed, d.Warning.RelabelFailed)
	fill(&c.Warning.PersistFailed, d.Warning.PersistFailed)
}

// Render replaces {{key}} placeholders in tmpl
func Render(tmpl string, vars map[string]string) string {
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, "{{"+k+"}}", v)
	}
	return strings.TrimSpace(tmpl)
}

// DefaultMessagesConfig returns the built-in reply templates
func DefaultMessagesConfig() *MessagesConfig {
	return &MessagesConfig{
		Help: `Real-name commands:
/realname set <name> [@member]  bind a real name and relabel
/realname remove [@member]      drop the binding and restore the label
/realname show [@member]        show the bound real name
Only the chat owner, managers and admins can change other members.`,
		Usage: "Unknown command. Send /realname help for usage.",
		Set: SetMessages{
			Done: "{{member}} is now shown as \"{{label}}\".",
		},
		Remove: RemoveMessages{
			Done: "Removed real name \"{{name}}\" for {{member}}.",
		},
		Show: ShowMessages{
			Bound:   "{{member}}'s real name is \"{{name}}\".",
			Unbound: "{{member}} has no real name bound.",
		},
		Import: ImportMessages{
			Announce: "Imported {{count}} real names from existing nicknames. {{total}} members now have a real name bound.",
		},
		Errors: ErrorMessages{
			InvalidInput:   "Please provide a real name: /realname set <name>",
			NameTooLong:    "\"{{name}}\" is too long: labels are limited to {{max}} characters.",
			NotFound:       "{{member}} has no real name bound.",
			PolicyRejected: "Only the chat owner, managers and admins can change other members' names.",
			Generic:        "Something went wrong, please try again later.",
		},
		Warning: WarningMessages{
			RelabelFailed: "The nickname could not be updated right now; it will be corrected on the next profile change.",
			PersistFailed: "The change is saved in memory and will be written on the next flush.",
		},
	}
}
