package engine

import (
	"strings"

	"github.com/diskordpkg/engine/json"
)

// User is the slice of the gateway user object the command path needs.
type User struct {
	ID  string `json:"id"`
	Bot bool   `json:"bot"`
}

type Member struct {
	User User `json:"user"`
}

// Message is the slice of a MESSAGE_CREATE payload the command path needs.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Content   string `json:"content"`
	Author    User   `json:"author"`
}

// InteractionOption is one named option of an application command. Values
// arrive as raw JSON since their type depends on the declared option.
type InteractionOption struct {
	Name    string              `json:"name"`
	Type    int                 `json:"type"`
	Value   json.RawMessage     `json:"value"`
	Options []InteractionOption `json:"options"`
}

const (
	optionSubCommand      = 1
	optionSubCommandGroup = 2
)

type InteractionData struct {
	Name    string              `json:"name"`
	Options []InteractionOption `json:"options"`
}

// Interaction is the slice of an INTERACTION_CREATE payload the command
// path needs.
type Interaction struct {
	ID        string          `json:"id"`
	Token     string          `json:"token"`
	Type      int             `json:"type"`
	Data      InteractionData `json:"data"`
	GuildID   string          `json:"guild_id"`
	ChannelID string          `json:"channel_id"`
	Member    *Member         `json:"member"`
	User      *User           `json:"user"`
}

// UserID returns the invoking user regardless of whether the interaction
// came from a guild (member) or a DM (user).
func (i *Interaction) UserID() string {
	if i.Member != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// commandPath flattens the interaction's declared command into path tokens
// and leaf options: subcommand groups and subcommands extend the path, and
// everything below the leaf becomes named string options.
func (i *Interaction) commandPath() (path []string, options map[string]string) {
	path = []string{i.Data.Name}
	opts := i.Data.Options

	for len(opts) == 1 && (opts[0].Type == optionSubCommand || opts[0].Type == optionSubCommandGroup) {
		path = append(path, opts[0].Name)
		opts = opts[0].Options
	}

	options = make(map[string]string, len(opts))
	for _, opt := range opts {
		options[opt.Name] = rawToString(opt.Value)
	}
	return path, options
}

// rawToString renders a raw JSON scalar as the token form the converters
// expect: quoted strings are unwrapped, everything else passes through.
func rawToString(raw json.RawMessage) string {
	s := string(raw)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err == nil {
			return unquoted
		}
	}
	return s
}
