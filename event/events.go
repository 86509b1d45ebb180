// Package event defines the dispatch event names sent by the gateway in the
// "t" field of dispatch payloads.
package event

type Type string

const (
	Ready   Type = "READY"
	Resumed Type = "RESUMED"

	ChannelCreate     Type = "CHANNEL_CREATE"
	ChannelDelete     Type = "CHANNEL_DELETE"
	ChannelPinsUpdate Type = "CHANNEL_PINS_UPDATE"
	ChannelUpdate     Type = "CHANNEL_UPDATE"

	GuildCreate     Type = "GUILD_CREATE"
	GuildDelete     Type = "GUILD_DELETE"
	GuildUpdate     Type = "GUILD_UPDATE"
	GuildRoleCreate Type = "GUILD_ROLE_CREATE"
	GuildRoleDelete Type = "GUILD_ROLE_DELETE"
	GuildRoleUpdate Type = "GUILD_ROLE_UPDATE"

	GuildMemberAdd    Type = "GUILD_MEMBER_ADD"
	GuildMemberRemove Type = "GUILD_MEMBER_REMOVE"
	GuildMemberUpdate Type = "GUILD_MEMBER_UPDATE"

	MessageCreate Type = "MESSAGE_CREATE"
	MessageDelete Type = "MESSAGE_DELETE"
	MessageUpdate Type = "MESSAGE_UPDATE"

	MessageReactionAdd         Type = "MESSAGE_REACTION_ADD"
	MessageReactionRemove      Type = "MESSAGE_REACTION_REMOVE"
	MessageReactionRemoveAll   Type = "MESSAGE_REACTION_REMOVE_ALL"
	MessageReactionRemoveEmoji Type = "MESSAGE_REACTION_REMOVE_EMOJI"

	InteractionCreate Type = "INTERACTION_CREATE"

	TypingStart Type = "TYPING_START"

	VoiceStateUpdate Type = "VOICE_STATE_UPDATE"
)
