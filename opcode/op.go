package opcode

// Type is a gateway operation code as found in the "op" field of every
// payload received over the websocket connection.
type Type int

const Invalid Type = -1

const (
	Dispatch            Type = 0
	Heartbeat           Type = 1
	Identify            Type = 2
	PresenceUpdate      Type = 3
	VoiceStateUpdate    Type = 4
	Resume              Type = 6
	Reconnect           Type = 7
	RequestGuildMembers Type = 8
	InvalidSession      Type = 9
	Hello               Type = 10
	HeartbeatACK        Type = 11
)
