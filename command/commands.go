// Package command holds the operation codes for payloads sent by the client
// to the gateway. They overlap with the receive codes in the opcode package,
// but only these are valid in outgoing payloads.
package command

type Type int

const (
	_ Type = iota
	Heartbeat
	Identify
	UpdatePresence
	UpdateVoiceState
	_
	Resume
	_
	RequestGuildMembers
)

func All() []Type {
	return []Type{
		Heartbeat,
		Identify,
		RequestGuildMembers,
		Resume,
		UpdatePresence,
		UpdateVoiceState,
	}
}
