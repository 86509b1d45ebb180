package opcode

func CanReconnectAfter(code Type) bool {
	_, reconnectOpCode := map[Type]bool{
		Reconnect:      true,
		InvalidSession: true,
	}[code]

	return reconnectOpCode
}
