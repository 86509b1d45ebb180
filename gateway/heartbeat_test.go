package gateway

import (
	"testing"
	"time"

	"github.com/diskordpkg/engine/opcode"
)

func TestDefaultHeartbeatHandler(t *testing.T) {
	t.Run("missing writers", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected configure to panic without writers")
			}
		}()

		handler := &DefaultHeartbeatHandler{}
		handler.Configure(&StateCtx{}, time.Second)
	})

	t.Run("missed ack closes with restart code", func(t *testing.T) {
		client := NewClientMust(t, commonOptions...)
		mock := &IOMock{writeChan: make(chan []byte, 4)}

		handler := &DefaultHeartbeatHandler{TextWriter: mock, CloseWriter: mock}
		handler.Configure(client.ctx, 5*time.Millisecond)

		done := make(chan struct{})
		go func() {
			handler.Run()
			close(done)
		}()

		// first write is a heartbeat; the ack never arrives, so the handler
		// must follow up with a restart close
		packet, err := extractIOMockWrittenMessage(mock, opcode.Heartbeat)
		if err != nil {
			t.Fatal(err)
		}
		if len(packet.Data) == 0 {
			t.Error("heartbeat must carry the sequence number")
		}

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not stop after a missed ack")
		}

		code, err := mock.ReadCloseMessage()
		if err != nil {
			t.Fatal("expected a close frame after the missed ack:", err)
		}
		if code != RestartCloseCode {
			t.Errorf("expected restart close code %d, got %d", int(RestartCloseCode), int(code))
		}
	})

	t.Run("acked heartbeats keep running", func(t *testing.T) {
		client := NewClientMust(t, commonOptions...)
		mock := &IOMock{writeChan: make(chan []byte, 8)}

		handler := &DefaultHeartbeatHandler{TextWriter: mock, CloseWriter: mock}
		handler.Configure(client.ctx, 20*time.Millisecond)
		go handler.Run()

		for i := 0; i < 3; i++ {
			if _, err := extractIOMockWrittenMessage(mock, opcode.Heartbeat); err != nil {
				t.Fatal(err)
			}
			// act as the peer
			client.ctx.heartbeatACK.Store(true)
		}

		// a clean shutdown stops the process without a restart close
		client.ctx.closed.Store(true)
	})
}
