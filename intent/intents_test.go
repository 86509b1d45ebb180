package intent

import (
	"testing"

	"github.com/diskordpkg/engine/event"
)

func TestDMEventsToIntents(t *testing.T) {
	type test struct {
		intent Type
		events []event.Type
	}

	table := []test{
		{DirectMessages, []event.Type{event.MessageCreate}},
		{DirectMessageTyping, []event.Type{event.TypingStart}},
		{0, nil},
	}

	for i := range table {
		derived := DMEventsToIntents(table[i].events)
		if derived&table[i].intent != table[i].intent {
			t.Errorf("expected intent %d to be set, got %d", table[i].intent, derived)
		}
	}
}

func TestGuildEventsToIntents(t *testing.T) {
	derived := GuildEventsToIntents([]event.Type{event.MessageCreate})
	if derived&GuildMessages != GuildMessages {
		t.Errorf("expected GuildMessages intent, got %d", derived)
	}
	if derived&DirectMessages != 0 {
		t.Error("guild events should not derive DM intents")
	}

	if derived := GuildEventsToIntents(nil); derived != 0 {
		t.Errorf("expected no intents, got %d", derived)
	}
}

func TestMerge(t *testing.T) {
	merged := Merge(Guilds, GuildMessages, GuildMessages)
	if merged != Guilds|GuildMessages {
		t.Errorf("unexpected merge result: %d", merged)
	}
}
