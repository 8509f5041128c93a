package app

import (
	"testing"

	"lumina/internal/model"
)

func signedIn() State {
	return Reduce(State{}, AuthChanged{User: &model.User{ID: "u1", Username: "ada"}})
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	before := Reduce(signedIn(), ConversationsLoaded{Conversations: []model.Conversation{
		{ID: "c1", Title: "one"},
		{ID: "c2", Title: "two"},
	}})
	after := Reduce(before, TitleUpdated{ConversationID: "c1", Title: "renamed"})

	if before.Conversations[0].Title != "one" {
		t.Fatalf("input state was mutated: %+v", before.Conversations)
	}
	if after.Conversations[0].Title != "renamed" {
		t.Fatalf("title not updated: %+v", after.Conversations)
	}
}

func TestReduceRenameFlagTracksSendTarget(t *testing.T) {
	s := Reduce(signedIn(), ConversationsLoaded{Conversations: []model.Conversation{{ID: "c1"}, {ID: "c2"}}})
	s = Reduce(s, SendStarted{ConversationID: "c1"})

	s = Reduce(s, ConversationRenamed{ConversationID: "c2", Title: "other"})
	if s.RenamedDuringSend {
		t.Fatal("renaming another conversation must not set the flag")
	}
	s = Reduce(s, TitleUpdated{ConversationID: "c1", Title: "generated"})
	if s.RenamedDuringSend {
		t.Fatal("generated titles must not set the flag")
	}
	s = Reduce(s, ConversationRenamed{ConversationID: "c1", Title: "mine"})
	if !s.RenamedDuringSend {
		t.Fatal("renaming the send target should set the flag")
	}
	s = Reduce(s, SendFinished{})
	if s.Sending || s.RenamedDuringSend || s.SendConversationID != "" {
		t.Fatalf("send fields not reset: %+v", s)
	}
}

func TestReduceIgnoresStaleTranscripts(t *testing.T) {
	s := Reduce(signedIn(), ConversationSelected{ID: "c2"})
	s = Reduce(s, MessagesLoaded{ConversationID: "c1", Messages: []model.Message{{ID: "m1"}}})
	if len(s.Entries) != 0 {
		t.Fatalf("entries from an inactive conversation were applied: %+v", s.Entries)
	}

	pending := Entry{LocalID: "l1", Message: model.Message{ConversationID: "c2", Content: "hi"}, Status: StatusPending}
	s = Reduce(s, EntryAppended{Entry: pending})
	s = Reduce(s, MessagesLoaded{ConversationID: "c2", Messages: []model.Message{{ID: "m0", ConversationID: "c2"}}})
	if len(s.Entries) != 2 || s.Entries[0].Message.ID != "m0" || s.Entries[1].LocalID != "l1" {
		t.Fatalf("entries = %+v, want loaded message then pending entry", s.Entries)
	}
}

func TestReduceSignOutKeepsGuard(t *testing.T) {
	s := Reduce(signedIn(), SendStarted{})
	s = Reduce(s, SignedOut{})
	if s.Authenticated() || !s.Sending {
		t.Fatalf("state after sign out = %+v", s)
	}
}

func TestReduceConversationAddedMovesToFront(t *testing.T) {
	s := Reduce(signedIn(), ConversationsLoaded{Conversations: []model.Conversation{{ID: "c1"}}})
	s = Reduce(s, ConversationAdded{Conversation: model.Conversation{ID: "c2"}})
	if len(s.Conversations) != 2 || s.Conversations[0].ID != "c2" {
		t.Fatalf("conversations = %+v", s.Conversations)
	}
	if Reduce(State{}, ConversationAdded{Conversation: model.Conversation{ID: "c3"}}).Conversations != nil {
		t.Fatal("signed-out state must not gain conversations")
	}
}
