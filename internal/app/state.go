package app

import "lumina/internal/model"

type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusConfirmed EntryStatus = "confirmed"
	StatusFailed    EntryStatus = "failed"
)

// Entry is one transcript line. Pending entries are shown before the store
// has acknowledged them.
type Entry struct {
	LocalID string        `json:"local_id"`
	Message model.Message `json:"message"`
	Status  EntryStatus   `json:"status"`
}

// State is everything one client instance shows. Values are never mutated
// in place; Reduce returns a fresh State.
type State struct {
	User          *model.User          `json:"user"`
	Conversations []model.Conversation `json:"conversations"`
	ActiveID      string               `json:"active_conversation_id"`
	Entries       []Entry              `json:"entries"`
	Sending       bool                 `json:"sending"`

	SendConversationID string `json:"-"`
	RenamedDuringSend  bool   `json:"-"`
}

func (s State) Authenticated() bool {
	return s.User != nil
}

func (s State) Active() *model.Conversation {
	for i := range s.Conversations {
		if s.Conversations[i].ID == s.ActiveID {
			c := s.Conversations[i]
			return &c
		}
	}
	return nil
}

// Event is a state transition. The set is closed: only the types below
// implement it.
type Event interface {
	event()
}

type (
	AuthChanged          struct{ User *model.User }
	SignedOut            struct{}
	ConversationsLoaded  struct{ Conversations []model.Conversation }
	ConversationAdded    struct{ Conversation model.Conversation }
	ConversationSelected struct{ ID string }
)

type MessagesLoaded struct {
	ConversationID string
	Messages       []model.Message
}

type (
	EntryAppended struct{ Entry Entry }
	EntryFailed   struct{ LocalID string }
)

type EntryConfirmed struct {
	LocalID string
	Message model.Message
}

// TitleUpdated is the generated title; ConversationRenamed is a user edit.
type TitleUpdated struct {
	ConversationID string
	Title          string
}

type ConversationRenamed struct {
	ConversationID string
	Title          string
}

type (
	ConversationRemoved struct{ ConversationID string }
	SendStarted         struct{ ConversationID string }
	SendTargeted        struct{ ConversationID string }
	SendFinished        struct{}
)

func (AuthChanged) event()          {}
func (SignedOut) event()            {}
func (ConversationsLoaded) event()  {}
func (ConversationAdded) event()    {}
func (ConversationSelected) event() {}
func (MessagesLoaded) event()       {}
func (EntryAppended) event()        {}
func (EntryConfirmed) event()       {}
func (EntryFailed) event()          {}
func (TitleUpdated) event()         {}
func (ConversationRenamed) event()  {}
func (ConversationRemoved) event()  {}
func (SendStarted) event()          {}
func (SendTargeted) event()         {}
func (SendFinished) event()         {}

// Reduce applies evt to s. It has no side effects.
func Reduce(s State, evt Event) State {
	switch e := evt.(type) {
	case AuthChanged:
		if e.User == nil {
			return State{Sending: s.Sending}
		}
		u := *e.User
		if s.User != nil && s.User.ID == e.User.ID {
			s.User = &u
			return s
		}
		return State{User: &u, Sending: s.Sending}

	case SignedOut:
		// The guard outlives the user so an in-flight send still releases it.
		return State{Sending: s.Sending}

	case ConversationsLoaded:
		if s.User == nil {
			return s
		}
		s.Conversations = append([]model.Conversation(nil), e.Conversations...)
		if s.ActiveID != "" && s.Active() == nil {
			s.ActiveID = ""
			s.Entries = nil
		}
		return s

	case ConversationAdded:
		if s.User == nil {
			return s
		}
		list := make([]model.Conversation, 0, len(s.Conversations)+1)
		list = append(list, e.Conversation)
		for _, c := range s.Conversations {
			if c.ID != e.Conversation.ID {
				list = append(list, c)
			}
		}
		s.Conversations = list
		return s

	case ConversationSelected:
		if e.ID == s.ActiveID {
			return s
		}
		s.ActiveID = e.ID
		s.Entries = nil
		return s

	case MessagesLoaded:
		if e.ConversationID != s.ActiveID {
			return s
		}
		entries := make([]Entry, 0, len(e.Messages)+len(s.Entries))
		loaded := make(map[string]struct{}, len(e.Messages))
		for _, m := range e.Messages {
			loaded[m.ID] = struct{}{}
			entries = append(entries, Entry{LocalID: m.ID, Message: m, Status: StatusConfirmed})
		}
		for _, en := range s.Entries {
			if en.Status == StatusConfirmed {
				if _, ok := loaded[en.Message.ID]; ok {
					continue
				}
			}
			entries = append(entries, en)
		}
		s.Entries = entries
		return s

	case EntryAppended:
		if e.Entry.Message.ConversationID != s.ActiveID {
			return s
		}
		s.Entries = append(append(make([]Entry, 0, len(s.Entries)+1), s.Entries...), e.Entry)
		return s

	case EntryConfirmed:
		s.Entries = updateEntry(s.Entries, e.LocalID, func(en *Entry) {
			en.Message = e.Message
			en.Status = StatusConfirmed
		})
		return s

	case EntryFailed:
		s.Entries = updateEntry(s.Entries, e.LocalID, func(en *Entry) {
			en.Status = StatusFailed
		})
		return s

	case TitleUpdated:
		s.Conversations = retitle(s.Conversations, e.ConversationID, e.Title)
		return s

	case ConversationRenamed:
		s.Conversations = retitle(s.Conversations, e.ConversationID, e.Title)
		if s.Sending && e.ConversationID == s.SendConversationID {
			s.RenamedDuringSend = true
		}
		return s

	case ConversationRemoved:
		list := make([]model.Conversation, 0, len(s.Conversations))
		for _, c := range s.Conversations {
			if c.ID != e.ConversationID {
				list = append(list, c)
			}
		}
		s.Conversations = list
		if s.ActiveID == e.ConversationID {
			s.ActiveID = ""
			s.Entries = nil
		}
		return s

	case SendStarted:
		s.Sending = true
		s.SendConversationID = e.ConversationID
		s.RenamedDuringSend = false
		return s

	case SendTargeted:
		if s.Sending {
			s.SendConversationID = e.ConversationID
		}
		return s

	case SendFinished:
		s.Sending = false
		s.SendConversationID = ""
		s.RenamedDuringSend = false
		return s
	}
	return s
}

func updateEntry(entries []Entry, localID string, fn func(*Entry)) []Entry {
	out := append([]Entry(nil), entries...)
	for i := range out {
		if out[i].LocalID == localID {
			fn(&out[i])
			break
		}
	}
	return out
}

func retitle(list []model.Conversation, id, title string) []model.Conversation {
	out := append([]model.Conversation(nil), list...)
	for i := range out {
		if out[i].ID == id {
			out[i].Title = title
		}
	}
	return out
}
