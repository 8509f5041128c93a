package handler

import (
	"time"

	"lumina/internal/app"
	"lumina/internal/model"
	"lumina/internal/render"
)

type entryView struct {
	LocalID   string    `json:"local_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	HTML      string    `json:"html,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type conversationView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is what the page renders: one client instance's state.
type Snapshot struct {
	Authenticated        bool               `json:"authenticated"`
	User                 *model.User        `json:"user,omitempty"`
	Conversations        []conversationView `json:"conversations"`
	ActiveConversationID string             `json:"active_conversation_id"`
	ActiveTitle          string             `json:"active_title"`
	Entries              []entryView        `json:"entries"`
	Sending              bool               `json:"sending"`

	// ExpiresAt is the access token expiry; the page asks again before it.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func newSnapshot(state app.State, md *render.Markdown) Snapshot {
	snap := Snapshot{
		Authenticated:        state.Authenticated(),
		User:                 state.User,
		Conversations:        make([]conversationView, 0, len(state.Conversations)),
		ActiveConversationID: state.ActiveID,
		Entries:              make([]entryView, 0, len(state.Entries)),
		Sending:              state.Sending,
	}
	for _, c := range state.Conversations {
		snap.Conversations = append(snap.Conversations, conversationView{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt})
	}
	if active := state.Active(); active != nil {
		snap.ActiveTitle = active.Title
	}
	for _, e := range state.Entries {
		view := entryView{
			LocalID:   e.LocalID,
			Role:      string(e.Message.Role),
			Content:   e.Message.Content,
			Status:    string(e.Status),
			CreatedAt: e.Message.CreatedAt,
		}
		if e.Message.Role == model.RoleAssistant && md != nil {
			view.HTML = md.HTML(e.Message.Content)
		}
		snap.Entries = append(snap.Entries, view)
	}
	return snap
}

// sessionSnapshot is newSnapshot plus the token expiry of the instance.
func sessionSnapshot(sess *app.Session, md *render.Markdown) Snapshot {
	snap := newSnapshot(sess.State(), md)
	if session := sess.Client().Session(); session != nil && snap.Authenticated {
		expiresAt := session.ExpiresAt
		snap.ExpiresAt = &expiresAt
	}
	return snap
}
