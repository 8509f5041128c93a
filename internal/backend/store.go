package backend

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"lumina/internal/model"
	"lumina/internal/repository"
)

// GetProfile returns the profile row of the signed-in user.
func (c *Client) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	if _, err := c.requireOwner(ctx, userID); err != nil {
		return nil, err
	}
	user, err := c.p.users.GetByID(ctx, userID)
	if err != nil {
		return nil, c.p.storeError("get_profile", err)
	}
	if user == nil {
		return nil, c.p.storeError("get_profile", ErrNotFound)
	}
	return user, nil
}

// ListConversations returns the user's conversations, newest first.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	if _, err := c.requireOwner(ctx, userID); err != nil {
		return nil, err
	}
	list, err := c.p.conversations.ListByUserID(ctx, userID)
	if err != nil {
		return nil, c.p.storeError("list_conversations", err)
	}
	return list, nil
}

// ListMessages returns the transcript of a conversation, oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	session, err := c.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.ownConversation(ctx, "list_messages", conversationID, session.UserID); err != nil {
		return nil, err
	}
	list, err := c.p.messages.ListByConversationID(ctx, conversationID)
	if err != nil {
		return nil, c.p.storeError("list_messages", err)
	}
	return list, nil
}

func (c *Client) CreateConversation(ctx context.Context, userID, title string) (*model.Conversation, error) {
	if _, err := c.requireOwner(ctx, userID); err != nil {
		return nil, err
	}
	conversation := &model.Conversation{
		UserID:    userID,
		Title:     title,
		CreatedAt: c.p.now().UTC(),
	}
	if err := c.p.conversations.Create(ctx, conversation); err != nil {
		return nil, c.p.storeError("create_conversation", err)
	}
	return conversation, nil
}

func (c *Client) RenameConversation(ctx context.Context, id, title string) error {
	session, err := c.requireSession(ctx)
	if err != nil {
		return err
	}
	updated, err := c.p.conversations.UpdateTitle(ctx, id, session.UserID, title)
	if err != nil {
		return c.p.storeError("rename_conversation", err)
	}
	if !updated {
		return c.p.storeError("rename_conversation", ErrNotFound)
	}
	return nil
}

// DeleteConversation removes the conversation and its messages in one
// transaction.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	session, err := c.requireSession(ctx)
	if err != nil {
		return err
	}
	err = c.p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conversations := repository.NewConversationRepository(tx)
		owned, err := conversations.GetByIDAndUserID(ctx, id, session.UserID)
		if err != nil {
			return err
		}
		if owned == nil {
			return ErrNotFound
		}
		if err := repository.NewMessageRepository(tx).DeleteByConversationID(ctx, id); err != nil {
			return err
		}
		deleted, err := conversations.DeleteByIDAndUserID(ctx, id, session.UserID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return c.p.storeError("delete_conversation", err)
	}
	return nil
}

// AppendMessage stores one message. Messages are never edited afterwards.
func (c *Client) AppendMessage(ctx context.Context, conversationID string, role model.Role, content string) (*model.Message, error) {
	session, err := c.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, c.p.storeError("append_message", fmt.Errorf("invalid role %q", role))
	}
	if err := c.ownConversation(ctx, "append_message", conversationID, session.UserID); err != nil {
		return nil, err
	}
	createdAt, err := c.nextMessageTime(ctx, conversationID)
	if err != nil {
		return nil, c.p.storeError("append_message", err)
	}
	message := &model.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      createdAt,
	}
	if err := c.p.messages.Create(ctx, message); err != nil {
		return nil, c.p.storeError("append_message", err)
	}
	return message, nil
}

// nextMessageTime keeps created_at strictly increasing within a conversation
// at millisecond precision, the coarsest the supported drivers store.
func (c *Client) nextMessageTime(ctx context.Context, conversationID string) (time.Time, error) {
	now := c.p.now().UTC().Truncate(time.Millisecond)
	latest, err := c.p.messages.LatestCreatedAt(ctx, conversationID)
	if err != nil {
		return time.Time{}, err
	}
	if !latest.IsZero() && !now.After(latest.UTC()) {
		now = latest.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return now, nil
}

// requireOwner checks that userID belongs to the live session; anyone
// else's rows do not exist as far as this client is concerned.
func (c *Client) requireOwner(ctx context.Context, userID string) (*Session, error) {
	session, err := c.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, c.p.storeError("authorize", ErrNotFound)
	}
	return session, nil
}

func (c *Client) ownConversation(ctx context.Context, op, conversationID, userID string) error {
	conversation, err := c.p.conversations.GetByIDAndUserID(ctx, conversationID, userID)
	if err != nil {
		return c.p.storeError(op, err)
	}
	if conversation == nil {
		return c.p.storeError(op, ErrNotFound)
	}
	return nil
}
