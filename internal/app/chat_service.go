package app

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"lumina/internal/model"
	"lumina/internal/telemetry"
)

var (
	ErrBlankInput       = errors.New("message content is empty")
	ErrNotAuthenticated = errors.New("not signed in")
	ErrSendInFlight     = errors.New("a message is already being sent")
	ErrBlankTitle       = errors.New("conversation title is empty")
)

const (
	NewConversationTitle = "New Lumina Chat"
	provisionalTitleLen  = 30
)

// Inference is implemented by *ai.Assistant.
type Inference interface {
	GenerateResponse(ctx context.Context, history []model.Message, userText string) string
	GenerateTitle(ctx context.Context, userText, assistantText string) string
}

type ChatService struct {
	inference Inference
	logger    *zap.Logger
	metrics   *telemetry.Metrics
}

func NewChatService(inference Inference, logger *zap.Logger, metrics *telemetry.Metrics) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{inference: inference, logger: logger, metrics: metrics}
}

// SendMessage runs one exchange: persist the user message, ask the model,
// persist the reply and, on the first exchange, replace the title.
func (s *ChatService) SendMessage(ctx context.Context, sess *Session, input string) (err error) {
	if strings.TrimSpace(input) == "" {
		return ErrBlankInput
	}
	state, ok := sess.beginSend()
	if !ok {
		if state.User == nil {
			return ErrNotAuthenticated
		}
		s.metrics.IncSend("rejected")
		return ErrSendInFlight
	}
	defer sess.Dispatch(SendFinished{})

	ctx, span := otel.Tracer("lumina/app").Start(ctx, "chat.send_message")
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, "send failed")
		}
		s.metrics.IncSend(outcome)
		span.End()
	}()
	log := sess.logger.With(zap.String("user_id", state.User.ID))

	conversationID := state.ActiveID
	if conversationID == "" {
		conv, err := sess.client.CreateConversation(ctx, state.User.ID, provisionalTitle(input))
		if err != nil {
			log.Error("create conversation failed", zap.Error(err))
			return err
		}
		conversationID = conv.ID
		sess.Dispatch(ConversationAdded{Conversation: *conv})
		sess.Dispatch(ConversationSelected{ID: conv.ID})
		state = sess.Dispatch(SendTargeted{ConversationID: conv.ID})
	}
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	history := confirmedMessages(state.Entries, conversationID)

	if _, err := s.appendEntry(ctx, sess, conversationID, model.RoleUser, input); err != nil {
		log.Error("persist user message failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return err
	}

	reply := s.inference.GenerateResponse(ctx, history, input)

	if _, err := s.appendEntry(ctx, sess, conversationID, model.RoleAssistant, reply); err != nil {
		log.Error("persist assistant message failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return err
	}

	if len(history) > 0 || sess.State().RenamedDuringSend {
		return nil
	}
	title := s.inference.GenerateTitle(ctx, input, reply)
	if sess.State().RenamedDuringSend {
		return nil
	}
	if err := sess.client.RenameConversation(ctx, conversationID, title); err != nil {
		log.Warn("store generated title failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return nil
	}
	sess.Dispatch(TitleUpdated{ConversationID: conversationID, Title: title})
	return nil
}

func (s *ChatService) appendEntry(ctx context.Context, sess *Session, conversationID string, role model.Role, content string) (*model.Message, error) {
	localID := uuid.NewString()
	sess.Dispatch(EntryAppended{Entry: Entry{
		LocalID: localID,
		Message: model.Message{ConversationID: conversationID, Role: role, Content: content},
		Status:  StatusPending,
	}})
	msg, err := sess.client.AppendMessage(ctx, conversationID, role, content)
	if err != nil {
		sess.Dispatch(EntryFailed{LocalID: localID})
		return nil, err
	}
	sess.Dispatch(EntryConfirmed{LocalID: localID, Message: *msg})
	return msg, nil
}

// NewConversation creates an empty conversation and selects it.
func (s *ChatService) NewConversation(ctx context.Context, sess *Session) (*model.Conversation, error) {
	state := sess.State()
	if state.User == nil {
		return nil, ErrNotAuthenticated
	}
	conv, err := sess.client.CreateConversation(ctx, state.User.ID, NewConversationTitle)
	if err != nil {
		sess.logger.Error("create conversation failed", zap.Error(err))
		return nil, err
	}
	sess.Dispatch(ConversationAdded{Conversation: *conv})
	sess.Dispatch(ConversationSelected{ID: conv.ID})
	return conv, nil
}

func (s *ChatService) RenameConversation(ctx context.Context, sess *Session, id, title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrBlankTitle
	}
	if sess.State().User == nil {
		return ErrNotAuthenticated
	}
	if err := sess.client.RenameConversation(ctx, id, title); err != nil {
		sess.logger.Error("rename conversation failed", zap.String("conversation_id", id), zap.Error(err))
		return err
	}
	sess.Dispatch(ConversationRenamed{ConversationID: id, Title: title})
	return nil
}

// DeleteConversation removes the conversation; on failure state is left
// untouched.
func (s *ChatService) DeleteConversation(ctx context.Context, sess *Session, id string) error {
	if sess.State().User == nil {
		return ErrNotAuthenticated
	}
	if err := sess.client.DeleteConversation(ctx, id); err != nil {
		sess.logger.Error("delete conversation failed", zap.String("conversation_id", id), zap.Error(err))
		return err
	}
	sess.Dispatch(ConversationRemoved{ConversationID: id})
	return nil
}

func (s *ChatService) SelectConversation(ctx context.Context, sess *Session, id string) error {
	if sess.State().User == nil {
		return ErrNotAuthenticated
	}
	return sess.SelectConversation(ctx, id)
}

// provisionalTitle is the first 30 runes of the input followed by "...".
func provisionalTitle(input string) string {
	text := strings.TrimSpace(input)
	if utf8.RuneCountInString(text) > provisionalTitleLen {
		text = string([]rune(text)[:provisionalTitleLen])
	}
	return text + "..."
}

func confirmedMessages(entries []Entry, conversationID string) []model.Message {
	out := make([]model.Message, 0, len(entries))
	for _, e := range entries {
		if e.Status == StatusConfirmed && e.Message.ConversationID == conversationID {
			out = append(out, e.Message)
		}
	}
	return out
}
