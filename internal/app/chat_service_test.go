package app

import (
	"context"
	"errors"
	"testing"

	"lumina/internal/backend"
	"lumina/internal/model"
	"lumina/internal/platform/database/databasetest"
)

type spyBackend struct {
	*backend.Client

	renames    int
	listCalls  int
	failRole   model.Role
	failDelete bool
}

func (b *spyBackend) RenameConversation(ctx context.Context, id, title string) error {
	b.renames++
	return b.Client.RenameConversation(ctx, id, title)
}

func (b *spyBackend) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	b.listCalls++
	return b.Client.ListConversations(ctx, userID)
}

func (b *spyBackend) AppendMessage(ctx context.Context, conversationID string, role model.Role, content string) (*model.Message, error) {
	if role == b.failRole {
		return nil, &backend.StoreError{Op: "append_message", Err: errors.New("connection reset")}
	}
	return b.Client.AppendMessage(ctx, conversationID, role, content)
}

func (b *spyBackend) DeleteConversation(ctx context.Context, id string) error {
	if b.failDelete {
		return &backend.StoreError{Op: "delete_conversation", Err: errors.New("connection reset")}
	}
	return b.Client.DeleteConversation(ctx, id)
}

type fakeInference struct {
	reply      string
	title      string
	responses  int
	titles     int
	historyLen []int
	onResponse func()
}

func (f *fakeInference) GenerateResponse(_ context.Context, history []model.Message, _ string) string {
	f.responses++
	f.historyLen = append(f.historyLen, len(history))
	if f.onResponse != nil {
		f.onResponse()
	}
	return f.reply
}

func (f *fakeInference) GenerateTitle(context.Context, string, string) string {
	f.titles++
	return f.title
}

type harness struct {
	provider *backend.Provider
	spy      *spyBackend
	sess     *Session
	auth     *AuthService
	chat     *ChatService
	ai       *fakeInference
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	p := backend.NewProvider(databasetest.Open(t), backend.Options{Secret: "test-secret"})
	spy := &spyBackend{Client: p.NewClient()}
	fake := &fakeInference{reply: "Slow start grows the congestion window.", title: "TCP Slow Start"}
	h := &harness{
		provider: p,
		spy:      spy,
		sess:     NewSession("client-1", spy, nil),
		auth:     NewAuthService(p, nil),
		ai:       fake,
	}
	h.chat = NewChatService(fake, nil, nil)
	t.Cleanup(h.sess.Close)
	return h
}

func (h *harness) signUp(t *testing.T) {
	t.Helper()
	_, err := h.auth.SignUp(context.Background(), h.sess, SignUpInput{Email: "ada@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
}

func TestSignUpAuthenticatesState(t *testing.T) {
	h := newHarness(t)
	if h.sess.State().Authenticated() {
		t.Fatal("fresh session should be unauthenticated")
	}

	h.signUp(t)

	state := h.sess.State()
	if !state.Authenticated() {
		t.Fatal("state should be authenticated after sign up")
	}
	if state.User.Username != "ada" {
		t.Fatalf("username = %q, want ada", state.User.Username)
	}
	if len(state.Conversations) != 0 {
		t.Fatalf("conversations = %+v, want none", state.Conversations)
	}
}

func TestFirstExchangeCreatesAndTitlesConversation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signUp(t)

	var provisional string
	stop := h.sess.Watch(func(s State) {
		if provisional == "" && len(s.Conversations) > 0 {
			provisional = s.Conversations[0].Title
		}
	})
	defer stop()

	if err := h.chat.SendMessage(ctx, h.sess, "Explain TCP slow start"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if provisional != "Explain TCP slow start..." {
		t.Fatalf("provisional title = %q", provisional)
	}

	state := h.sess.State()
	if state.ActiveID == "" || len(state.Conversations) != 1 {
		t.Fatalf("state after send = %+v", state)
	}
	if got := state.Conversations[0].Title; got != "TCP Slow Start" {
		t.Fatalf("title = %q, want generated title", got)
	}
	if h.ai.titles != 1 {
		t.Fatalf("title calls = %d, want 1", h.ai.titles)
	}
	if state.Sending {
		t.Fatal("guard should be released")
	}

	stored, err := h.spy.ListMessages(ctx, state.ActiveID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(stored) != 2 || stored[0].Role != model.RoleUser || stored[1].Role != model.RoleAssistant {
		t.Fatalf("stored transcript = %+v", stored)
	}
	for _, e := range state.Entries {
		if e.Status != StatusConfirmed {
			t.Fatalf("entry %+v not confirmed", e)
		}
	}
	list, err := h.spy.ListConversations(ctx, state.User.ID)
	if err != nil || len(list) != 1 || list[0].Title != "TCP Slow Start" {
		t.Fatalf("stored conversations = (%+v, %v)", list, err)
	}

	if err := h.chat.SendMessage(ctx, h.sess, "And congestion avoidance?"); err != nil {
		t.Fatalf("second SendMessage() error = %v", err)
	}
	if h.ai.titles != 1 {
		t.Fatalf("title calls after second send = %d, want 1", h.ai.titles)
	}
	if got := h.ai.historyLen; len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("history lengths = %v, want [0 2]", got)
	}
	if n := len(h.sess.State().Entries); n != 4 {
		t.Fatalf("entries = %d, want 4", n)
	}
}

func TestSendGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if err := h.chat.SendMessage(ctx, h.sess, "hello"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("signed out SendMessage() error = %v", err)
	}
	h.signUp(t)
	if err := h.chat.SendMessage(ctx, h.sess, "   \n"); !errors.Is(err, ErrBlankInput) {
		t.Fatalf("blank SendMessage() error = %v", err)
	}

	var nested error
	h.ai.onResponse = func() {
		nested = h.chat.SendMessage(ctx, h.sess, "again")
	}
	if err := h.chat.SendMessage(ctx, h.sess, "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if !errors.Is(nested, ErrSendInFlight) {
		t.Fatalf("concurrent send error = %v, want ErrSendInFlight", nested)
	}
	if h.ai.responses != 1 {
		t.Fatalf("responses = %d, want 1", h.ai.responses)
	}
}

func TestFailedUserMessageStopsTheSend(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signUp(t)
	h.spy.failRole = model.RoleUser

	err := h.chat.SendMessage(ctx, h.sess, "hello")
	if !backend.IsStoreError(err) {
		t.Fatalf("SendMessage() error = %v, want store error", err)
	}
	if h.ai.responses != 0 {
		t.Fatalf("model was called %d times after a failed persist", h.ai.responses)
	}
	state := h.sess.State()
	if len(state.Entries) != 1 || state.Entries[0].Status != StatusFailed {
		t.Fatalf("entries = %+v, want one failed entry", state.Entries)
	}
	if state.Sending {
		t.Fatal("guard should be released after a failure")
	}
}

func TestFailedAssistantMessageSkipsTitle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signUp(t)
	h.spy.failRole = model.RoleAssistant

	if err := h.chat.SendMessage(ctx, h.sess, "hello"); !backend.IsStoreError(err) {
		t.Fatalf("SendMessage() error = %v, want store error", err)
	}
	if h.ai.titles != 0 {
		t.Fatalf("title calls = %d, want 0", h.ai.titles)
	}
	entries := h.sess.State().Entries
	if len(entries) != 2 || entries[0].Status != StatusConfirmed || entries[1].Status != StatusFailed {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestRenameDuringSendKeepsUserTitle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signUp(t)

	h.ai.onResponse = func() {
		id := h.sess.State().ActiveID
		if err := h.chat.RenameConversation(ctx, h.sess, id, "Mine"); err != nil {
			t.Errorf("RenameConversation() error = %v", err)
		}
	}
	if err := h.chat.SendMessage(ctx, h.sess, "Explain TCP slow start"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if h.ai.titles != 0 {
		t.Fatalf("title calls = %d, want 0", h.ai.titles)
	}
	if got := h.sess.State().Active().Title; got != "Mine" {
		t.Fatalf("title = %q, want Mine", got)
	}
}

func TestBlankRenameMakesNoStoreCall(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signUp(t)
	conv, err := h.chat.NewConversation(ctx, h.sess)
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	if conv.Title != NewConversationTitle {
		t.Fatalf("title = %q", conv.Title)
	}

	for _, title := range []string{"", "   "} {
		if err := h.chat.RenameConversation(ctx, h.sess, conv.ID, title); !errors.Is(err, ErrBlankTitle) {
			t.Fatalf("RenameConversation(%q) error = %v", title, err)
		}
	}
	if h.spy.renames != 0 {
		t.Fatalf("store renames = %d, want 0", h.spy.renames)
	}
	if got := h.sess.State().Active().Title; got != NewConversationTitle {
		t.Fatalf("title = %q", got)
	}
}

func TestDeleteSelectedConversationClearsTranscript(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signUp(t)
	if err := h.chat.SendMessage(ctx, h.sess, "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	id := h.sess.State().ActiveID

	h.spy.failDelete = true
	if err := h.chat.DeleteConversation(ctx, h.sess, id); !backend.IsStoreError(err) {
		t.Fatalf("failing delete error = %v", err)
	}
	if state := h.sess.State(); state.ActiveID != id || len(state.Entries) != 2 {
		t.Fatalf("state changed after failed delete: %+v", state)
	}

	h.spy.failDelete = false
	if err := h.chat.DeleteConversation(ctx, h.sess, id); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}
	state := h.sess.State()
	if state.ActiveID != "" || len(state.Entries) != 0 || len(state.Conversations) != 0 {
		t.Fatalf("state after delete = %+v", state)
	}
}

func TestSelectConversationLoadsTranscript(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signUp(t)
	if err := h.chat.SendMessage(ctx, h.sess, "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	id := h.sess.State().ActiveID

	if err := h.chat.SelectConversation(ctx, h.sess, ""); err != nil {
		t.Fatalf("deselect error = %v", err)
	}
	if n := len(h.sess.State().Entries); n != 0 {
		t.Fatalf("entries after deselect = %d", n)
	}
	if err := h.chat.SelectConversation(ctx, h.sess, id); err != nil {
		t.Fatalf("SelectConversation() error = %v", err)
	}
	entries := h.sess.State().Entries
	if len(entries) != 2 || entries[0].Message.Content != "hello" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestSignOutClearsState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signUp(t)
	if err := h.chat.SendMessage(ctx, h.sess, "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if err := h.auth.SignOut(ctx, h.sess); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	state := h.sess.State()
	if state.Authenticated() || state.ActiveID != "" || len(state.Conversations) != 0 || len(state.Entries) != 0 {
		t.Fatalf("state after sign out = %+v", state)
	}
}

func TestRestoreSessionOnNewInstance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signUp(t)
	token := h.spy.Session().AccessToken

	other := NewSession("client-2", h.provider.NewClient(), nil)
	defer other.Close()
	if h.auth.Restore(ctx, other, "") {
		t.Fatal("empty token should not restore")
	}
	if h.auth.Restore(ctx, other, "bogus") {
		t.Fatal("bogus token should not restore")
	}
	if !h.auth.Restore(ctx, other, token) {
		t.Fatal("valid token should restore")
	}
	if !other.State().Authenticated() {
		t.Fatal("restored instance should be authenticated")
	}
}

func TestTokenRefreshKeepsLoadedState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signUp(t)
	if err := h.chat.SendMessage(ctx, h.sess, "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	before := h.sess.State()
	loads := h.spy.listCalls

	if _, err := h.auth.Refresh(ctx, h.sess); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	after := h.sess.State()
	if h.spy.listCalls != loads {
		t.Fatalf("conversation list reloaded %d times on refresh", h.spy.listCalls-loads)
	}
	if !after.Authenticated() || after.ActiveID != before.ActiveID || len(after.Entries) != len(before.Entries) {
		t.Fatalf("state after refresh = %+v, before = %+v", after, before)
	}
}

func TestKeepAliveLeavesFreshTokenAlone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if next, err := h.auth.KeepAlive(ctx, h.sess); next != nil || err != nil {
		t.Fatalf("KeepAlive() signed out = (%v, %v)", next, err)
	}
	h.signUp(t)
	token := h.spy.Session().AccessToken
	if next, err := h.auth.KeepAlive(ctx, h.sess); next != nil || err != nil {
		t.Fatalf("KeepAlive() fresh = (%v, %v)", next, err)
	}
	if h.spy.Session().AccessToken != token {
		t.Fatal("fresh token should not be replaced")
	}
}

func TestProvisionalTitle(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"short", "Explain TCP slow start", "Explain TCP slow start..."},
		{"exactly thirty", "abcdefghijklmnopqrstuvwxyz0123", "abcdefghijklmnopqrstuvwxyz0123..."},
		{"longer than thirty", "How does the Linux scheduler pick the next task?", "How does the Linux scheduler p..."},
		{"multi-byte runes", "日本語の文章をもう少し長く書いてみると三十文字を超えるかどうか試します", "日本語の文章をもう少し長く書いてみると三十文字を超えるかどう..."},
		{"surrounding whitespace", "   padded question   ", "padded question..."},
		{"whitespace before a long input", "\n\t  0123456789012345678901234567890123", "012345678901234567890123456789..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := provisionalTitle(tc.in); got != tc.want {
				t.Fatalf("provisionalTitle(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
