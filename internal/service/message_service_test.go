package service

import (
	"testing"
	"time"

	"securetalk/internal/domain"
	"securetalk/internal/errs"
	"securetalk/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testMaxLength  = 100
	testEditWindow = 24 * time.Hour
)

type messageFixture struct {
	svc      *MessageService
	store    *fakeMessages
	users    *fakeUsers
	blocks   *fakeBlockChecker
	audit    *fakeRecorder
	notifier *fakeNotifier
	clock    *time.Time
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &messageFixture{
		store: newFakeMessages(),
		users: newFakeUsers(
			&models.User{ID: 1, Username: "alice", Email: "alice@example.com", Roles: domain.RoleUser},
			&models.User{ID: 2, Username: "bob", Email: "bob@example.com", Roles: domain.RoleUser},
			&models.User{ID: 9, Username: "root", Email: "root@example.com", Roles: domain.RoleAdmin},
		),
		blocks:   &fakeBlockChecker{},
		audit:    &fakeRecorder{},
		notifier: &fakeNotifier{},
		clock:    &now,
	}
	f.svc = NewMessageService(f.store, f.users, f.blocks, f.audit, &fakeCipher{}, f.notifier, testMaxLength, testEditWindow, zap.NewNop())
	f.svc.now = func() time.Time { return *f.clock }
	return f
}

func (f *messageFixture) send(t *testing.T, from, to uint, content string) *models.Message {
	t.Helper()
	m, err := f.svc.Send(SendRequest{SenderID: from, RecipientID: to, Content: content})
	require.NoError(t, err)
	return m
}

func (f *messageFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestMessage_Send(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)

	m := f.send(t, 1, 2, "hello")
	require.Equal(t, "hello", m.Content)
	require.Equal(t, "enc:hello", m.EncryptedContent)
	require.Equal(t, domain.MessageTypeText, m.MessageType)
	require.Equal(t, domain.PriorityNormal, m.Priority)
	require.Equal(t, 5, m.MessageSize)
	require.False(t, m.IsRead)

	// plaintext never reaches the store
	stored, err := f.store.GetByID(m.ID)
	require.NoError(t, err)
	require.Equal(t, "enc:hello", stored.EncryptedContent)
	require.Empty(t, stored.Content)

	require.Equal(t, []uint{2}, f.notifier.notified)
	require.Len(t, f.audit.byAction(domain.ActionSendMessage), 1)
}

func TestMessage_Send_Validation(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)

	_, err := f.svc.Send(SendRequest{SenderID: 1, RecipientID: 1, Content: "hi"})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.Send(SendRequest{SenderID: 1, RecipientID: 2, Content: "   "})
	require.ErrorIs(t, err, errs.ErrInvalidContent)

	long := make([]byte, testMaxLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = f.svc.Send(SendRequest{SenderID: 1, RecipientID: 2, Content: string(long)})
	require.ErrorIs(t, err, errs.ErrInvalidContent)

	_, err = f.svc.Send(SendRequest{SenderID: 1, RecipientID: 404, Content: "hi"})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMessage_Send_BlockedEitherDirection(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	f.blocks.blocked = true

	_, err := f.svc.Send(SendRequest{SenderID: 1, RecipientID: 2, Content: "hi"})
	require.ErrorIs(t, err, errs.ErrBlockedRecipient)

	// the rejection itself is audited as a failed send
	events := f.audit.byAction(domain.ActionSendMessage)
	require.Len(t, events, 1)
	require.False(t, events[0].Success)
	require.Empty(t, f.notifier.notified)
}

func TestMessage_Get_ParticipantsOnly(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	m := f.send(t, 1, 2, "secret")

	got, err := f.svc.Get(m.ID, 2)
	require.NoError(t, err)
	require.Equal(t, "secret", got.Content)

	_, err = f.svc.Get(m.ID, 9)
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.svc.Get(999, 1)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMessage_MarkRead(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	m := f.send(t, 1, 2, "hi")

	require.NoError(t, f.svc.MarkRead(m.ID, 2))
	stored, _ := f.store.GetByID(m.ID)
	require.True(t, stored.IsRead)
	require.NotNil(t, stored.ReadAt)
	firstReadAt := *stored.ReadAt

	// marking again is a no-op and keeps the original read time
	f.advance(time.Hour)
	require.NoError(t, f.svc.MarkRead(m.ID, 2))
	stored, _ = f.store.GetByID(m.ID)
	require.Equal(t, firstReadAt, *stored.ReadAt)

	// only the recipient may mark read
	err := f.svc.MarkRead(m.ID, 1)
	require.ErrorIs(t, err, errs.ErrForbidden)
}

func TestMessage_MarkRead_DeletedLoses(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	m := f.send(t, 1, 2, "hi")
	require.NoError(t, f.svc.Delete(m.ID, 1, models.RequestMeta{}))

	err := f.svc.MarkRead(m.ID, 2)
	require.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestMessage_Edit_WindowBoundary(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	m := f.send(t, 1, 2, "first")

	// just inside the window
	f.advance(testEditWindow - time.Second)
	edited, err := f.svc.Edit(m.ID, 1, "second", models.RequestMeta{})
	require.NoError(t, err)
	require.True(t, edited.IsEdited)
	require.Equal(t, "second", edited.Content)
	require.Equal(t, "enc:first", edited.OriginalContent)

	// past the window
	f.advance(2 * time.Second)
	_, err = f.svc.Edit(m.ID, 1, "third", models.RequestMeta{})
	require.ErrorIs(t, err, errs.ErrEditNotAllowed)
}

func TestMessage_Edit_SenderOnly(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	m := f.send(t, 1, 2, "hi")

	_, err := f.svc.Edit(m.ID, 2, "nope", models.RequestMeta{})
	require.ErrorIs(t, err, errs.ErrEditNotAllowed)

	require.NoError(t, f.svc.Delete(m.ID, 1, models.RequestMeta{}))
	_, err = f.svc.Edit(m.ID, 1, "after delete", models.RequestMeta{})
	require.ErrorIs(t, err, errs.ErrEditNotAllowed)
}

func TestMessage_Delete_Permissions(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	m := f.send(t, 1, 2, "hi")

	// an uninvolved admin may delete
	require.NoError(t, f.svc.Delete(m.ID, 9, models.RequestMeta{}))
	stored, _ := f.store.GetByID(m.ID)
	require.True(t, stored.IsDeleted)
	require.Equal(t, uint(9), *stored.DeletedBy)

	// deleting again is a no-op
	require.NoError(t, f.svc.Delete(m.ID, 1, models.RequestMeta{}))

	m2 := f.send(t, 1, 2, "another")
	err := f.svc.Delete(m2.ID, 404, models.RequestMeta{})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMessage_Conversation_ExcludesDeleted(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	m1 := f.send(t, 1, 2, "one")
	f.advance(time.Minute)
	f.send(t, 2, 1, "two")
	f.advance(time.Minute)
	f.send(t, 1, 2, "three")

	require.NoError(t, f.svc.Delete(m1.ID, 1, models.RequestMeta{}))

	msgs, err := f.svc.Conversation(1, 2, 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		require.NotEqual(t, m1.ID, m.ID)
		require.NotEmpty(t, m.Content)
	}
}

func TestMessage_UnreadFlow(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	f.send(t, 1, 2, "one")
	f.advance(time.Minute)
	f.send(t, 1, 2, "two")
	f.advance(time.Minute)
	f.send(t, 3, 2, "from someone else")

	n, err := f.svc.UnreadCount(2)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	marked, err := f.svc.MarkConversationRead(1, 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), marked)

	n, err = f.svc.UnreadCount(2)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestMessage_ListConversations(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	f.send(t, 1, 2, "to bob")
	f.advance(time.Minute)
	f.send(t, 2, 1, "reply")
	f.advance(time.Minute)
	f.send(t, 3, 1, "from carol")

	sums, err := f.svc.ListConversations(1)
	require.NoError(t, err)
	require.Len(t, sums, 2)

	byOther := map[uint]int64{}
	for _, s := range sums {
		byOther[s.CounterpartID] = s.UnreadCount
		require.NotEmpty(t, s.LastMessage.Content)
	}
	require.Equal(t, int64(1), byOther[2])
	require.Equal(t, int64(1), byOther[3])
}

func TestMessage_Stats(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	f.send(t, 1, 2, "a")
	f.send(t, 1, 2, "b")
	m := f.send(t, 2, 1, "c")
	require.NoError(t, f.svc.MarkRead(m.ID, 1))

	stats, err := f.svc.Stats(1)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Sent)
	require.Equal(t, int64(1), stats.Received)
	require.Equal(t, int64(0), stats.Unread)
}

func TestMessage_DeletedBefore_StaysEncrypted(t *testing.T) {
	t.Parallel()
	f := newMessageFixture(t)
	m := f.send(t, 1, 2, "purge me")
	require.NoError(t, f.svc.Delete(m.ID, 1, models.RequestMeta{}))

	f.advance(48 * time.Hour)
	list, err := f.svc.DeletedBefore(*f.clock, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "enc:purge me", list[0].EncryptedContent)
	require.Empty(t, list[0].Content)
}
