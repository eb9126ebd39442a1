package service

import (
	"strings"
	"time"

	"securetalk/internal/errs"
	"securetalk/internal/models"
	"securetalk/internal/repository"

	"gorm.io/gorm"
)

// In-memory fakes for the consumer-side store interfaces. Each copies rows
// in and out, like a real store would.

type fakeUsers struct {
	byID   map[uint]*models.User
	nextID uint

	createErr error
	getErr    error
	updateErr error
}

var _ UserStore = (*fakeUsers)(nil)
var _ AccountStore = (*fakeUsers)(nil)

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{byID: map[uint]*models.User{}, nextID: 1}
	for _, u := range users {
		if u.ID == 0 {
			u.ID = f.nextID
		}
		if u.ID >= f.nextID {
			f.nextID = u.ID + 1
		}
		cpy := *u
		f.byID[u.ID] = &cpy
	}
	return f
}

func (f *fakeUsers) Create(u *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email || existing.Username == u.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	u.ID = f.nextID
	f.nextID++
	cpy := *u
	f.byID[u.ID] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(id uint) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cpy := *u
	return &cpy, nil
}

func (f *fakeUsers) GetByEmail(email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cpy := *u
			return &cpy, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) GetByUsername(username string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			cpy := *u
			return &cpy, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) Update(u *models.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.byID[u.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cpy := *u
	f.byID[u.ID] = &cpy
	return nil
}

type fakeRecorder struct {
	entries []AuditEntry
	nextID  uint
	err     error
}

var _ Recorder = (*fakeRecorder)(nil)

func (f *fakeRecorder) Record(e AuditEntry) (*models.AuditLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.entries = append(f.entries, e)
	f.nextID++
	return &models.AuditLog{ID: f.nextID, Action: e.Action}, nil
}

func (f *fakeRecorder) byAction(action string) []AuditEntry {
	var out []AuditEntry
	for _, e := range f.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// fakeCipher is a reversible stand-in; real encryption is tested in the
// crypto package.
type fakeCipher struct {
	encErr error
	decErr error
}

var _ Encrypter = (*fakeCipher)(nil)

func (f *fakeCipher) Encrypt(plaintext string) (string, error) {
	if f.encErr != nil {
		return "", f.encErr
	}
	return "enc:" + plaintext, nil
}

func (f *fakeCipher) Decrypt(ciphertext string) (string, error) {
	if f.decErr != nil {
		return "", f.decErr
	}
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

type fakeNotifier struct {
	notified []uint
}

var _ Notifier = (*fakeNotifier)(nil)

func (f *fakeNotifier) NotifyNewMessage(recipientID uint, _ *models.Message) {
	f.notified = append(f.notified, recipientID)
}

type fakeBlockChecker struct {
	blocked bool
	err     error
}

var _ BlockChecker = (*fakeBlockChecker)(nil)

func (f *fakeBlockChecker) IsBlocked(_, _ uint) (bool, error) {
	return f.blocked, f.err
}

type fakeMessages struct {
	byID   map[uint]*models.Message
	nextID uint
}

var _ MessageStore = (*fakeMessages)(nil)

func newFakeMessages() *fakeMessages {
	return &fakeMessages{byID: map[uint]*models.Message{}, nextID: 1}
}

func (f *fakeMessages) Create(m *models.Message) error {
	m.ID = f.nextID
	f.nextID++
	cpy := *m
	f.byID[m.ID] = &cpy
	return nil
}

func (f *fakeMessages) GetByID(id uint) (*models.Message, error) {
	m, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cpy := *m
	return &cpy, nil
}

func (f *fakeMessages) Update(m *models.Message) error {
	if _, ok := f.byID[m.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cpy := *m
	f.byID[m.ID] = &cpy
	return nil
}

func (f *fakeMessages) MarkRead(messageID, readerID uint, readAt time.Time) (int64, error) {
	m, ok := f.byID[messageID]
	if !ok || m.RecipientID != readerID || m.IsDeleted || m.IsRead {
		return 0, nil
	}
	m.IsRead = true
	m.ReadAt = &readAt
	return 1, nil
}

func (f *fakeMessages) MarkConversationRead(senderID, readerID uint, readAt time.Time) (int64, error) {
	var n int64
	for _, m := range f.byID {
		if m.SenderID == senderID && m.RecipientID == readerID && !m.IsDeleted && !m.IsRead {
			m.IsRead = true
			m.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) SoftDelete(messageID, deletedBy uint, deletedAt time.Time) (int64, error) {
	m, ok := f.byID[messageID]
	if !ok || m.IsDeleted {
		return 0, nil
	}
	m.IsDeleted = true
	m.DeletedAt = &deletedAt
	m.DeletedBy = &deletedBy
	return 1, nil
}

func (f *fakeMessages) ListConversation(userA, userB uint, limit, offset int) ([]models.Message, error) {
	var out []models.Message
	for id := uint(1); id < f.nextID; id++ {
		m, ok := f.byID[id]
		if !ok || m.IsDeleted {
			continue
		}
		if (m.SenderID == userA && m.RecipientID == userB) || (m.SenderID == userB && m.RecipientID == userA) {
			out = append(out, *m)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessages) ListConversationsForUser(userID uint) ([]repository.ConversationSummary, error) {
	type group struct {
		last   *models.Message
		unread int64
	}
	groups := map[uint]*group{}
	for _, m := range f.byID {
		if m.IsDeleted || !m.IsInConversationWith(userID) {
			continue
		}
		other := m.OtherParticipant(userID)
		g, ok := groups[other]
		if !ok {
			g = &group{}
			groups[other] = g
		}
		if g.last == nil || m.Timestamp.After(g.last.Timestamp) {
			g.last = m
		}
		if m.RecipientID == userID && !m.IsRead {
			g.unread++
		}
	}
	var out []repository.ConversationSummary
	for other, g := range groups {
		out = append(out, repository.ConversationSummary{
			CounterpartID: other,
			LastMessage:   *g.last,
			UnreadCount:   g.unread,
		})
	}
	return out, nil
}

func (f *fakeMessages) CountUnreadForUser(userID uint) (int64, error) {
	var n int64
	for _, m := range f.byID {
		if m.RecipientID == userID && !m.IsRead && !m.IsDeleted {
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) StatsForUser(userID uint) (*repository.MessageStats, error) {
	stats := &repository.MessageStats{}
	for _, m := range f.byID {
		if m.IsDeleted {
			continue
		}
		if m.SenderID == userID {
			stats.Sent++
		}
		if m.RecipientID == userID {
			stats.Received++
			if !m.IsRead {
				stats.Unread++
			}
		}
	}
	return stats, nil
}

func (f *fakeMessages) ListDeletedBefore(cutoff time.Time, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.byID {
		if m.IsDeleted && m.DeletedAt != nil && m.DeletedAt.Before(cutoff) {
			out = append(out, *m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeBlocks struct {
	byID   map[uint]*models.BlockedUser
	nextID uint

	createErr error
}

var _ BlockStore = (*fakeBlocks)(nil)

func newFakeBlocks() *fakeBlocks {
	return &fakeBlocks{byID: map[uint]*models.BlockedUser{}, nextID: 1}
}

func (f *fakeBlocks) Create(b *models.BlockedUser) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.byID {
		if existing.BlockerID == b.BlockerID && existing.BlockedID == b.BlockedID {
			return errs.ErrConflict
		}
	}
	b.ID = f.nextID
	f.nextID++
	cpy := *b
	f.byID[b.ID] = &cpy
	return nil
}

func (f *fakeBlocks) Update(b *models.BlockedUser) error {
	if _, ok := f.byID[b.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cpy := *b
	f.byID[b.ID] = &cpy
	return nil
}

func (f *fakeBlocks) GetByID(id uint) (*models.BlockedUser, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cpy := *b
	return &cpy, nil
}

func (f *fakeBlocks) GetPair(blockerID, blockedID uint) (*models.BlockedUser, error) {
	for _, b := range f.byID {
		if b.BlockerID == blockerID && b.BlockedID == blockedID {
			cpy := *b
			return &cpy, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBlocks) ListActiveBetween(a, b uint) ([]models.BlockedUser, error) {
	var out []models.BlockedUser
	for _, row := range f.byID {
		if !row.IsActive {
			continue
		}
		if (row.BlockerID == a && row.BlockedID == b) || (row.BlockerID == b && row.BlockedID == a) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeBlocks) ListActiveByBlocker(blockerID uint) ([]models.BlockedUser, error) {
	var out []models.BlockedUser
	for _, row := range f.byID {
		if row.IsActive && row.BlockerID == blockerID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeBlocks) ListPendingReview(limit int) ([]models.BlockedUser, error) {
	var out []models.BlockedUser
	for _, row := range f.byID {
		if row.IsActive && !row.AdminReviewed && row.RequiresAdminReview() {
			out = append(out, *row)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeBlocks) DeactivateExpired(now time.Time) (int64, error) {
	var n int64
	for _, row := range f.byID {
		if row.IsActive && row.IsExpired(now) {
			row.Expire(now)
			n++
		}
	}
	return n, nil
}

type fakeTokens struct {
	byValue map[string]*models.RefreshToken
	nextID  uint

	createErr error
	updateErr error
}

var _ TokenStore = (*fakeTokens)(nil)

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byValue: map[string]*models.RefreshToken{}, nextID: 1}
}

func (f *fakeTokens) Create(t *models.RefreshToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byValue[t.Token]; exists {
		return errs.ErrConflict
	}
	t.ID = f.nextID
	f.nextID++
	cpy := *t
	f.byValue[t.Token] = &cpy
	return nil
}

func (f *fakeTokens) GetByToken(token string) (*models.RefreshToken, error) {
	t, ok := f.byValue[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cpy := *t
	return &cpy, nil
}

func (f *fakeTokens) Update(t *models.RefreshToken) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.byValue[t.Token]; !ok {
		return gorm.ErrRecordNotFound
	}
	cpy := *t
	f.byValue[t.Token] = &cpy
	return nil
}

func (f *fakeTokens) RevokeAllForUser(userID uint, reason string, now time.Time) (int64, error) {
	var n int64
	for _, t := range f.byValue {
		if t.UserID == userID && !t.IsRevoked {
			t.Revoke(reason, now)
			n++
		}
	}
	return n, nil
}

func (f *fakeTokens) DeactivateExpired(now time.Time) (int64, error) {
	var n int64
	for _, t := range f.byValue {
		if t.IsActive && t.IsExpired(now) {
			t.IsActive = false
			n++
		}
	}
	return n, nil
}

type fakeSessions struct {
	bySID  map[string]*models.UserSession
	nextID uint
}

var _ SessionStore = (*fakeSessions)(nil)

func newFakeSessions() *fakeSessions {
	return &fakeSessions{bySID: map[string]*models.UserSession{}, nextID: 1}
}

func (f *fakeSessions) Create(s *models.UserSession) error {
	s.ID = f.nextID
	f.nextID++
	cpy := *s
	f.bySID[s.SessionID] = &cpy
	return nil
}

func (f *fakeSessions) GetBySessionID(sessionID string) (*models.UserSession, error) {
	s, ok := f.bySID[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cpy := *s
	return &cpy, nil
}

func (f *fakeSessions) Touch(sessionID string, now time.Time) (int64, error) {
	s, ok := f.bySID[sessionID]
	if !ok || !s.IsActive || now.After(s.ExpiresAt) {
		return 0, nil
	}
	s.Touch(now)
	return 1, nil
}

func (f *fakeSessions) Terminate(sessionID, reason string, now time.Time) (int64, error) {
	s, ok := f.bySID[sessionID]
	if !ok || !s.IsActive {
		return 0, nil
	}
	s.Logout(reason, now)
	return 1, nil
}

func (f *fakeSessions) ListActiveByUser(userID uint) ([]models.UserSession, error) {
	var out []models.UserSession
	for _, s := range f.bySID {
		if s.UserID == userID && s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessions) TerminateAllForUser(userID uint, exceptSessionID, reason string, now time.Time) (int64, error) {
	var n int64
	for _, s := range f.bySID {
		if s.UserID == userID && s.IsActive && s.SessionID != exceptSessionID {
			s.Logout(reason, now)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) ExpireLapsed(now time.Time, inactivity time.Duration) (int64, error) {
	var n int64
	for _, s := range f.bySID {
		if s.IsActive && (now.After(s.ExpiresAt) || s.IsIdle(inactivity, now)) {
			s.Expire(now)
			n++
		}
	}
	return n, nil
}

type fakeAuditStore struct {
	byID   map[uint]*models.AuditLog
	nextID uint

	createErr error
}

var _ AuditStore = (*fakeAuditStore)(nil)

func newFakeAuditStore() *fakeAuditStore {
	return &fakeAuditStore{byID: map[uint]*models.AuditLog{}, nextID: 1}
}

func (f *fakeAuditStore) Create(a *models.AuditLog) error {
	if f.createErr != nil {
		return f.createErr
	}
	a.ID = f.nextID
	f.nextID++
	cpy := *a
	f.byID[a.ID] = &cpy
	return nil
}

func (f *fakeAuditStore) GetByID(id uint) (*models.AuditLog, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cpy := *a
	return &cpy, nil
}

func (f *fakeAuditStore) MarkReviewed(id, reviewerID uint, notes string, at time.Time) (int64, error) {
	a, ok := f.byID[id]
	if !ok || a.Reviewed {
		return 0, nil
	}
	a.MarkReviewed(reviewerID, notes, at)
	return 1, nil
}

func (f *fakeAuditStore) ListByUser(userID uint, limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for _, a := range f.byID {
		if a.UserID != nil && *a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) ListByAction(action string, from, to time.Time, limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for _, a := range f.byID {
		if a.Action == action && !a.Timestamp.Before(from) && !a.Timestamp.After(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) ListByEntity(entityType string, entityID uint, limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for _, a := range f.byID {
		if a.EntityType == entityType && a.EntityID != nil && *a.EntityID == entityID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) ListBetween(from, to time.Time, limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for _, a := range f.byID {
		if !a.Timestamp.Before(from) && !a.Timestamp.After(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) ListByIP(ip string, limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for _, a := range f.byID {
		if a.ClientIP == ip {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) Search(query string, limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for _, a := range f.byID {
		if strings.Contains(a.Action, query) || strings.Contains(a.Description, query) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) ListFlaggedUnreviewed(limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for _, a := range f.byID {
		if a.Flagged && !a.Reviewed {
			out = append(out, *a)
		}
	}
	return out, nil
}
