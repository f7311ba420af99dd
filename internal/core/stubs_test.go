package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coachhub/coachhub-api/internal/db"
	"github.com/coachhub/coachhub-api/internal/models"
	"github.com/coachhub/coachhub-api/pkg/cache"
)

var errStoreDown = errors.New("store unavailable")

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

type stubProfiles struct {
	mu          sync.Mutex
	byID        map[string]*models.Profile
	findErr     error
	activeCalls map[string]bool
	deactivated []string
}

func newStubProfiles(profiles ...*models.Profile) *stubProfiles {
	s := &stubProfiles{byID: map[string]*models.Profile{}, activeCalls: map[string]bool{}}
	for _, p := range profiles {
		s.byID[p.ID] = p
	}
	return s
}

func (s *stubProfiles) FindByID(_ context.Context, id string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("profile '%s': %w", id, db.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *stubProfiles) ListByRole(_ context.Context, role models.Role) ([]*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Profile
	for _, p := range s.byID {
		if p.Role == role {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubProfiles) ListUsersByEmployee(_ context.Context, employeeID string) ([]*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Profile
	for _, p := range s.byID {
		if p.Role == models.RoleUser && p.AssignedEmployeeID == employeeID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubProfiles) SetEmployeeActive(_ context.Context, id string, active bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeCalls[id] = active
	p, ok := s.byID[id]
	if !ok || p.Role != models.RoleEmployee {
		return fmt.Errorf("employee '%s': %w", id, db.ErrNotFound)
	}
	p.IsActive = active
	p.SubscriptionExpired = !active
	p.UpdatedAt = at
	return nil
}

func (s *stubProfiles) DeactivateEmployeesByEmail(_ context.Context, email string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.byID {
		if p.Role == models.RoleEmployee && strings.EqualFold(p.Email, email) {
			p.IsActive = false
			p.SubscriptionExpired = true
			p.UpdatedAt = at
			s.deactivated = append(s.deactivated, p.ID)
			n++
		}
	}
	return n, nil
}

type stubSubscriptions struct {
	mu        sync.Mutex
	byID      map[string]*models.Subscription
	nextID    int
	creates   int
	updates   int
	listErr   error
	updateErr map[string]error
}

func newStubSubscriptions(subs ...*models.Subscription) *stubSubscriptions {
	s := &stubSubscriptions{byID: map[string]*models.Subscription{}, updateErr: map[string]error{}}
	for _, sub := range subs {
		cp := *sub
		s.byID[sub.ID] = &cp
	}
	return s
}

func (s *stubSubscriptions) get(id string) *models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.byID[id]
	return &cp
}

func (s *stubSubscriptions) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates + s.updates
}

func (s *stubSubscriptions) find(match func(*models.Subscription) bool) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if match(s.byID[id]) {
			cp := *s.byID[id]
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *stubSubscriptions) FindByEmployeeID(_ context.Context, employeeID string) (*models.Subscription, error) {
	return s.find(func(sub *models.Subscription) bool { return sub.EmployeeID == employeeID })
}

func (s *stubSubscriptions) FindByEmployeeEmail(_ context.Context, email string) (*models.Subscription, error) {
	return s.find(func(sub *models.Subscription) bool { return sub.EmployeeEmail == email })
}

func (s *stubSubscriptions) Create(_ context.Context, sub *models.Subscription) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("sub-new-%d", s.nextID)
	cp := *sub
	cp.ID = id
	s.byID[id] = &cp
	s.creates++
	return id, nil
}

func (s *stubSubscriptions) Update(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateErr[sub.ID]; err != nil {
		return err
	}
	cp := *sub
	s.byID[sub.ID] = &cp
	s.updates++
	return nil
}

func (s *stubSubscriptions) MarkReminderSent(_ context.Context, id string, expected, at time.Time) error {
	return s.updateIfCurrent(id, expected, func(sub *models.Subscription) {
		sub.ReminderSent = true
		sub.UpdatedAt = at
	})
}

func (s *stubSubscriptions) MarkExpired(_ context.Context, id string, expected, at time.Time) error {
	return s.updateIfCurrent(id, expected, func(sub *models.Subscription) {
		sub.Status = models.SubscriptionExpired
		sub.IsActive = false
		sub.ExpirationEmailSent = true
		sub.UpdatedAt = at
	})
}

func (s *stubSubscriptions) updateIfCurrent(id string, expected time.Time, apply func(*models.Subscription)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateErr[id]; err != nil {
		return err
	}
	sub, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("subscription '%s': %w", id, db.ErrNotFound)
	}
	if !sub.Live() || !sub.ExpirationDate.Equal(expected) {
		return fmt.Errorf("subscription '%s': %w", id, db.ErrStale)
	}
	apply(sub)
	s.updates++
	return nil
}

func (s *stubSubscriptions) ListLive(context.Context) ([]*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*models.Subscription
	for _, sub := range s.byID {
		if sub.Live() {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type stubPayments struct {
	mu       sync.Mutex
	payments []*models.Payment
}

func (s *stubPayments) Create(_ context.Context, p *models.Payment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.ID = fmt.Sprintf("pay-%d", len(s.payments)+1)
	s.payments = append(s.payments, &cp)
	return cp.ID, nil
}

func (s *stubPayments) ListByEmployee(_ context.Context, employeeID string) ([]*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Payment
	for i := len(s.payments) - 1; i >= 0; i-- {
		if s.payments[i].EmployeeID == employeeID {
			out = append(out, s.payments[i])
		}
	}
	return out, nil
}

type sentEmail struct {
	To   string
	Kind EmailKind
	Data map[string]interface{}
}

type sentPush struct {
	Token, Title, Body string
	Data               map[string]string
}

type stubNotifier struct {
	mu      sync.Mutex
	emails  []sentEmail
	pushes  []sentPush
	failFor map[string]error
	pushErr error
	// afterEmail runs outside the lock once an email is recorded.
	afterEmail func(to string, kind EmailKind)
}

func (s *stubNotifier) SendEmail(_ context.Context, to string, kind EmailKind, data map[string]interface{}) error {
	s.mu.Lock()
	if err := s.failFor[to]; err != nil {
		s.mu.Unlock()
		return err
	}
	s.emails = append(s.emails, sentEmail{To: to, Kind: kind, Data: data})
	hook := s.afterEmail
	s.mu.Unlock()
	if hook != nil {
		hook(to, kind)
	}
	return nil
}

func (s *stubNotifier) SendPush(_ context.Context, token, title, body string, data map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pushErr != nil {
		return s.pushErr
	}
	s.pushes = append(s.pushes, sentPush{Token: token, Title: title, Body: body, Data: data})
	return nil
}

func (s *stubNotifier) count(kind EmailKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.emails {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type stubLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	acquired int
	released int
}

func newStubLocker() *stubLocker {
	return &stubLocker{held: map[string]bool{}}
}

func (l *stubLocker) Acquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	if l.held[key] {
		return "", false, nil
	}
	l.held[key] = true
	l.acquired++
	return "token-" + key, true, nil
}

func (l *stubLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held[key] || token != "token-"+key {
		return cache.ErrNotHeld
	}
	delete(l.held, key)
	l.released++
	return nil
}

type stubEvents struct {
	mu     sync.Mutex
	events []string
}

func (s *stubEvents) Publish(_ context.Context, eventType string, _ interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType)
	return nil
}

type stubAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (s *stubAlerter) Alert(_ context.Context, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, msg)
	return nil
}

type stubAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (s *stubAudit) CreateAuditLog(_ context.Context, e models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// stubChats keeps chats and messages in memory with the same upsert semantics as the Firestore repository.
type stubChats struct {
	mu            sync.Mutex
	chats         map[string]*models.Chat
	messages      map[string]map[string]*models.Message
	mirror        map[string]*models.Message
	createMsgErr  error
	mirrorErr     error
	listErr       error
	markErr       error
	markCalls     int
	messageWrites int
}

func newStubChats() *stubChats {
	return &stubChats{
		chats:    map[string]*models.Chat{},
		messages: map[string]map[string]*models.Message{},
		mirror:   map[string]*models.Message{},
	}
}

func cloneMessage(m *models.Message) *models.Message {
	cp := *m
	if m.Reactions != nil {
		cp.Reactions = make(map[string][]string, len(m.Reactions))
		for k, v := range m.Reactions {
			cp.Reactions[k] = append([]string(nil), v...)
		}
	}
	return &cp
}

func cloneChat(c *models.Chat) *models.Chat {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	cp.UnreadCount = make(map[string]int, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		cp.UnreadCount[k] = v
	}
	return &cp
}

func (s *stubChats) GetChat(_ context.Context, chatID string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, fmt.Errorf("chat '%s': %w", chatID, db.ErrNotFound)
	}
	return cloneChat(c), nil
}

func (s *stubChats) CreateChat(_ context.Context, chat *models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chat.ID]; !ok {
		s.chats[chat.ID] = cloneChat(chat)
	}
	return nil
}

func (s *stubChats) ApplyMessage(_ context.Context, chatID string, participants []string, last models.LastMessage, senderID, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		c = &models.Chat{ID: chatID, CreatedAt: last.Timestamp, UnreadCount: map[string]int{}}
		s.chats[chatID] = c
	}
	c.Participants = append([]string(nil), participants...)
	l := last
	c.LastMessage = &l
	c.LastActivity = last.Timestamp
	c.UnreadCount[senderID] = 0
	c.UnreadCount[recipientID]++
	return nil
}

func (s *stubChats) ListChatsForUser(_ context.Context, userID string) ([]*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Chat
	for _, c := range s.chats {
		if c.HasParticipant(userID) {
			out = append(out, cloneChat(c))
		}
	}
	return out, nil
}

func (s *stubChats) CreateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createMsgErr != nil {
		return s.createMsgErr
	}
	if s.messages[msg.ChatID] == nil {
		s.messages[msg.ChatID] = map[string]*models.Message{}
	}
	s.messages[msg.ChatID][msg.ID] = cloneMessage(msg)
	s.messageWrites++
	return nil
}

func (s *stubChats) MirrorMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mirrorErr != nil {
		return s.mirrorErr
	}
	s.mirror[msg.ID] = cloneMessage(msg)
	return nil
}

func (s *stubChats) GetMessage(_ context.Context, chatID, messageID string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[chatID][messageID]
	if !ok {
		return nil, fmt.Errorf("message '%s': %w", messageID, db.ErrNotFound)
	}
	return cloneMessage(m), nil
}

func sortedMessages(in []*models.Message, limit int) []*models.Message {
	sort.SliceStable(in, func(i, j int) bool { return in[i].CreatedAt.Before(in[j].CreatedAt) })
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}

func (s *stubChats) ListMessages(_ context.Context, chatID string, limit int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*models.Message
	for _, m := range s.messages[chatID] {
		out = append(out, cloneMessage(m))
	}
	return sortedMessages(out, limit), nil
}

func (s *stubChats) ListMirroredMessages(_ context.Context, chatID string, limit int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Message
	for _, m := range s.mirror {
		if m.ChatID == chatID {
			out = append(out, cloneMessage(m))
		}
	}
	return sortedMessages(out, limit), nil
}

func (s *stubChats) MarkRead(_ context.Context, chatID, readerID string, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	if s.markErr != nil {
		return s.markErr
	}
	for _, id := range ids {
		readAt := at
		if m, ok := s.messages[chatID][id]; ok {
			m.Read = true
			m.ReadAt = &readAt
		}
		if m, ok := s.mirror[id]; ok {
			m.Read = true
			m.ReadAt = &readAt
		}
	}
	if c, ok := s.chats[chatID]; ok {
		c.UnreadCount[readerID] = 0
	}
	return nil
}

func (s *stubChats) UpdateReactions(_ context.Context, chatID, messageID string, reactions map[string][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[chatID][messageID]
	if !ok {
		return fmt.Errorf("message '%s': %w", messageID, db.ErrNotFound)
	}
	m.Reactions = reactions
	return nil
}

type stubNotifications struct {
	mu    sync.Mutex
	items []*models.Notification
	err   error
}

func (s *stubNotifications) Create(_ context.Context, n *models.Notification) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.items = append(s.items, n)
	return fmt.Sprintf("n-%d", len(s.items)), nil
}
