package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/events"
	"github.com/eventmarket/api/internal/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	users map[uuid.UUID]database.User
	prefs map[uuid.UUID]database.NotificationPreference
}

func (f *fakeStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	u, ok := f.users[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) GetNotificationPreferences(_ context.Context, id uuid.UUID) (database.NotificationPreference, error) {
	p, ok := f.prefs[id]
	if !ok {
		return database.NotificationPreference{}, pgx.ErrNoRows
	}
	return p, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newNotifier() (*notify.Notifier, *fakeMailer, uuid.UUID) {
	creator := uuid.New()
	store := &fakeStore{
		users: map[uuid.UUID]database.User{creator: {ID: creator, Email: "ops@eventmarket.test", IsActive: true}},
	}
	mailer := &fakeMailer{}
	return notify.NewNotifier(store, mailer, "https://app.test", nil), mailer, creator
}

func TestProposalSentEmailsClient(t *testing.T) {
	n, mailer, _ := newNotifier()
	token := uuid.New()

	n.Handle(events.TopicProposalSent, events.ProposalEvent{
		InvoiceNumber: "INV-7",
		ClientName:    "Dana",
		ClientEmail:   "dana@acme.io",
		Token:         token,
		Total:         decimal.RequireFromString("113.4"),
	})

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "dana@acme.io", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].HTML, "https://app.test/proposals/"+token.String())
	assert.Contains(t, mailer.sent[0].HTML, "$113.40")
}

func TestResponseEmailsCreatorByDefault(t *testing.T) {
	n, mailer, creator := newNotifier()

	n.Handle(events.TopicProposalResponded, events.ProposalEvent{
		InvoiceNumber: "INV-7",
		Status:        "revision_requested",
		Feedback:      "fewer desserts",
		CreatedBy:     creator,
	})

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ops@eventmarket.test", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Subject, "sent back for revision")
	assert.Contains(t, mailer.sent[0].HTML, "fewer desserts")
}

func TestPreferencesSuppressEmail(t *testing.T) {
	creator := uuid.New()
	store := &fakeStore{
		users: map[uuid.UUID]database.User{creator: {ID: creator, Email: "ops@eventmarket.test", IsActive: true}},
		prefs: map[uuid.UUID]database.NotificationPreference{
			creator: {UserID: creator, ProposalUpdates: true, PaymentUpdates: false},
		},
	}
	mailer := &fakeMailer{}
	n := notify.NewNotifier(store, mailer, "https://app.test", nil)

	n.Handle(events.TopicInvoicePaid, events.ProposalEvent{CreatedBy: creator})
	assert.Empty(t, mailer.sent)

	n.Handle(events.TopicProposalResponded, events.ProposalEvent{CreatedBy: creator, Status: "accepted"})
	assert.Len(t, mailer.sent, 1)
}

func TestMailerFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{}
	mailer := &fakeMailer{err: errors.New("smtp down")}
	n := notify.NewNotifier(store, mailer, "https://app.test", nil)

	assert.NotPanics(t, func() {
		n.Handle(events.TopicProposalSent, events.ProposalEvent{ClientEmail: "dana@acme.io"})
	})
}
