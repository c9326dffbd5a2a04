package services

import (
	"context"
	"testing"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/stretchr/testify/mock"

	"order-system/internal/status"
	"order-system/models"
	"order-system/store"
)

// stubTx satisfies Transactor without a database; the callback runs with a
// nil transaction, which the store mocks never dereference.
type stubTx struct{}

func (stubTx) RunInTx(ctx context.Context, fn func(tx *dbx.Tx) error) error {
	return fn(nil)
}

// fakeMsg records how a handler settled the message.
type fakeMsg struct {
	subject    string
	data       []byte
	outcome    string
	nakDelay   time.Duration
	inProgress int
}

func newFakeMsg(t *testing.T, subj models.Subject, entity any) *fakeMsg {
	t.Helper()
	data, err := models.Encode(subj, entity)
	if err != nil {
		t.Fatalf("encode %s: %v", subj, err)
	}
	return &fakeMsg{subject: subj.String(), data: data}
}

func (m *fakeMsg) Subject() string { return m.subject }
func (m *fakeMsg) Data() []byte    { return m.data }

func (m *fakeMsg) settle(outcome string) {
	if m.outcome == "" {
		m.outcome = outcome
	}
}

func (m *fakeMsg) Ack(ctx context.Context) error {
	m.settle("ack")
	return nil
}

func (m *fakeMsg) AckSync(ctx context.Context) error {
	m.settle("ack")
	return nil
}

func (m *fakeMsg) Term(ctx context.Context) error {
	m.settle("term")
	return nil
}

func (m *fakeMsg) Nak(ctx context.Context, delay time.Duration) error {
	m.settle("nak")
	m.nakDelay = delay
	return nil
}

func (m *fakeMsg) InProgress(ctx context.Context) error {
	m.inProgress++
	return nil
}

// memTicketStore is a map-backed TicketStore for projection tests.
type memTicketStore struct {
	tickets map[int64]*models.Ticket
}

func newMemTicketStore() *memTicketStore {
	return &memTicketStore{tickets: make(map[int64]*models.Ticket)}
}

func (s *memTicketStore) FindByID(ctx context.Context, id int64) (*models.Ticket, error) {
	t, ok := s.tickets[id]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTicketStore) FindByIDForUpdate(ctx context.Context, tx dbx.Builder, id int64) (*models.Ticket, error) {
	return s.FindByID(ctx, id)
}

func (s *memTicketStore) Insert(ctx context.Context, tx dbx.Builder, t *models.Ticket) error {
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (s *memTicketStore) UpdateVersioned(ctx context.Context, tx dbx.Builder, t *models.Ticket) error {
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

type mockTicketStore struct{ mock.Mock }

func (m *mockTicketStore) FindByID(ctx context.Context, id int64) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if t, ok := args.Get(0).(*models.Ticket); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTicketStore) FindByIDForUpdate(ctx context.Context, tx dbx.Builder, id int64) (*models.Ticket, error) {
	args := m.Called(ctx, tx, id)
	if t, ok := args.Get(0).(*models.Ticket); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTicketStore) Insert(ctx context.Context, tx dbx.Builder, t *models.Ticket) error {
	return m.Called(ctx, tx, t).Error(0)
}

func (m *mockTicketStore) UpdateVersioned(ctx context.Context, tx dbx.Builder, t *models.Ticket) error {
	return m.Called(ctx, tx, t).Error(0)
}

type mockOrderStore struct{ mock.Mock }

func (m *mockOrderStore) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	if o, ok := args.Get(0).(*models.Order); ok {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderStore) FindByUser(ctx context.Context, userID int64) ([]*models.Order, error) {
	args := m.Called(ctx, userID)
	if o, ok := args.Get(0).([]*models.Order); ok {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderStore) ExistsActiveForTicket(ctx context.Context, ticketID int64) (bool, error) {
	args := m.Called(ctx, ticketID)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderStore) Insert(ctx context.Context, tx dbx.Builder, o *models.Order) error {
	return m.Called(ctx, tx, o).Error(0)
}

func (m *mockOrderStore) UpdateStatus(ctx context.Context, tx dbx.Builder, orderID int64, st models.OrderStatus) error {
	return m.Called(ctx, tx, orderID, st).Error(0)
}

type mockOutboxStore struct{ mock.Mock }

func (m *mockOutboxStore) Append(ctx context.Context, tx dbx.Builder, subj models.Subject, payload []byte) error {
	return m.Called(ctx, tx, subj, payload).Error(0)
}

func (m *mockOutboxStore) Unsent(ctx context.Context, limit int) ([]store.OutboxRecord, error) {
	args := m.Called(ctx, limit)
	if r, ok := args.Get(0).([]store.OutboxRecord); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOutboxStore) MarkSent(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, subject string, payload []byte) (string, error) {
	args := m.Called(ctx, subject, payload)
	return args.String(0), args.Error(1)
}
