package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/cache"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/observability"
	"github.com/boddenberg/farma-crm-bfa-go/internal/service"
	"github.com/boddenberg/farma-crm-bfa-go/internal/session"

	"go.uber.org/zap"
)

const testActor = "user-1"

// fixedNow is a Friday.
var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func actorCtx() context.Context {
	return session.WithActor(context.Background(), testActor)
}

// --- Mocks ---

// mockStore implements port.Store. Unset hooks return zero values.
type mockStore struct {
	mu    sync.Mutex
	calls []string

	listClients        func(owner string) ([]domain.Client, error)
	countActiveClients func(owner string) (int, error)
	insertClient       func(row map[string]any) (*domain.Client, error)
	updateClient       func(id, owner string, patch map[string]any) (*domain.Client, error)
	deleteClient       func(id, owner string) error

	listProducts          func(owner string) ([]domain.Product, error)
	getProduct            func(id, owner string) (*domain.Product, error)
	insertProduct         func(row map[string]any) (*domain.Product, error)
	updateProduct         func(id, owner string, patch map[string]any) (*domain.Product, error)
	deleteProduct         func(id, owner string) error
	countSaleReferences   func(productID string) (int, error)
	listProductCategories func(owner string) ([]string, error)

	listCampaigns         func(owner string) ([]domain.Campaign, error)
	getCampaign           func(id, owner string) (*domain.Campaign, error)
	insertCampaign        func(row map[string]any) (*domain.Campaign, error)
	updateCampaign        func(id, owner string, patch map[string]any) (*domain.Campaign, error)
	deleteCampaign        func(id, owner string) error
	listUpcomingCampaigns func(owner string, from time.Time, limit int) ([]domain.Campaign, error)
	listExecutions        func(ids []string) ([]domain.CampaignExecution, error)

	listForms         func(owner string) ([]domain.Form, error)
	getForm           func(id, owner string) (*domain.Form, error)
	insertForm        func(row map[string]any) (*domain.Form, error)
	updateForm        func(id, owner string, patch map[string]any) (*domain.Form, error)
	deleteForm        func(id, owner string) error
	listFormResponses func(formID string) ([]domain.FormResponse, error)

	countActiveConversations     func() (int, error)
	listAssignedConversations    func(actor string) ([]domain.Conversation, error)
	getConversation              func(id string) (*domain.Conversation, error)
	listActiveConversationsSince func(since time.Time) ([]domain.Conversation, error)
	dailyConversations           func() ([]domain.Series, error)
	monthlyConversations         func(limit int) ([]domain.Series, error)

	conversationActivity func(ids []string) (map[string]domain.ConversationActivity, error)
	listRecentMessages   func(ids []string, limit int) ([]domain.Message, error)
	markConversationRead func(id, actor string) error

	sumItemsSold func(owner string, from, to time.Time) (int, error)
}

func (m *mockStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockStore) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockStore) Called(name string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func (m *mockStore) ListClients(_ context.Context, owner string) ([]domain.Client, error) {
	m.record("ListClients")
	if m.listClients == nil {
		return nil, nil
	}
	return m.listClients(owner)
}

func (m *mockStore) CountActiveClients(_ context.Context, owner string) (int, error) {
	m.record("CountActiveClients")
	if m.countActiveClients == nil {
		return 0, nil
	}
	return m.countActiveClients(owner)
}

func (m *mockStore) InsertClient(_ context.Context, row map[string]any) (*domain.Client, error) {
	m.record("InsertClient")
	if m.insertClient == nil {
		return &domain.Client{}, nil
	}
	return m.insertClient(row)
}

func (m *mockStore) UpdateClient(_ context.Context, id, owner string, patch map[string]any) (*domain.Client, error) {
	m.record("UpdateClient")
	if m.updateClient == nil {
		return &domain.Client{ID: id}, nil
	}
	return m.updateClient(id, owner, patch)
}

func (m *mockStore) DeleteClient(_ context.Context, id, owner string) error {
	m.record("DeleteClient")
	if m.deleteClient == nil {
		return nil
	}
	return m.deleteClient(id, owner)
}

func (m *mockStore) ListProducts(_ context.Context, owner string) ([]domain.Product, error) {
	m.record("ListProducts")
	if m.listProducts == nil {
		return nil, nil
	}
	return m.listProducts(owner)
}

func (m *mockStore) GetProduct(_ context.Context, id, owner string) (*domain.Product, error) {
	m.record("GetProduct")
	if m.getProduct == nil {
		return &domain.Product{ID: id}, nil
	}
	return m.getProduct(id, owner)
}

func (m *mockStore) InsertProduct(_ context.Context, row map[string]any) (*domain.Product, error) {
	m.record("InsertProduct")
	if m.insertProduct == nil {
		return &domain.Product{}, nil
	}
	return m.insertProduct(row)
}

func (m *mockStore) UpdateProduct(_ context.Context, id, owner string, patch map[string]any) (*domain.Product, error) {
	m.record("UpdateProduct")
	if m.updateProduct == nil {
		return &domain.Product{ID: id}, nil
	}
	return m.updateProduct(id, owner, patch)
}

func (m *mockStore) DeleteProduct(_ context.Context, id, owner string) error {
	m.record("DeleteProduct")
	if m.deleteProduct == nil {
		return nil
	}
	return m.deleteProduct(id, owner)
}

func (m *mockStore) CountSaleReferences(_ context.Context, productID string) (int, error) {
	m.record("CountSaleReferences")
	if m.countSaleReferences == nil {
		return 0, nil
	}
	return m.countSaleReferences(productID)
}

func (m *mockStore) ListProductCategories(_ context.Context, owner string) ([]string, error) {
	m.record("ListProductCategories")
	if m.listProductCategories == nil {
		return nil, nil
	}
	return m.listProductCategories(owner)
}

func (m *mockStore) ListCampaigns(_ context.Context, owner string) ([]domain.Campaign, error) {
	m.record("ListCampaigns")
	if m.listCampaigns == nil {
		return nil, nil
	}
	return m.listCampaigns(owner)
}

func (m *mockStore) GetCampaign(_ context.Context, id, owner string) (*domain.Campaign, error) {
	m.record("GetCampaign")
	if m.getCampaign == nil {
		return &domain.Campaign{ID: id}, nil
	}
	return m.getCampaign(id, owner)
}

func (m *mockStore) InsertCampaign(_ context.Context, row map[string]any) (*domain.Campaign, error) {
	m.record("InsertCampaign")
	if m.insertCampaign == nil {
		return &domain.Campaign{}, nil
	}
	return m.insertCampaign(row)
}

func (m *mockStore) UpdateCampaign(_ context.Context, id, owner string, patch map[string]any) (*domain.Campaign, error) {
	m.record("UpdateCampaign")
	if m.updateCampaign == nil {
		return &domain.Campaign{ID: id}, nil
	}
	return m.updateCampaign(id, owner, patch)
}

func (m *mockStore) DeleteCampaign(_ context.Context, id, owner string) error {
	m.record("DeleteCampaign")
	if m.deleteCampaign == nil {
		return nil
	}
	return m.deleteCampaign(id, owner)
}

func (m *mockStore) ListUpcomingCampaigns(_ context.Context, owner string, from time.Time, limit int) ([]domain.Campaign, error) {
	m.record("ListUpcomingCampaigns")
	if m.listUpcomingCampaigns == nil {
		return nil, nil
	}
	return m.listUpcomingCampaigns(owner, from, limit)
}

func (m *mockStore) ListExecutions(_ context.Context, ids []string) ([]domain.CampaignExecution, error) {
	m.record("ListExecutions")
	if m.listExecutions == nil {
		return nil, nil
	}
	return m.listExecutions(ids)
}

func (m *mockStore) ListForms(_ context.Context, owner string) ([]domain.Form, error) {
	m.record("ListForms")
	if m.listForms == nil {
		return nil, nil
	}
	return m.listForms(owner)
}

func (m *mockStore) GetForm(_ context.Context, id, owner string) (*domain.Form, error) {
	m.record("GetForm")
	if m.getForm == nil {
		return &domain.Form{ID: id}, nil
	}
	return m.getForm(id, owner)
}

func (m *mockStore) InsertForm(_ context.Context, row map[string]any) (*domain.Form, error) {
	m.record("InsertForm")
	if m.insertForm == nil {
		return &domain.Form{}, nil
	}
	return m.insertForm(row)
}

func (m *mockStore) UpdateForm(_ context.Context, id, owner string, patch map[string]any) (*domain.Form, error) {
	m.record("UpdateForm")
	if m.updateForm == nil {
		return &domain.Form{ID: id}, nil
	}
	return m.updateForm(id, owner, patch)
}

func (m *mockStore) DeleteForm(_ context.Context, id, owner string) error {
	m.record("DeleteForm")
	if m.deleteForm == nil {
		return nil
	}
	return m.deleteForm(id, owner)
}

func (m *mockStore) ListFormResponses(_ context.Context, formID string) ([]domain.FormResponse, error) {
	m.record("ListFormResponses")
	if m.listFormResponses == nil {
		return nil, nil
	}
	return m.listFormResponses(formID)
}

func (m *mockStore) CountActiveConversations(_ context.Context) (int, error) {
	m.record("CountActiveConversations")
	if m.countActiveConversations == nil {
		return 0, nil
	}
	return m.countActiveConversations()
}

func (m *mockStore) ListAssignedConversations(_ context.Context, actor string) ([]domain.Conversation, error) {
	m.record("ListAssignedConversations")
	if m.listAssignedConversations == nil {
		return nil, nil
	}
	return m.listAssignedConversations(actor)
}

func (m *mockStore) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	m.record("GetConversation")
	if m.getConversation == nil {
		return nil, &domain.ErrNotFound{Resource: "conversation", ID: id}
	}
	return m.getConversation(id)
}

func (m *mockStore) ListActiveConversationsSince(_ context.Context, since time.Time) ([]domain.Conversation, error) {
	m.record("ListActiveConversationsSince")
	if m.listActiveConversationsSince == nil {
		return nil, nil
	}
	return m.listActiveConversationsSince(since)
}

func (m *mockStore) DailyConversations(_ context.Context) ([]domain.Series, error) {
	m.record("DailyConversations")
	if m.dailyConversations == nil {
		return nil, nil
	}
	return m.dailyConversations()
}

func (m *mockStore) MonthlyConversations(_ context.Context, limit int) ([]domain.Series, error) {
	m.record("MonthlyConversations")
	if m.monthlyConversations == nil {
		return nil, nil
	}
	return m.monthlyConversations(limit)
}

func (m *mockStore) ConversationActivity(_ context.Context, ids []string) (map[string]domain.ConversationActivity, error) {
	m.record("ConversationActivity")
	if m.conversationActivity == nil {
		return map[string]domain.ConversationActivity{}, nil
	}
	return m.conversationActivity(ids)
}

func (m *mockStore) ListRecentMessages(_ context.Context, ids []string, limit int) ([]domain.Message, error) {
	m.record("ListRecentMessages")
	if m.listRecentMessages == nil {
		return nil, nil
	}
	return m.listRecentMessages(ids, limit)
}

func (m *mockStore) MarkConversationRead(_ context.Context, id, actor string) error {
	m.record("MarkConversationRead")
	if m.markConversationRead == nil {
		return nil
	}
	return m.markConversationRead(id, actor)
}

func (m *mockStore) SumItemsSold(_ context.Context, owner string, from, to time.Time) (int, error) {
	m.record("SumItemsSold")
	if m.sumItemsSold == nil {
		return 0, nil
	}
	return m.sumItemsSold(owner, from, to)
}

type notification struct {
	event string
	data  any
}

type mockNotifier struct {
	mu          sync.Mutex
	sent        []notification
	executionID string
	err         error
}

func (m *mockNotifier) Notify(_ context.Context, event string, data any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, notification{event: event, data: data})
	return m.executionID, m.err
}

func (m *mockNotifier) HealthCheck(_ context.Context) error { return m.err }

func (m *mockNotifier) Sent() []notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notification(nil), m.sent...)
}

// codedError mimics a PostgREST error carrying a SQLSTATE.
type codedError struct {
	code   string
	detail string
}

func (e *codedError) Error() string       { return "postgrest error " + e.code }
func (e *codedError) ErrorCode() string   { return e.code }
func (e *codedError) ErrorDetail() string { return e.detail }

// --- Helpers ---

type testCRM struct {
	*service.CRM
	store    *mockStore
	notifier *mockNotifier
	metrics  *observability.Metrics
}

func newTestCRM(t *testing.T, store *mockStore, opts service.Options) *testCRM {
	t.Helper()

	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}

	series := cache.New[[]domain.Series](time.Minute)
	t.Cleanup(series.Close)

	notifier := &mockNotifier{executionID: "exec-1"}
	metrics := observability.NewMetrics()

	return &testCRM{
		CRM:      service.NewCRM(store, notifier, series, metrics, zap.NewNop(), opts),
		store:    store,
		notifier: notifier,
		metrics:  metrics,
	}
}

func ptr[T any](v T) *T { return &v }
