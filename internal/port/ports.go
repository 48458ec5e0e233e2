// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
)

// Mutations scoped by (id, owner) return *domain.ErrNotFound when no row
// matched, so "not yours" and "does not exist" look the same to callers.

// ClientStore persists pharmacy clients.
type ClientStore interface {
	ListClients(ctx context.Context, owner string) ([]domain.Client, error)
	CountActiveClients(ctx context.Context, owner string) (int, error)
	InsertClient(ctx context.Context, row map[string]any) (*domain.Client, error)
	UpdateClient(ctx context.Context, id, owner string, patch map[string]any) (*domain.Client, error)
	DeleteClient(ctx context.Context, id, owner string) error
}

// ProductStore persists the product catalog.
type ProductStore interface {
	ListProducts(ctx context.Context, owner string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id, owner string) (*domain.Product, error)
	InsertProduct(ctx context.Context, row map[string]any) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id, owner string, patch map[string]any) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id, owner string) error
	// CountSaleReferences counts sale_items rows pointing at the product.
	CountSaleReferences(ctx context.Context, productID string) (int, error)
	// ListProductCategories returns the category of every product owned by owner.
	ListProductCategories(ctx context.Context, owner string) ([]string, error)
}

// CampaignStore persists campaigns and reads their executions.
type CampaignStore interface {
	// ListCampaigns lists campaigns newest first; an empty owner lists all of them.
	ListCampaigns(ctx context.Context, owner string) ([]domain.Campaign, error)
	GetCampaign(ctx context.Context, id, owner string) (*domain.Campaign, error)
	InsertCampaign(ctx context.Context, row map[string]any) (*domain.Campaign, error)
	UpdateCampaign(ctx context.Context, id, owner string, patch map[string]any) (*domain.Campaign, error)
	DeleteCampaign(ctx context.Context, id, owner string) error
	ListUpcomingCampaigns(ctx context.Context, owner string, from time.Time, limit int) ([]domain.Campaign, error)
	// ListExecutions returns the executions of all given campaigns in one
	// query, newest first.
	ListExecutions(ctx context.Context, campaignIDs []string) ([]domain.CampaignExecution, error)
}

// FormStore persists forms and reads their responses.
type FormStore interface {
	ListForms(ctx context.Context, owner string) ([]domain.Form, error)
	GetForm(ctx context.Context, id, owner string) (*domain.Form, error)
	InsertForm(ctx context.Context, row map[string]any) (*domain.Form, error)
	UpdateForm(ctx context.Context, id, owner string, patch map[string]any) (*domain.Form, error)
	DeleteForm(ctx context.Context, id, owner string) error
	ListFormResponses(ctx context.Context, formID string) ([]domain.FormResponse, error)
}

// ConversationStore reads conversations and the precomputed conversation views.
type ConversationStore interface {
	CountActiveConversations(ctx context.Context) (int, error)
	ListAssignedConversations(ctx context.Context, actor string) ([]domain.Conversation, error)
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	// ListActiveConversationsSince returns active conversations started at or after since.
	ListActiveConversationsSince(ctx context.Context, since time.Time) ([]domain.Conversation, error)
	DailyConversations(ctx context.Context) ([]domain.Series, error)
	// MonthlyConversations returns at most limit months, oldest first.
	MonthlyConversations(ctx context.Context, limit int) ([]domain.Series, error)
}

// MessageStore reads messages.
type MessageStore interface {
	// ConversationActivity returns last message and unread count per
	// conversation, computed from one batched query.
	ConversationActivity(ctx context.Context, conversationIDs []string) (map[string]domain.ConversationActivity, error)
	// ListRecentMessages returns up to limit messages, newest first.
	// A nil conversationIDs means every conversation.
	ListRecentMessages(ctx context.Context, conversationIDs []string, limit int) ([]domain.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, actor string) error
}

// SalesStore reads sales.
type SalesStore interface {
	// SumItemsSold sums sale_items.quantity of sales created by owner in [from, to].
	SumItemsSold(ctx context.Context, owner string, from, to time.Time) (int, error)
}

// Store is every table the CRM reads or writes.
// Implemented by the Supabase adapter.
type Store interface {
	ClientStore
	ProductStore
	CampaignStore
	FormStore
	ConversationStore
	MessageStore
	SalesStore
}

// AutomationNotifier posts events to the automation webhook.
type AutomationNotifier interface {
	// Notify posts one event and returns the executionId the engine
	// reported, if any.
	Notify(ctx context.Context, event string, data any) (string, error)
	HealthCheck(ctx context.Context) error
}

// MessageChangeSource delivers realtime changes of the messages table.
type MessageChangeSource interface {
	Run(ctx context.Context, handle func(domain.MessageChange)) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	// GetOrLoad returns the cached value or calls load, caching only a
	// successful result. The bool reports a cache hit.
	GetOrLoad(ctx context.Context, key string, load func(context.Context) (T, error)) (T, bool, error)
}

// CodedError is implemented by store errors carrying a SQLSTATE or
// PostgREST error code, so services can translate constraint violations
// without importing the adapter.
type CodedError interface {
	error
	ErrorCode() string
	ErrorDetail() string
}
