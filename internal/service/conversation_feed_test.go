package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/service"
	"github.com/boddenberg/farma-crm-bfa-go/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func at(minute int) time.Time {
	return time.Date(2024, 3, 15, 10, minute, 0, 0, time.UTC)
}

func lastMessage(conversationID, content string, sentAt time.Time) *domain.Message {
	return &domain.Message{ConversationID: conversationID, Sender: domain.SenderClient, Content: content, SentAt: sentAt}
}

const otherActor = "someone-else"

// feedFixture assigns three conversations to testActor: c1 (10:05),
// c2 (10:10), c3 (no messages). c9 belongs to otherActor.
// setActivity changes what the store reports for one conversation and
// reassign moves a conversation to another actor.
func feedFixture() (store *mockStore, setActivity func(id string, a domain.ConversationActivity), reassign func(id, actor string)) {
	var mu sync.Mutex
	activity := map[string]domain.ConversationActivity{
		"c1": {ConversationID: "c1", LastMessage: lastMessage("c1", "Oi", at(5)), Unread: 1},
		"c2": {ConversationID: "c2", LastMessage: lastMessage("c2", "Obrigado", at(10)), Unread: 0},
	}
	conversations := map[string]domain.Conversation{
		"c1": {ID: "c1", ClientID: "cl1", Status: "active", AssignedTo: testActor, Client: &domain.ConversationClient{Name: "Ana"}},
		"c2": {ID: "c2", ClientID: "cl2", Status: "active", AssignedTo: testActor, Client: &domain.ConversationClient{Name: "Bruno"}},
		"c3": {ID: "c3", ClientID: "cl3", Status: "active", AssignedTo: testActor},
		"c9": {ID: "c9", ClientID: "cl9", Status: "active", AssignedTo: otherActor},
	}

	store = &mockStore{}
	store.listAssignedConversations = func(actor string) ([]domain.Conversation, error) {
		mu.Lock()
		defer mu.Unlock()
		out := []domain.Conversation{}
		for _, id := range []string{"c1", "c2", "c3", "c9"} {
			if conversations[id].AssignedTo == actor {
				out = append(out, conversations[id])
			}
		}
		return out, nil
	}
	store.getConversation = func(id string) (*domain.Conversation, error) {
		mu.Lock()
		defer mu.Unlock()
		c, ok := conversations[id]
		if !ok {
			return nil, &domain.ErrNotFound{Resource: "conversation", ID: id}
		}
		return &c, nil
	}
	store.conversationActivity = func(ids []string) (map[string]domain.ConversationActivity, error) {
		mu.Lock()
		defer mu.Unlock()
		out := map[string]domain.ConversationActivity{}
		for _, id := range ids {
			if a, ok := activity[id]; ok {
				out[id] = a
			}
		}
		return out, nil
	}
	setActivity = func(id string, a domain.ConversationActivity) {
		mu.Lock()
		defer mu.Unlock()
		activity[id] = a
	}
	reassign = func(id, actor string) {
		mu.Lock()
		defer mu.Unlock()
		c := conversations[id]
		c.AssignedTo = actor
		conversations[id] = c
	}
	return store, setActivity, reassign
}

func ids(items []domain.ConversationSummary) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestConversationFeed_LoadSortsByRecency(t *testing.T) {
	store, _, _ := feedFixture()
	feed := service.NewConversationFeed(testActor, store, zap.NewNop())

	require.NoError(t, feed.Load(context.Background()))

	snap := feed.Snapshot()
	assert.Equal(t, []string{"c2", "c1", "c3"}, ids(snap))
	assert.Equal(t, "Ana", snap[1].ClientName)
	assert.Equal(t, 1, snap[1].Unread)
	assert.Equal(t, "Cliente", snap[2].ClientName)
	assert.Nil(t, snap[2].Time)
	assert.Equal(t, 1, store.Called("ConversationActivity"))
}

func TestConversationFeed_ApplyResortsOnlyTouchedEntry(t *testing.T) {
	store, setActivity, _ := feedFixture()
	feed := service.NewConversationFeed(testActor, store, zap.NewNop())
	require.NoError(t, feed.Load(context.Background()))
	before := feed.Snapshot()

	setActivity("c1", domain.ConversationActivity{
		ConversationID: "c1",
		LastMessage:    lastMessage("c1", "Tem dipirona?", at(20)),
		Unread:         2,
	})

	err := feed.Apply(context.Background(), domain.MessageChange{
		Type: "INSERT",
		New:  domain.Message{ConversationID: "c1", Content: "Tem dipirona?"},
	})
	require.NoError(t, err)

	after := feed.Snapshot()
	assert.Equal(t, []string{"c1", "c2", "c3"}, ids(after))
	assert.Equal(t, "Tem dipirona?", after[0].LastMessage)
	assert.Equal(t, 2, after[0].Unread)
	assert.Equal(t, before[0], after[1])
	assert.Equal(t, before[2], after[2])
}

func TestConversationFeed_ApplyIgnoresOtherActors(t *testing.T) {
	store, _, _ := feedFixture()
	feed := service.NewConversationFeed(testActor, store, zap.NewNop())
	require.NoError(t, feed.Load(context.Background()))

	require.NoError(t, feed.Apply(context.Background(), domain.MessageChange{
		Type: "INSERT",
		New:  domain.Message{ConversationID: "c9"},
	}))
	require.NoError(t, feed.Apply(context.Background(), domain.MessageChange{
		Type: "INSERT",
		New:  domain.Message{ConversationID: "missing"},
	}))

	assert.Len(t, feed.Snapshot(), 3)
}

func TestConversationFeed_OpenZeroesUnreadAndMarksRead(t *testing.T) {
	store, _, _ := feedFixture()
	marked := make(chan [2]string, 1)
	store.markConversationRead = func(id, actor string) error {
		marked <- [2]string{id, actor}
		return nil
	}
	feed := service.NewConversationFeed(testActor, store, zap.NewNop())
	require.NoError(t, feed.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, feed.Open(ctx, "c1"))
	cancel()

	for _, s := range feed.Snapshot() {
		if s.ID == "c1" {
			assert.Zero(t, s.Unread)
		}
	}

	select {
	case got := <-marked:
		assert.Equal(t, [2]string{"c1", testActor}, got)
	case <-time.After(time.Second):
		t.Fatal("mark read was not called")
	}
}

func TestConversationFeed_OpenMissingFunctionIsNotAnError(t *testing.T) {
	store, _, _ := feedFixture()
	done := make(chan struct{})
	store.markConversationRead = func(string, string) error {
		defer close(done)
		return &codedError{code: "PGRST202"}
	}
	feed := service.NewConversationFeed(testActor, store, zap.NewNop())
	require.NoError(t, feed.Load(context.Background()))

	require.NoError(t, feed.Open(context.Background(), "c1"))
	<-done

	var nf *domain.ErrNotFound
	require.ErrorAs(t, feed.Open(context.Background(), "nope"), &nf)
}

func TestConversationFeed_SubscribeReceivesLatestSnapshot(t *testing.T) {
	store, _, _ := feedFixture()
	feed := service.NewConversationFeed(testActor, store, zap.NewNop())
	updates, unsubscribe := feed.Subscribe()
	defer unsubscribe()

	require.NoError(t, feed.Load(context.Background()))
	require.NoError(t, feed.Open(context.Background(), "c1"))

	snap := <-updates
	require.Len(t, snap, 3)
	for _, s := range snap {
		assert.Zero(t, s.Unread)
	}
}

func TestFeedRegistry_DispatchReachesLoadedFeeds(t *testing.T) {
	store, setActivity, _ := feedFixture()
	registry := service.NewFeedRegistry(store, zap.NewNop())

	_, err := registry.ForActor(context.Background())
	require.Error(t, err)

	feed, err := registry.ForActor(actorCtx())
	require.NoError(t, err)

	same, err := registry.ForActor(actorCtx())
	require.NoError(t, err)
	assert.Same(t, feed, same)
	assert.Equal(t, 1, store.Called("ListAssignedConversations"))

	setActivity("c3", domain.ConversationActivity{
		ConversationID: "c3",
		LastMessage:    lastMessage("c3", "Bom dia", at(30)),
		Unread:         1,
	})
	source := sourceFunc(func(ctx context.Context, handle func(domain.MessageChange)) error {
		handle(domain.MessageChange{Type: "INSERT", New: domain.Message{ConversationID: "c3"}})
		return nil
	})
	require.NoError(t, registry.Run(context.Background(), source))

	assert.Equal(t, "c3", feed.Snapshot()[0].ID)
}

type sourceFunc func(ctx context.Context, handle func(domain.MessageChange)) error

func (f sourceFunc) Run(ctx context.Context, handle func(domain.MessageChange)) error {
	return f(ctx, handle)
}

func TestConversationFeed_ApplyDropsReassignedConversation(t *testing.T) {
	store, _, reassign := feedFixture()
	feed := service.NewConversationFeed(testActor, store, zap.NewNop())
	require.NoError(t, feed.Load(context.Background()))
	updates, unsubscribe := feed.Subscribe()
	defer unsubscribe()

	reassign("c1", otherActor)
	require.NoError(t, feed.Apply(context.Background(), domain.MessageChange{
		Type: "INSERT",
		New:  domain.Message{ConversationID: "c1"},
	}))

	assert.Equal(t, []string{"c2", "c3"}, ids(feed.Snapshot()))
	assert.Equal(t, []string{"c2", "c3"}, ids(<-updates))
	assert.Equal(t, 1, store.Called("ConversationActivity"), "no activity lookup for a conversation leaving the feed")
}

func TestFeedRegistry_DispatchResolvesOnceAndRoutesToAssignee(t *testing.T) {
	store, setActivity, reassign := feedFixture()
	registry := service.NewFeedRegistry(store, zap.NewNop())

	mine, err := registry.ForActor(actorCtx())
	require.NoError(t, err)
	theirs, err := registry.ForActor(session.WithActor(context.Background(), otherActor))
	require.NoError(t, err)
	require.Equal(t, []string{"c9"}, ids(theirs.Snapshot()))
	loads := store.Called("ConversationActivity")

	reassign("c1", otherActor)
	setActivity("c1", domain.ConversationActivity{
		ConversationID: "c1",
		LastMessage:    lastMessage("c1", "Ainda tem?", at(40)),
		Unread:         3,
	})
	registry.Dispatch(context.Background(), domain.MessageChange{Type: "INSERT", New: domain.Message{ConversationID: "c1"}})

	assert.Equal(t, 1, store.Called("GetConversation"))
	assert.Equal(t, loads+1, store.Called("ConversationActivity"))
	assert.Equal(t, []string{"c2", "c3"}, ids(mine.Snapshot()))
	theirSnap := theirs.Snapshot()
	assert.Equal(t, []string{"c1", "c9"}, ids(theirSnap))
	assert.Equal(t, 3, theirSnap[0].Unread)
}

func TestFeedRegistry_DispatchSkipsUnwatchedConversations(t *testing.T) {
	store, _, reassign := feedFixture()
	registry := service.NewFeedRegistry(store, zap.NewNop())

	registry.Dispatch(context.Background(), domain.MessageChange{Type: "INSERT", New: domain.Message{ConversationID: "c1"}})
	assert.Zero(t, store.Called("GetConversation"), "no feeds, no lookups")

	_, err := registry.ForActor(actorCtx())
	require.NoError(t, err)
	loads := store.Called("ConversationActivity")

	reassign("c9", "nobody-loaded")
	registry.Dispatch(context.Background(), domain.MessageChange{Type: "INSERT", New: domain.Message{ConversationID: "c9"}})
	registry.Dispatch(context.Background(), domain.MessageChange{Type: "INSERT", New: domain.Message{ConversationID: "missing"}})

	assert.Equal(t, 2, store.Called("GetConversation"))
	assert.Equal(t, loads, store.Called("ConversationActivity"))
}

func TestFeedRegistry_EvictsIdleFeedsWithoutSubscribers(t *testing.T) {
	store, _, _ := feedFixture()
	registry := service.NewFeedRegistry(store, zap.NewNop())

	feed, err := registry.ForActor(actorCtx())
	require.NoError(t, err)
	_, unsubscribe := feed.Subscribe()

	assert.Zero(t, registry.Evict(0), "watched feeds stay")

	unsubscribe()
	assert.Zero(t, registry.Evict(time.Hour), "recently used feeds stay")
	assert.Equal(t, 1, registry.Evict(0))

	reloaded, err := registry.ForActor(actorCtx())
	require.NoError(t, err)
	assert.NotSame(t, feed, reloaded)
	assert.Equal(t, 2, store.Called("ListAssignedConversations"))
}
