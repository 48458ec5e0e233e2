package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/port"

	"go.uber.org/zap"
)

// ============================================================
// Conversation feed: the inbox list kept current by realtime changes
// ============================================================

const (
	markReadTimeout  = 10 * time.Second
	unknownClient    = "Cliente"
	subscriberBuffer = 1

	dispatchQueue     = 256
	feedIdleTimeout   = 30 * time.Minute
	feedSweepInterval = 5 * time.Minute
)

// FeedStore is what a feed reads.
type FeedStore interface {
	port.ConversationStore
	port.MessageStore
}

// ConversationFeed holds one actor's conversations sorted by recency.
// Safe for concurrent use.
type ConversationFeed struct {
	actor  string
	store  FeedStore
	logger *zap.Logger

	mu       sync.Mutex
	items    []domain.ConversationSummary
	subs     map[int]chan []domain.ConversationSummary
	nextSub  int
	lastUsed time.Time
}

func NewConversationFeed(actor string, store FeedStore, logger *zap.Logger) *ConversationFeed {
	return &ConversationFeed{
		actor:  actor,
		store:  store,
		logger: logger.With(zap.String("actor", actor)),
		items:    []domain.ConversationSummary{},
		subs:     make(map[int]chan []domain.ConversationSummary),
		lastUsed: time.Now(),
	}
}

// Load replaces the feed with the actor's assigned conversations. Last
// message and unread count come from one batched messages query.
func (f *ConversationFeed) Load(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "ConversationFeed.Load")
	defer span.End()

	convs, err := f.store.ListAssignedConversations(ctx, f.actor)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}

	activity := map[string]domain.ConversationActivity{}
	if len(ids) > 0 {
		activity, err = f.store.ConversationActivity(ctx, ids)
		if err != nil {
			return err
		}
	}

	items := make([]domain.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		items = append(items, summarize(c, activity[c.ID]))
	}
	sortByRecency(items)

	f.mu.Lock()
	f.items = items
	f.mu.Unlock()

	f.logger.Debug("conversation feed loaded", zap.Int("conversations", len(items)))
	f.publish()
	return nil
}

// Apply refreshes the conversation touched by a message change and re-sorts
// the feed. A conversation now assigned to someone else leaves the feed.
// Other entries are left as they are.
func (f *ConversationFeed) Apply(ctx context.Context, change domain.MessageChange) error {
	ctx, span := tracer.Start(ctx, "ConversationFeed.Apply")
	defer span.End()

	id := change.New.ConversationID
	if id == "" {
		return nil
	}

	conv, err := f.store.GetConversation(ctx, id)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}

	if conv.AssignedTo != f.actor {
		f.merge(*conv, domain.ConversationActivity{})
		return nil
	}

	activity, err := f.store.ConversationActivity(ctx, []string{id})
	if err != nil {
		return err
	}
	f.merge(*conv, activity[id])
	return nil
}

// merge upserts conv when it is assigned to the feed's actor and removes it
// otherwise. Subscribers are notified only when the list changed.
func (f *ConversationFeed) merge(conv domain.Conversation, act domain.ConversationActivity) {
	f.mu.Lock()
	i := f.indexOf(conv.ID)
	switch {
	case conv.AssignedTo == f.actor:
		updated := summarize(conv, act)
		if i >= 0 {
			f.items[i] = updated
		} else {
			f.items = append(f.items, updated)
		}
		sortByRecency(f.items)
	case i >= 0:
		f.items = append(f.items[:i], f.items[i+1:]...)
	default:
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	f.publish()
}

func (f *ConversationFeed) contains(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexOf(id) >= 0
}

func (f *ConversationFeed) touch() {
	f.mu.Lock()
	f.lastUsed = time.Now()
	f.mu.Unlock()
}

// idle reports a feed nobody watches and nobody asked for within d.
func (f *ConversationFeed) idle(d time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs) == 0 && time.Since(f.lastUsed) >= d
}

// Open zeroes the unread count right away and marks the messages read in
// the background. A backend without the mark-read function is not an error.
func (f *ConversationFeed) Open(ctx context.Context, id string) error {
	f.mu.Lock()
	i := f.indexOf(id)
	if i < 0 {
		f.mu.Unlock()
		return &domain.ErrNotFound{Resource: "conversation", ID: id}
	}
	f.items[i].Unread = 0
	f.mu.Unlock()

	f.publish()

	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, markReadTimeout)
		defer cancel()

		if err := f.store.MarkConversationRead(ctx, id, f.actor); err != nil {
			if isMissingFunction(err) {
				f.logger.Debug("mark_messages_as_read not available", zap.String("conversation_id", id))
				return
			}
			f.logger.Warn("failed to mark conversation read",
				zap.String("conversation_id", id),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Snapshot returns a copy of the current list.
func (f *ConversationFeed) Snapshot() []domain.ConversationSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every change.
// Slow readers only see the latest snapshot. Call cancel to unsubscribe.
func (f *ConversationFeed) Subscribe() (<-chan []domain.ConversationSummary, func()) {
	ch := make(chan []domain.ConversationSummary, subscriberBuffer)

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch
	f.lastUsed = time.Now()
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.lastUsed = time.Now()
			f.mu.Unlock()
		})
	}
	return ch, cancel
}

func (f *ConversationFeed) publish() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		snap := f.snapshotLocked()
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (f *ConversationFeed) snapshotLocked() []domain.ConversationSummary {
	out := make([]domain.ConversationSummary, len(f.items))
	copy(out, f.items)
	return out
}

func (f *ConversationFeed) indexOf(id string) int {
	for i := range f.items {
		if f.items[i].ID == id {
			return i
		}
	}
	return -1
}

func summarize(c domain.Conversation, act domain.ConversationActivity) domain.ConversationSummary {
	s := domain.ConversationSummary{
		ID:         c.ID,
		ClientID:   c.ClientID,
		ClientName: unknownClient,
		Unread:     act.Unread,
		Status:     c.Status,
	}
	if c.Client != nil {
		if c.Client.Name != "" {
			s.ClientName = c.Client.Name
		}
		s.ClientPhone = c.Client.Phone
	}
	if act.LastMessage != nil {
		s.LastMessage = act.LastMessage.Content
		t := act.LastMessage.SentAt
		s.Time = &t
	}
	return s
}

// sortByRecency orders by last message time, newest first; conversations
// without messages go last.
func sortByRecency(items []domain.ConversationSummary) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Time, items[j].Time
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// ============================================================
// Registry: one feed per actor, fed by the realtime subscriber
// ============================================================

type FeedRegistry struct {
	store  FeedStore
	logger *zap.Logger

	mu    sync.Mutex
	feeds map[string]*ConversationFeed
}

func NewFeedRegistry(store FeedStore, logger *zap.Logger) *FeedRegistry {
	return &FeedRegistry{
		store:  store,
		logger: logger,
		feeds:  make(map[string]*ConversationFeed),
	}
}

// ForActor returns the caller's feed, loading it on first use.
func (r *FeedRegistry) ForActor(ctx context.Context) (*ConversationFeed, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	feed, ok := r.feeds[actor]
	r.mu.Unlock()
	if ok {
		feed.touch()
		return feed, nil
	}

	feed = NewConversationFeed(actor, r.store, r.logger)
	if err := feed.Load(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.feeds[actor]; ok {
		return existing, nil
	}
	r.feeds[actor] = feed
	return feed, nil
}

// Dispatch resolves the changed conversation once and routes it: the
// assignee's feed gets the fresh summary, any other feed still holding it
// drops it. Feeds that neither own nor hold it are not touched.
func (r *FeedRegistry) Dispatch(ctx context.Context, change domain.MessageChange) {
	ctx, span := tracer.Start(ctx, "FeedRegistry.Dispatch")
	defer span.End()

	id := change.New.ConversationID
	if id == "" {
		return
	}

	r.mu.Lock()
	feeds := make([]*ConversationFeed, 0, len(r.feeds))
	for _, f := range r.feeds {
		feeds = append(feeds, f)
	}
	r.mu.Unlock()
	if len(feeds) == 0 {
		return
	}

	logger := r.logger.With(zap.String("conversation_id", id))

	conv, err := r.store.GetConversation(ctx, id)
	if err != nil {
		var nf *domain.ErrNotFound
		if !errors.As(err, &nf) {
			logger.Warn("failed to resolve changed conversation", zap.Error(err))
		}
		return
	}

	var owner *ConversationFeed
	holders := make([]*ConversationFeed, 0, 1)
	for _, f := range feeds {
		switch {
		case f.actor == conv.AssignedTo:
			owner = f
		case f.contains(id):
			holders = append(holders, f)
		}
	}

	for _, f := range holders {
		f.merge(*conv, domain.ConversationActivity{})
	}
	if owner == nil {
		return
	}

	activity, err := r.store.ConversationActivity(ctx, []string{id})
	if err != nil {
		logger.Warn("failed to apply message change",
			zap.String("actor", owner.actor),
			zap.Error(err),
		)
		return
	}
	owner.merge(*conv, activity[id])
}

// Evict drops feeds without subscribers that were not requested within
// idle. It returns how many were dropped.
func (r *FeedRegistry) Evict(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for actor, f := range r.feeds {
		if f.idle(idle) {
			delete(r.feeds, actor)
			evicted++
		}
	}
	return evicted
}

// Run feeds changes from source into the registry until ctx ends. Changes
// are queued so the source's read loop never waits on store queries; the
// same worker sweeps idle feeds.
func (r *FeedRegistry) Run(ctx context.Context, source port.MessageChangeSource) error {
	queue := make(chan domain.MessageChange, dispatchQueue)
	done := make(chan struct{})

	go func() {
		defer close(done)
		sweep := time.NewTicker(feedSweepInterval)
		defer sweep.Stop()

		for {
			select {
			case change, ok := <-queue:
				if !ok {
					return
				}
				r.Dispatch(ctx, change)
			case <-sweep.C:
				if n := r.Evict(feedIdleTimeout); n > 0 {
					r.logger.Debug("evicted idle conversation feeds", zap.Int("feeds", n))
				}
			}
		}
	}()

	err := source.Run(ctx, func(change domain.MessageChange) {
		select {
		case queue <- change:
		case <-ctx.Done():
		}
	})
	close(queue)
	<-done
	return err
}
