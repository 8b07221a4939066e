// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/okian/lootrota/internal/adapters/mq/feed"
	"github.com/okian/lootrota/internal/adapters/mq/queue"
	"github.com/okian/lootrota/internal/adapters/repository"
	"github.com/okian/lootrota/internal/domain/cascade"
	"github.com/okian/lootrota/internal/domain/dedupe"
	"github.com/okian/lootrota/internal/domain/history"
	"github.com/okian/lootrota/internal/domain/model"
	"github.com/okian/lootrota/internal/domain/priority"
	"github.com/okian/lootrota/pkg/logger"
	"github.com/okian/lootrota/pkg/metrics"
)

const avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// Service implements the API dependencies for the loot rotation system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	worklist queue.Worklist
	deduper  dedupe.Deduper
	hub      *feed.Hub

	// Configuration
	topN             int
	lookaheadWindow  int
	dedupeSize       int
	worklistCapacity int
	liveBuffer       int
	raidName         string
	location         *time.Location
	now              func() time.Time

	// Serialization
	itemLocks keyedMutex
	headMu    sync.Mutex

	// State
	started     bool
	stopWatch   func()
	stopHub     context.CancelFunc
	serviceName string

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		topN:             priority.DefaultTopN,
		lookaheadWindow:  priority.DefaultLookaheadWindow,
		dedupeSize:       50_000,
		worklistCapacity: 256,
		liveBuffer:       64,
		raidName:         "Guild Raid",
		location:         time.UTC,
		now:              func() time.Time { return time.Now().UTC() },
		serviceName:      "lootrota",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the service components. Without WithStore an in-memory
// store is used.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting loot rotation service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.worklist = queue.NewInMemoryWorklist(queue.WithCapacity(s.worklistCapacity))
	s.hub = feed.NewHub(
		feed.WithBufferSize(s.liveBuffer),
		feed.WithLogger(s.logger.Named("feed")),
	)

	hubCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopHub = cancel
	go s.hub.Run(hubCtx)

	hub := s.hub
	s.stopWatch = s.store.Watch(func(c repository.Change) {
		hub.Publish(feed.Message{Collection: string(c.Collection), Op: string(c.Op), ID: c.ID})
	})

	s.started = true
	s.logger.Info(ctx, "loot rotation service started",
		logger.Int("topN", s.topN),
		logger.Int("lookaheadWindow", s.lookaheadWindow),
		logger.Int("worklistCapacity", s.worklistCapacity),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("raid", s.raidName),
	)
	return nil
}

// Stop gracefully shuts down the service. A store passed with WithStore is
// closed as well; the caller hands over ownership.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping loot rotation service...")

	if s.stopWatch != nil {
		s.stopWatch()
	}
	if s.hub != nil {
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.hub.Shutdown(sctx); err != nil {
			s.logger.Warn(ctx, "live feed did not stop cleanly", logger.Error(err))
		}
		cancel()
	}
	if s.stopHub != nil {
		s.stopHub()
	}
	if s.worklist != nil {
		_ = s.worklist.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "store close failed", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "loot rotation service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Location is the zone used to interpret calendar-day history filters.
func (s *Service) Location() *time.Location {
	return s.location
}

// TopN is the configured eligibility and display cap.
func (s *Service) TopN() int {
	return s.topN
}

// Subscribe opens a live change subscription.
func (s *Service) Subscribe(_ context.Context) (*feed.Subscription, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.hub.Subscribe()
}

// SeenAndRecord atomically checks if a request id was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordDuplicateRequest()
	}
	return seen
}

// Unrecord removes a request id from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// PlayerInput is the registration form of a player.
type PlayerInput struct {
	Name        string
	CombatPower string
	Class       model.Class
	Role        model.Role
}

// RegisterPlayer creates a player with a zero balance, a generated avatar
// and an Online presence.
func (s *Service) RegisterPlayer(ctx context.Context, in PlayerInput) (model.Player, error) {
	if err := s.ready(); err != nil {
		return model.Player{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Player{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	p, err := s.store.CreatePlayer(ctx, model.Player{
		Name:        name,
		CombatPower: strings.TrimSpace(in.CombatPower),
		Class:       in.Class,
		Role:        in.Role,
		AvatarURL:   avatarBaseURL + url.QueryEscape(name),
		Presence:    model.PresenceOnline,
	})
	if err != nil {
		return model.Player{}, err
	}
	s.logger.Info(ctx, "player registered",
		logger.String("playerID", p.ID),
		logger.String("name", p.Name),
		logger.String("combatPower", p.CombatPower),
	)
	return p, nil
}

// UpdatePlayer applies a partial update.
func (s *Service) UpdatePlayer(ctx context.Context, id string, patch repository.PlayerPatch) (model.Player, error) {
	if err := s.ready(); err != nil {
		return model.Player{}, err
	}
	return s.store.UpdatePlayer(ctx, id, patch)
}

// DeletePlayer removes a player. Items that last went to them fall back to
// no rotation.
func (s *Service) DeletePlayer(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.store.DeletePlayer(ctx, id)
}

// GetPlayer returns one player.
func (s *Service) GetPlayer(ctx context.Context, id string) (model.Player, error) {
	if err := s.ready(); err != nil {
		return model.Player{}, err
	}
	return s.store.GetPlayer(ctx, id)
}

// ListPlayers returns every player. When byPower is set the list is ordered
// strongest first, otherwise by name.
func (s *Service) ListPlayers(ctx context.Context, byPower bool) ([]model.Player, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return nil, err
	}
	if byPower {
		return priority.SortByCombatPower(players), nil
	}
	return players, nil
}

// ClearPlayers removes every player.
func (s *Service) ClearPlayers(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.logger.Warn(ctx, "clearing all players")
	return s.store.ClearPlayers(ctx)
}

// RegisterItem creates an item. A new item has no last recipient.
func (s *Service) RegisterItem(ctx context.Context, it model.Item) (model.Item, error) {
	if err := s.ready(); err != nil {
		return model.Item{}, err
	}
	it.ID = ""
	it.LastRecipientID = ""
	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" {
		return model.Item{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	created, err := s.store.CreateItem(ctx, it)
	if err != nil {
		return model.Item{}, err
	}
	s.logger.Info(ctx, "item registered",
		logger.String("itemID", created.ID),
		logger.String("name", created.Name),
		logger.Int64("cost", created.Cost),
		logger.Bool("limitToTopN", created.LimitToTopN),
	)
	return created, nil
}

// UpdateItem applies a partial update.
func (s *Service) UpdateItem(ctx context.Context, id string, patch repository.ItemPatch) (model.Item, error) {
	if err := s.ready(); err != nil {
		return model.Item{}, err
	}
	unlock := s.itemLocks.Lock(id)
	defer unlock()
	return s.store.UpdateItem(ctx, id, patch)
}

// DeleteItem removes an item definition. Its ledger events stay.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	unlock := s.itemLocks.Lock(id)
	defer unlock()
	return s.store.DeleteItem(ctx, id)
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, id string) (model.Item, error) {
	if err := s.ready(); err != nil {
		return model.Item{}, err
	}
	return s.store.GetItem(ctx, id)
}

// ListItems returns every item ordered by name.
func (s *Service) ListItems(ctx context.Context) ([]model.Item, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.ListItems(ctx)
}

// ClearItems removes every item definition.
func (s *Service) ClearItems(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.logger.Warn(ctx, "clearing all items")
	return s.store.ClearItems(ctx)
}

// ClearHistory removes every ledger event. Balances and last recipients stay.
func (s *Service) ClearHistory(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.logger.Warn(ctx, "clearing loot history")
	return s.store.ClearEvents(ctx)
}

// Queue returns the full rotated priority queue for an item.
func (s *Service) Queue(ctx context.Context, itemID string) ([]model.Player, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	item, err := findItem(snap.Items, itemID)
	if err != nil {
		return nil, err
	}
	return s.buildQueue(item, snap.Players), nil
}

func (s *Service) buildQueue(item model.Item, players []model.Player) []model.Player {
	start := time.Now()
	q := priority.BuildQueueN(item, players, s.topN)
	metrics.RecordQueueBuild(float64(time.Since(start).Microseconds()) / 1000.0)
	return q
}

// DashboardEntry is one item card of the dashboard.
type DashboardEntry struct {
	Item model.Item `json:"item"`
	// Queue is the head of the rotated queue, at most TopN players.
	Queue       []model.Player `json:"queue"`
	QueueLength int            `json:"queue_length"`
	// ViewerRank is the 1-based rank of the viewer, 0 when not queued.
	ViewerRank int `json:"viewer_rank"`
}

// Dashboard builds every item's queue and the viewer's position in it.
func (s *Service) Dashboard(ctx context.Context, viewerID string) ([]DashboardEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DashboardEntry, 0, len(snap.Items))
	for _, item := range snap.Items {
		q := s.buildQueue(item, snap.Players)
		entry := DashboardEntry{
			Item:        item,
			Queue:       priority.Head(q, s.topN),
			QueueLength: len(q),
		}
		if viewerID != "" {
			entry.ViewerRank = priority.RankOf(q, viewerID)
		}
		out = append(out, entry)
	}
	return out, nil
}

// Lookahead lists the items where the player ranks within the lookahead window.
func (s *Service) Lookahead(ctx context.Context, playerID string) ([]priority.Eligibility, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if model.FindPlayer(snap.Players, playerID) < 0 {
		return nil, fmt.Errorf("%w: player %s", repository.ErrNotFound, playerID)
	}
	return priority.LookaheadN(snap.Items, snap.Players, playerID, s.lookaheadWindow, s.topN), nil
}

// Profile is the per-player view.
type Profile struct {
	Player       model.Player           `json:"player"`
	Rank         int                    `json:"power_rank"`
	Lookahead    []priority.Eligibility `json:"lookahead"`
	Acquisitions []history.Acquisition  `json:"acquisitions"`
	Summary      history.Summary        `json:"summary"`
}

// Profile returns the player's lookahead, acquisition tally and ledger totals.
func (s *Service) Profile(ctx context.Context, playerID string) (Profile, error) {
	if err := s.ready(); err != nil {
		return Profile{}, err
	}
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return Profile{}, err
	}
	i := model.FindPlayer(snap.Players, playerID)
	if i < 0 {
		return Profile{}, fmt.Errorf("%w: player %s", repository.ErrNotFound, playerID)
	}
	own := history.Apply(snap.Events, history.Filter{PlayerID: playerID})
	return Profile{
		Player:       snap.Players[i],
		Rank:         priority.RankOf(priority.SortByCombatPower(snap.Players), playerID),
		Lookahead:    priority.LookaheadN(snap.Items, snap.Players, playerID, s.lookaheadWindow, s.topN),
		Acquisitions: history.Acquisitions(own, snap.Items, playerID),
		Summary:      history.Summarize(own),
	}, nil
}

// HistoryPage is a filtered slice of the ledger.
type HistoryPage struct {
	Events []model.LootEvent `json:"events"`
	// Summary covers every matching event, not only the returned page.
	Summary history.Summary `json:"summary"`
}

// History returns ledger events matching f, newest first.
func (s *Service) History(ctx context.Context, f history.Filter) (HistoryPage, error) {
	if err := s.ready(); err != nil {
		return HistoryPage{}, err
	}
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return HistoryPage{}, err
	}
	limit := f.Limit
	f.Limit = 0
	matched := history.Apply(events, f)
	page := HistoryPage{Summary: history.Summarize(matched), Events: matched}
	if limit > 0 && len(matched) > limit {
		page.Events = matched[:limit]
	}
	return page, nil
}

// DistributeRequest asks for one action on one item.
type DistributeRequest struct {
	ItemID string
	Action cascade.Action
	// RequestID makes the call idempotent when set.
	RequestID string
}

// Distribution is the committed result of an action.
type Distribution struct {
	ItemID string            `json:"item_id"`
	Action cascade.Action    `json:"action"`
	Events []model.LootEvent `json:"events"`
	// Balance is the winner's balance after an Acquire.
	Balance  *int64 `json:"balance,omitempty"`
	Consumed bool   `json:"consumed"`
}

// Distribute applies an action to an item. At most one distribution per item
// runs at a time; each one reads a fresh snapshot and commits its batch
// all-or-nothing.
func (s *Service) Distribute(ctx context.Context, req DistributeRequest) (Distribution, error) {
	if err := s.ready(); err != nil {
		return Distribution{}, err
	}
	if req.RequestID != "" && s.SeenAndRecord(ctx, req.RequestID) {
		return Distribution{}, fmt.Errorf("%w: %s", ErrDuplicateRequest, req.RequestID)
	}

	d, err := s.distribute(ctx, req)
	if err != nil {
		if req.RequestID != "" {
			s.Unrecord(ctx, req.RequestID)
		}
		metrics.RecordDistributionError(errorReason(err))
		s.logger.Warn(ctx, "distribution rejected",
			logger.String("itemID", req.ItemID),
			logger.String("playerID", req.Action.PlayerID),
			logger.String("kind", string(req.Action.Kind)),
			logger.Error(err),
		)
		return Distribution{}, err
	}
	return d, nil
}

func (s *Service) distribute(ctx context.Context, req DistributeRequest) (Distribution, error) {
	start := time.Now()
	unlock := s.itemLocks.Lock(req.ItemID)
	defer unlock()

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return Distribution{}, err
	}
	item, err := findItem(snap.Items, req.ItemID)
	if err != nil {
		return Distribution{}, err
	}
	if req.Action.Kind != cascade.Acquire && req.Action.PlayerID != "" &&
		model.FindPlayer(snap.Players, req.Action.PlayerID) < 0 {
		return Distribution{}, fmt.Errorf("%w: player %s", repository.ErrNotFound, req.Action.PlayerID)
	}

	q := s.buildQueue(item, snap.Players)
	batch, err := cascade.Distribute(q, req.Action, item, s.now())
	if err != nil {
		return Distribution{}, err
	}
	for i := range batch.Events {
		batch.Events[i].RaidName = s.raidName
	}

	events, err := s.store.ApplyBatch(ctx, batch)
	if err != nil {
		return Distribution{}, fmt.Errorf("apply distribution: %w", err)
	}

	d := Distribution{ItemID: item.ID, Action: req.Action, Events: events, Consumed: batch.Consume}
	if u, ok := batch.PlayerUpdates[req.Action.PlayerID]; ok {
		bal := u.Balance
		d.Balance = &bal
	}

	metrics.RecordDistribution(string(req.Action.Kind), batch.Skipped(), float64(time.Since(start).Microseconds())/1000.0)
	s.logger.Info(ctx, "distribution applied",
		logger.String("itemID", item.ID),
		logger.String("playerID", req.Action.PlayerID),
		logger.String("kind", string(req.Action.Kind)),
		logger.Int("skipped", batch.Skipped()),
		logger.Int64("cost", item.Cost),
	)
	return d, nil
}

// EnqueueWork puts quantity units of an item on the distribution worklist.
func (s *Service) EnqueueWork(ctx context.Context, itemID string, quantity int) (model.WorkItem, error) {
	if err := s.ready(); err != nil {
		return model.WorkItem{}, err
	}
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return model.WorkItem{}, err
	}
	w, err := s.worklist.Enqueue(ctx, item.ID, item.Name, quantity)
	if err != nil {
		return model.WorkItem{}, err
	}
	s.hub.Publish(feed.Message{Collection: "worklist", Op: string(repository.OpCreate), ID: w.ID})
	return w, nil
}

// RemoveWork drops a worklist entry.
func (s *Service) RemoveWork(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.worklist.Remove(ctx, id); err != nil {
		return err
	}
	s.hub.Publish(feed.Message{Collection: "worklist", Op: string(repository.OpDelete), ID: id})
	return nil
}

// Worklist returns the pending entries, oldest first.
func (s *Service) Worklist(ctx context.Context) ([]model.WorkItem, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.worklist.List(ctx), nil
}

// HeadDistribution is the result of distributing the worklist head.
type HeadDistribution struct {
	Distribution
	Work model.WorkItem `json:"work"`
	// Remaining reports whether the entry is still on the worklist.
	Remaining bool `json:"remaining"`
}

// DistributeHead applies an action to the oldest worklist entry and, when the
// action consumes the item, takes one unit off that entry.
func (s *Service) DistributeHead(ctx context.Context, action cascade.Action, requestID string) (HeadDistribution, error) {
	if err := s.ready(); err != nil {
		return HeadDistribution{}, err
	}
	s.headMu.Lock()
	defer s.headMu.Unlock()

	head, err := s.worklist.Head(ctx)
	if err != nil {
		return HeadDistribution{}, err
	}
	d, err := s.Distribute(ctx, DistributeRequest{ItemID: head.ItemID, Action: action, RequestID: requestID})
	if err != nil {
		return HeadDistribution{}, err
	}

	out := HeadDistribution{Distribution: d, Work: head, Remaining: true}
	if d.Consumed {
		left, remains, err := s.worklist.Consume(ctx, head.ID)
		if err != nil && !errors.Is(err, queue.ErrNotFound) {
			return HeadDistribution{}, err
		}
		out.Work, out.Remaining = left, remains
		op := repository.OpUpdate
		if !remains {
			op = repository.OpDelete
		}
		s.hub.Publish(feed.Message{Collection: "worklist", Op: string(op), ID: head.ID})
	}
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"service":          s.serviceName,
		"started":          s.started,
		"topN":             s.topN,
		"lookaheadWindow":  s.lookaheadWindow,
		"worklistCapacity": s.worklistCapacity,
		"dedupeSize":       s.dedupeSize,
		"raid":             s.raidName,
	}
	if !s.started {
		return stats
	}

	worklistLen := s.worklist.Len(ctx)
	stats["worklistLength"] = worklistLen
	stats["liveSubscribers"] = s.hub.Subscribers()
	stats["dedupeEntries"] = s.deduper.Size()
	if snap, err := s.store.Snapshot(ctx); err == nil {
		stats["players"] = len(snap.Players)
		stats["items"] = len(snap.Items)
		stats["events"] = len(snap.Events)
		stats["ledger"] = history.Summarize(snap.Events)
		metrics.UpdateRosterTotals(len(snap.Players), len(snap.Items), len(snap.Events))
	}
	metrics.UpdateWorklistSize(worklistLen)
	return stats
}

func findItem(items []model.Item, id string) (model.Item, error) {
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return model.Item{}, fmt.Errorf("%w: item %s", repository.ErrNotFound, id)
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, cascade.ErrNotInQueue):
		return "not_in_queue"
	case errors.Is(err, cascade.ErrEmptyQueue):
		return "empty_queue"
	case errors.Is(err, cascade.ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "store"
	}
}
