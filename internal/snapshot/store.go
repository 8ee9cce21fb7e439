package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"genfity-staff-queue/internal/orderapi"
	"genfity-staff-queue/internal/orders"

	"go.uber.org/zap"
)

var ErrRefreshInProgress = errors.New("queue refresh already in progress")

type Fetcher interface {
	FetchOrderQueue(ctx context.Context) (orderapi.Queue, error)
}

// Snapshot is one wholesale copy of the remote queue. Slices inside it are never
// mutated after publication; a refresh builds a new Snapshot.
type Snapshot struct {
	Version   uint64                           `json:"version"`
	FetchedAt time.Time                        `json:"fetchedAt"`
	Orders    []orders.Order                   `json:"orders"`
	ByStatus  map[orders.Status][]orders.Order `json:"-"`
	Summary   orders.Summary                   `json:"summary"`
}

func (s Snapshot) Find(orderID string) (orders.Order, bool) {
	for _, o := range s.Orders {
		if o.ID == orderID {
			return o, true
		}
	}
	return orders.Order{}, false
}

// round is a fetch queued behind the one in flight. Every caller that joined it shares
// its result.
type round struct {
	done    chan struct{}
	waiting int
	snap    Snapshot
	err     error
}

// Store holds the last fetched queue and is the single shared mutable resource of the console.
type Store struct {
	fetcher Fetcher
	logger  *zap.Logger
	now     func() time.Time

	flightMu sync.Mutex
	running  bool
	next     *round

	mu      sync.RWMutex
	current Snapshot
	lastErr error

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

func NewStore(fetcher Fetcher, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
		current: Snapshot{ByStatus: map[orders.Status][]orders.Order{}, Summary: orders.Summary{ByStatus: map[orders.Status]int{}}},
		subs:    make(map[int]func(Snapshot)),
	}
}

// SetClock replaces the time source used to stamp snapshots.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Refresh fetches the full queue and replaces the snapshot. A failed fetch keeps the
// previous snapshot. Overlapping calls return ErrRefreshInProgress without fetching.
func (s *Store) Refresh(ctx context.Context) (Snapshot, error) {
	s.flightMu.Lock()
	if s.running {
		s.flightMu.Unlock()
		return s.Current(), ErrRefreshInProgress
	}
	s.running = true
	s.flightMu.Unlock()
	return s.drain(ctx)
}

// RefreshNext returns the result of a fetch that started after the call. When a fetch is
// already in flight the caller joins one follow-up fetch, run as soon as the current one
// finishes, instead of reusing a result that may predate its own write.
func (s *Store) RefreshNext(ctx context.Context) (Snapshot, error) {
	s.flightMu.Lock()
	if !s.running {
		s.running = true
		s.flightMu.Unlock()
		return s.drain(ctx)
	}
	if s.next == nil {
		s.next = &round{done: make(chan struct{})}
	}
	r := s.next
	r.waiting++
	s.flightMu.Unlock()

	select {
	case <-r.done:
		return r.snap, r.err
	case <-ctx.Done():
		return s.Current(), ctx.Err()
	}
}

// Waiting reports how many callers are parked on the queued follow-up fetch.
func (s *Store) Waiting() int {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	if s.next == nil {
		return 0
	}
	return s.next.waiting
}

// drain runs the caller's fetch and then every follow-up queued meanwhile.
func (s *Store) drain(ctx context.Context) (Snapshot, error) {
	snap, err := s.fetch(ctx)
	for {
		s.flightMu.Lock()
		r := s.next
		if r == nil {
			s.running = false
			s.flightMu.Unlock()
			return snap, err
		}
		s.next = nil
		s.flightMu.Unlock()

		r.snap, r.err = s.fetch(ctx)
		close(r.done)
	}
}

func (s *Store) fetch(ctx context.Context) (Snapshot, error) {
	queue, err := s.fetcher.FetchOrderQueue(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		current := s.current
		s.mu.Unlock()
		s.logger.Warn("order queue refresh failed", zap.Error(err))
		return current, err
	}

	s.mu.Lock()
	next := build(queue, s.current.Version+1, s.now())
	s.current = next
	s.lastErr = nil
	s.mu.Unlock()

	s.publish(next)
	return next, nil
}

func (s *Store) isRefreshing() bool {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	return s.running
}

func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) Order(orderID string) (orders.Order, bool) {
	return s.Current().Find(orderID)
}

func (s *Store) ByStatus(status orders.Status) []orders.Order {
	return s.Current().ByStatus[status]
}

// Subscribe registers fn to receive every published snapshot. fn runs on the refreshing
// goroutine and must not call Refresh.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Run refreshes immediately and then on every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshInProgress) {
		s.logger.Warn("initial queue refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); errors.Is(err, ErrRefreshInProgress) {
				s.logger.Debug("skipping queue refresh; previous still running")
			}
		}
	}
}

func (s *Store) publish(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func build(queue orderapi.Queue, version uint64, fetchedAt time.Time) Snapshot {
	list := make([]orders.Order, len(queue.Orders))
	copy(list, queue.Orders)

	byStatus := make(map[orders.Status][]orders.Order)
	for _, o := range list {
		byStatus[o.Status] = append(byStatus[o.Status], o)
	}

	summary := orders.Summarize(list)
	if queue.Summary != nil {
		summary = *queue.Summary
		if summary.ByStatus == nil {
			summary.ByStatus = orders.Summarize(list).ByStatus
		}
	}

	return Snapshot{
		Version:   version,
		FetchedAt: fetchedAt,
		Orders:    list,
		ByStatus:  byStatus,
		Summary:   summary,
	}
}
