package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/atlasoi/tokensync/internal/model"
)

// EventBufferSize is the per-subscriber channel capacity.
const EventBufferSize = 64

// EventKind identifies which slice of state an Event refers to.
type EventKind int

const (
	EventConnection EventKind = iota
	EventStats
	EventDaily
	EventNotification
)

// String returns the lowercase kind name.
func (k EventKind) String() string {
	switch k {
	case EventConnection:
		return "connection"
	case EventStats:
		return "stats"
	case EventDaily:
		return "daily"
	case EventNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// Event announces one state change. Subscribers read the current state
// through View after receiving it.
type Event struct {
	Kind  EventKind
	State model.ConnectionState // set for EventConnection
	Date  string                // set for EventDaily
}

// Store holds the canonical client-side view: aggregate statistics,
// per-day activity, the latest notification, and connection metadata.
// All writes go through the mutation methods; reads get copies.
type Store struct {
	mu     sync.RWMutex
	logger *slog.Logger

	connState model.ConnectionState
	connErr   string

	stats        model.StatsSnapshot
	daily        []model.DailyActivity // ascending by date
	notification *model.Notification
	lastUpdated  time.Time

	subs   map[int]chan Event
	nextID int
}

// New creates an empty store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:    logger.With("component", "store"),
		connState: model.StateDisconnected,
		subs:      make(map[int]chan Event),
	}
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

// SetConnectionState records a connection state transition. Repeating
// the current state is a no-op. Entering the connected state clears any
// recorded connection error.
func (s *Store) SetConnectionState(state model.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state == s.connState {
		return
	}

	s.connState = state
	if state == model.StateConnected {
		s.connErr = ""
	}
	s.notifyLocked(Event{Kind: EventConnection, State: state})
}

// SetConnectionError records a connection-level error message, such as
// a server-reported error frame. The state itself is left alone.
func (s *Store) SetConnectionError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connErr = msg
	s.notifyLocked(Event{Kind: EventConnection, State: s.connState})
}

// ApplySnapshot replaces the aggregate statistics with an authoritative
// snapshot, from either a REST pull or a stats_update push. A non-nil
// DailyActivities list replaces the per-day collection as well.
// Applying the same snapshot twice changes nothing but the timestamp.
func (s *Store) ApplySnapshot(snap model.StatsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	daily := snap.DailyActivities
	snap.DailyActivities = nil
	s.stats = snap
	s.lastUpdated = time.Now()

	s.notifyLocked(Event{Kind: EventStats})

	if daily != nil {
		s.daily = make([]model.DailyActivity, len(daily))
		copy(s.daily, daily)
		sort.Slice(s.daily, func(i, j int) bool {
			return s.daily[i].Date < s.daily[j].Date
		})
		s.notifyLocked(Event{Kind: EventDaily})
	}
}

// UpsertDaily merges one per-day record. An existing record for the
// same date is overwritten in place; a new date is inserted keeping the
// collection ordered.
func (s *Store) UpsertDaily(rec model.DailyActivity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.daily), func(i int) bool {
		return s.daily[i].Date >= rec.Date
	})

	if i < len(s.daily) && s.daily[i].Date == rec.Date {
		s.daily[i] = rec
	} else {
		s.daily = append(s.daily, model.DailyActivity{})
		copy(s.daily[i+1:], s.daily[i:])
		s.daily[i] = rec
	}

	s.lastUpdated = time.Now()
	s.notifyLocked(Event{Kind: EventDaily, Date: rec.Date})
}

// SetNotification stores the latest server notification, replacing any
// previous one.
func (s *Store) SetNotification(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notification = &n
	s.notifyLocked(Event{Kind: EventNotification})
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// View returns a copy of the full state (read-locked).
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		Connection:      s.connState,
		ConnectionError: s.connErr,
		Stats:           s.stats,
		LastUpdated:     s.lastUpdated,
	}

	if s.stats.Models != nil {
		v.Stats.Models = make(map[string]model.ModelUsage, len(s.stats.Models))
		for k, m := range s.stats.Models {
			v.Stats.Models[k] = m
		}
	}

	if len(s.daily) > 0 {
		v.Daily = make([]model.DailyActivity, len(s.daily))
		copy(v.Daily, s.daily)
	}

	if s.notification != nil {
		n := *s.notification
		v.Notification = &n
	}

	return v
}

// ConnectionState returns the current connection state (read-locked).
func (s *Store) ConnectionState() model.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connState
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

// Subscription is a live feed of store events. Close it when done.
type Subscription struct {
	C <-chan Event

	id int
	s  *Store
}

// Subscribe registers a new subscriber. Events are delivered on a
// buffered channel; a subscriber that falls behind loses oldest events
// first rather than blocking writers.
func (s *Store) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Event, EventBufferSize)
	s.subs[id] = ch

	return &Subscription{C: ch, id: id, s: s}
}

// Close removes the subscription and closes its channel.
func (sub *Subscription) Close() {
	sub.s.mu.Lock()
	defer sub.s.mu.Unlock()

	if ch, ok := sub.s.subs[sub.id]; ok {
		delete(sub.s.subs, sub.id)
		close(ch)
	}
}

// notifyLocked fans an event out to all subscribers (caller must hold
// the write lock). Full channels drop their oldest event to make room.
func (s *Store) notifyLocked(ev Event) {
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
				ch <- ev
				s.logger.Debug("subscriber lagging, dropped oldest event", "subscriber", id)
			default:
			}
		}
	}
}
