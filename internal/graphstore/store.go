package graphstore

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/thinkgraph/internal/graph"
	"github.com/roach88/thinkgraph/internal/store"
)

// Meta attributes a mutation: who made it and, optionally, why.
type Meta struct {
	Actor  string
	Reason string
}

// WithSuffix returns m with suffix appended to the reason.
func (m Meta) WithSuffix(suffix string) Meta {
	m.Reason += suffix
	return m
}

// Store performs audited, versioned mutations on the graph.
type Store struct {
	db    *store.Store
	log   *zap.Logger
	clock graph.Clock
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for created_at/updated_at stamps.
func WithClock(c graph.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator replaces uuid allocation for new entities.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New returns a Store writing to db. A nil logger discards output.
func New(db *store.Store, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		db:    db,
		log:   log,
		clock: graph.SystemClock{},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying transactional store.
func (s *Store) DB() *store.Store { return s.db }

// Clock returns the clock stamping mutations.
func (s *Store) Clock() graph.Clock { return s.clock }

// NewID allocates a fresh entity id.
func (s *Store) NewID() string { return s.newID() }

// Logger returns the store's logger.
func (s *Store) Logger() *zap.Logger { return s.log }
