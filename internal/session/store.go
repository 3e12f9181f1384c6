// Package session tracks who the client is logged in as.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/coffee-order/internal/api"
)

type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusResolved
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLoading:
		return "loading"
	case StatusResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

type Identity struct {
	Username string
	Email    string
}

// Snapshot is the store as seen by a reader. Identity is nil both before the
// check resolves and when nobody is logged in; Known tells the two apart.
type Snapshot struct {
	Known    bool
	Identity *Identity
}

func (s Snapshot) Present() bool {
	return s.Known && s.Identity != nil
}

type Remote interface {
	Me(ctx context.Context) (api.Result[api.User], error)
	Logout(ctx context.Context) error
}

type Store struct {
	remote Remote

	mu       sync.Mutex
	status   Status
	identity *Identity
	// gen increases on every write so a late /me answer cannot clobber a
	// login or logout that happened while it was in flight.
	gen       uint64
	listeners map[int]func(Snapshot)
	nextID    int
}

func NewStore(remote Remote) *Store {
	return &Store{
		remote:    remote,
		listeners: make(map[int]func(Snapshot)),
	}
}

// Check runs the startup identity check. Only the first call issues a request;
// later calls return immediately.
func (s *Store) Check(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusUninitialized {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusLoading
	gen := s.gen
	s.mu.Unlock()

	res, err := s.remote.Me(ctx)

	var identity *Identity
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("session: identity check failed, treating as anonymous")
	case res.IsOk() && res.Value().Username != "":
		user := res.Value()
		identity = &Identity{Username: user.Username, Email: user.Email}
	default:
		log.Debug().Str("reason", res.Message()).Msg("session: not logged in")
	}

	if !s.writeIf(gen, identity) {
		log.Debug().Msg("session: identity check superseded by a later write")
	}
	if err != nil {
		return fmt.Errorf("session: check: %w", err)
	}
	return nil
}

// SetIdentity records a successful login or registration.
func (s *Store) SetIdentity(identity Identity) {
	s.write(&identity)
	log.Info().Str("username", identity.Username).Msg("session: logged in")
}

// Logout clears the identity at once, then asks the server to end its session.
// The remote outcome never restores the local identity; its error is returned
// for the caller to log.
func (s *Store) Logout(ctx context.Context) error {
	s.write(nil)
	log.Info().Msg("session: logged out locally")

	if err := s.remote.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("session: remote logout failed, local state stays cleared")
		return fmt.Errorf("session: remote logout: %w", err)
	}
	return nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Subscribe registers fn for every change of the snapshot. fn runs outside the
// store lock, in the goroutine that made the change.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// write applies identity unconditionally.
func (s *Store) write(identity *Identity) {
	s.mu.Lock()
	snap, listeners := s.applyLocked(identity)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// writeIf applies identity only if no other write happened since gen was read.
func (s *Store) writeIf(gen uint64, identity *Identity) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	snap, listeners := s.applyLocked(identity)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return true
}

func (s *Store) applyLocked(identity *Identity) (Snapshot, []func(Snapshot)) {
	s.gen++
	s.status = StatusResolved
	if identity != nil {
		copied := *identity
		identity = &copied
	}
	s.identity = identity
	snap := s.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	return snap, listeners
}

func (s *Store) snapshotLocked() Snapshot {
	if s.status != StatusResolved {
		return Snapshot{}
	}
	snap := Snapshot{Known: true}
	if s.identity != nil {
		copied := *s.identity
		snap.Identity = &copied
	}
	return snap
}
