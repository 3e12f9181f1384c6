// Package navigation carries view state across transitions: the path→view
// table, the quantity bridge, and the current location with its listeners.
package navigation

import (
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"
)

type Location struct {
	Path     string
	RawQuery string
}

// ParseLocation splits a reference such as "/order/1?quantity=3". The path is
// kept in its escaped form.
func ParseLocation(ref string) Location {
	u, err := url.Parse(ref)
	if err != nil {
		log.Warn().Err(err).Str("ref", ref).Msg("navigation: unparsable reference, going home")
		return Location{Path: PathCatalog}
	}
	path := u.EscapedPath()
	if path == "" {
		path = PathCatalog
	}
	return Location{Path: path, RawQuery: u.RawQuery}
}

func (l Location) String() string {
	if l.RawQuery == "" {
		return l.Path
	}
	return l.Path + "?" + l.RawQuery
}

// QueryChanged reports a move that kept the path but altered the query.
func QueryChanged(prev, next Location) bool {
	return prev.Path == next.Path && prev.RawQuery != next.RawQuery
}

type Listener func(prev, next Location)

type Navigator struct {
	mu        sync.Mutex
	current   Location
	history   []Location
	listeners map[int]Listener
	nextID    int
}

func NewNavigator(start string) *Navigator {
	return &Navigator{
		current:   ParseLocation(start),
		listeners: make(map[int]Listener),
	}
}

func (n *Navigator) Current() Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Navigate moves to ref and notifies listeners after the location is updated.
func (n *Navigator) Navigate(ref string) Location {
	next := ParseLocation(ref)

	n.mu.Lock()
	prev := n.current
	n.history = append(n.history, prev)
	n.current = next
	listeners := n.snapshotLocked()
	n.mu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
	return next
}

// Back returns to the previous location, if any.
func (n *Navigator) Back() (Location, bool) {
	n.mu.Lock()
	if len(n.history) == 0 {
		n.mu.Unlock()
		return Location{}, false
	}
	prev := n.current
	next := n.history[len(n.history)-1]
	n.history = n.history[:len(n.history)-1]
	n.current = next
	listeners := n.snapshotLocked()
	n.mu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
	return next, true
}

func (n *Navigator) Subscribe(l Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = l
	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

func (n *Navigator) snapshotLocked() []Listener {
	out := make([]Listener, 0, len(n.listeners))
	for i := 0; i < n.nextID; i++ {
		if l, ok := n.listeners[i]; ok {
			out = append(out, l)
		}
	}
	return out
}
