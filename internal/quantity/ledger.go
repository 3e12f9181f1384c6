// Package quantity keeps the per-coffee counts picked on the catalog view.
package quantity

import (
	"math"
	"sync"

	"github.com/vasiliy-maslov/coffee-order/internal/api"
)

// Min is the smallest quantity a selection can hold.
const Min = 1

type Entry struct {
	ID       api.CoffeeID
	Quantity int
}

type Ledger struct {
	mu      sync.RWMutex
	order   []api.CoffeeID
	entries map[api.CoffeeID]int
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[api.CoffeeID]int)}
}

// Seed gives every id an explicit entry, in the given order. Ids that already
// hold a quantity keep it; ids not listed are dropped.
func (l *Ledger) Seed(ids []api.CoffeeID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make(map[api.CoffeeID]int, len(ids))
	order := make([]api.CoffeeID, 0, len(ids))
	for _, id := range ids {
		if _, ok := entries[id]; ok {
			continue
		}
		q, ok := l.entries[id]
		if !ok {
			q = Min
		}
		order = append(order, id)
		entries[id] = q
	}
	l.order, l.entries = order, entries
}

// Get returns the quantity for id, or Min when there is no entry yet.
func (l *Ledger) Get(id api.CoffeeID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if q, ok := l.entries[id]; ok {
		return q
	}
	return Min
}

// Set stores q clamped to Min and returns the stored value.
func (l *Ledger) Set(id api.CoffeeID, q int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setLocked(id, q)
}

func (l *Ledger) Increment(id api.CoffeeID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setLocked(id, Next(l.getLocked(id)))
}

func (l *Ledger) Decrement(id api.CoffeeID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setLocked(id, l.getLocked(id)-1)
}

// Entries lists every explicit entry in seeding order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, Entry{ID: id, Quantity: l.entries[id]})
	}
	return out
}

func (l *Ledger) getLocked(id api.CoffeeID) int {
	if q, ok := l.entries[id]; ok {
		return q
	}
	return Min
}

func (l *Ledger) setLocked(id api.CoffeeID, q int) int {
	q = Clamp(q)
	if _, ok := l.entries[id]; !ok {
		l.order = append(l.order, id)
	}
	l.entries[id] = q
	return q
}

// Next is q+1, saturating at math.MaxInt.
func Next(q int) int {
	if q == math.MaxInt {
		return q
	}
	return q + 1
}

func Clamp(q int) int {
	if q < Min {
		return Min
	}
	return q
}
