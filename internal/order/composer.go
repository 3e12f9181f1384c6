// Package order implements the order view: it resolves the coffee being
// ordered, prefills the form from the session, and sends the order.
package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/coffee-order/internal/api"
	"github.com/vasiliy-maslov/coffee-order/internal/navigation"
	"github.com/vasiliy-maslov/coffee-order/internal/quantity"
	"github.com/vasiliy-maslov/coffee-order/internal/session"
)

type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusSubmitting
	StatusSubmitted
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusSubmitting:
		return "submitting"
	case StatusSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

var allowedTransitions = map[Status]map[Status]bool{
	StatusLoading: {
		StatusReady: true,
	},
	StatusReady: {
		StatusSubmitting: true,
	},
	StatusSubmitting: {
		StatusReady:     true,
		StatusSubmitted: true,
	},
	StatusSubmitted: {},
}

const (
	SubmittedMessage = "Order submitted! Redirecting..."
	FailureMessage   = "Could not send the order. Please try again."
)

var (
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrFieldLocked             = errors.New("field is filled from the logged-in account")
	ErrFormDisabled            = errors.New("form is not editable right now")
	ErrRejected                = errors.New("order rejected")
	ErrClosed                  = errors.New("order view closed")
)

type Submitter interface {
	CreateOrder(ctx context.Context, req api.OrderRequest) (api.Result[api.OrderReceipt], error)
}

type Options struct {
	// Navigate is called with the catalog path once the redirect delay passes
	// after a successful submit.
	Navigate      func(ref string)
	RedirectDelay time.Duration
}

// Form is what the order view shows.
type Form struct {
	Status   Status
	ItemID   string
	Item     *api.Coffee
	Missing  bool
	Quantity int
	Name     string
	Email    string
	Notes    string
	// Locked is set while name and email come from the session.
	Locked      bool
	EmailHidden bool
	Message     string
	Error       string
}

// Composer holds one visit to the order view. A closed composer ignores every
// late result, so callers can drop it on navigation without cancelling
// anything.
type Composer struct {
	submitter Submitter
	opts      Options

	mu          sync.Mutex
	status      Status
	itemID      string
	item        *api.Coffee
	missing     bool
	quantity    int
	name        string
	email       string
	notes       string
	nameEdited  bool
	emailEdited bool
	identity    *session.Identity
	// pending holds the latest session change seen while submitting.
	pending    *session.Snapshot
	message    string
	errMessage string
	timer      *time.Timer
	closed     bool
}

// NewComposer starts a visit for itemID with the quantity carried in rawQuery.
func NewComposer(itemID, rawQuery string, submitter Submitter, opts Options) *Composer {
	return &Composer{
		submitter: submitter,
		opts:      opts,
		itemID:    itemID,
		quantity:  navigation.DecodeQuantity(rawQuery),
	}
}

// ResolveItem supplies the catalog lookup for the visit's id. A missing item
// keeps the view loading.
func (c *Composer) ResolveItem(item api.Coffee, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.status != StatusLoading {
		return
	}
	if !found {
		c.missing = true
		log.Warn().Str("coffee_id", c.itemID).Msg("order: coffee not in catalog")
		return
	}
	c.item = &item
	c.missing = false
	if err := c.transitionLocked(StatusReady); err != nil {
		return
	}
	log.Debug().Stringer("coffee_id", item.ID).Int("quantity", c.quantity).Msg("order: ready")
}

// ApplyQuery re-reads the quantity after the query changed on the same path.
// It wins over local edits.
func (c *Composer) ApplyQuery(rawQuery string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.editableLocked() {
		return
	}
	c.quantity = navigation.DecodeQuantity(rawQuery)
}

// ApplyIdentity follows the session. While an identity is present, name and
// email mirror it and cannot be edited. When it goes away, values that came
// from it are cleared and the fields unlock; typed values stay. A change seen
// while submitting is held until the form is editable again.
func (c *Composer) ApplyIdentity(snap session.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !snap.Known {
		return
	}
	switch c.status {
	case StatusSubmitting:
		c.pending = &snap
	case StatusLoading, StatusReady:
		c.applyIdentityLocked(snap)
	}
}

func (c *Composer) applyIdentityLocked(snap session.Snapshot) {
	if snap.Present() {
		id := *snap.Identity
		if c.identity != nil && *c.identity == id {
			return
		}
		c.identity = &id
		c.name = id.Username
		c.email = id.Email
		c.nameEdited, c.emailEdited = false, false
		return
	}

	if c.identity == nil {
		return
	}
	c.identity = nil
	if !c.nameEdited {
		c.name = ""
	}
	if !c.emailEdited {
		c.email = ""
	}
}

func (c *Composer) SetName(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkFieldLocked(true); err != nil {
		return err
	}
	c.name = name
	c.nameEdited = true
	return nil
}

func (c *Composer) SetEmail(email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkFieldLocked(true); err != nil {
		return err
	}
	c.email = email
	c.emailEdited = true
	return nil
}

func (c *Composer) SetNotes(notes string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkFieldLocked(false); err != nil {
		return err
	}
	c.notes = notes
	return nil
}

// SetQuantity changes the draft only; the catalog selection is left alone.
func (c *Composer) SetQuantity(q int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkFieldLocked(false); err != nil {
		return c.quantity, err
	}
	c.quantity = quantity.Clamp(q)
	return c.quantity, nil
}

func (c *Composer) Increment() (int, error) {
	c.mu.Lock()
	q := c.quantity
	c.mu.Unlock()
	return c.SetQuantity(quantity.Next(q))
}

func (c *Composer) Decrement() (int, error) {
	c.mu.Lock()
	q := c.quantity
	c.mu.Unlock()
	return c.SetQuantity(q - 1)
}

// Draft builds the order from the current field values.
func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draftLocked()
}

// Submit validates the draft and sends it. Validation failures never reach
// the network. A rejected or failed request returns the view to ready with
// every field intact.
func (c *Composer) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !allowedTransitions[c.status][StatusSubmitting] {
		from := c.status
		c.mu.Unlock()
		log.Warn().Stringer("current_status", from).Msg("order: submit attempted outside ready")
		return fmt.Errorf("order: submit from %s: %w", from, ErrInvalidStatusTransition)
	}

	draft := c.draftLocked()
	if err := draft.Validate(); err != nil {
		c.errMessage = err.Error()
		c.mu.Unlock()
		return err
	}
	_ = c.transitionLocked(StatusSubmitting)
	c.message, c.errMessage = "", ""
	c.mu.Unlock()

	log.Info().Stringer("coffee_id", draft.CoffeeID).Int("quantity", draft.Quantity).Msg("order: submitting")
	res, err := c.submitter.CreateOrder(ctx, draft.Request())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		log.Debug().Msg("order: view closed before the order answer arrived, discarding")
		return ErrClosed
	}

	switch {
	case err != nil:
		c.reopenLocked()
		c.errMessage = FailureMessage
		log.Error().Err(err).Msg("order: submit failed")
		return fmt.Errorf("order: submit: %w", err)
	case !res.IsOk():
		c.reopenLocked()
		c.errMessage = res.MessageOr(FailureMessage)
		log.Warn().Str("reason", res.Message()).Msg("order: rejected by server")
		return fmt.Errorf("%w: %s", ErrRejected, c.errMessage)
	}

	_ = c.transitionLocked(StatusSubmitted)
	c.pending = nil
	c.message = SubmittedMessage
	c.timer = time.AfterFunc(c.opts.RedirectDelay, c.redirect)
	log.Info().Str("status", res.Value().Status).Msg("order: submitted")
	return nil
}

func (c *Composer) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := Form{
		Status:      c.status,
		ItemID:      c.itemID,
		Missing:     c.missing,
		Quantity:    c.quantity,
		Name:        c.name,
		Email:       c.email,
		Notes:       c.notes,
		Locked:      c.identity != nil,
		EmailHidden: c.identity != nil && c.identity.Email == "",
		Message:     c.message,
		Error:       c.errMessage,
	}
	if c.item != nil {
		item := *c.item
		f.Item = &item
	}
	return f
}

func (c *Composer) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Close ends the visit. Pending results and the scheduled redirect are
// dropped.
func (c *Composer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
}

func (c *Composer) redirect() {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed || c.opts.Navigate == nil {
		return
	}
	c.opts.Navigate(navigation.PathCatalog)
}

func (c *Composer) draftLocked() Draft {
	d := Draft{
		CoffeeID: api.CoffeeID(c.itemID),
		Quantity: c.quantity,
		Name:     c.name,
		Email:    c.email,
		Notes:    c.notes,
	}
	if c.item != nil {
		d.CoffeeID = c.item.ID
	}
	if c.identity != nil {
		d.Identified = true
		d.Name = c.identity.Username
		d.Email = c.identity.Email
	}
	return d
}

// reopenLocked returns a failed submit to ready and catches up with the
// session.
func (c *Composer) reopenLocked() {
	if err := c.transitionLocked(StatusReady); err != nil {
		return
	}
	if c.pending != nil {
		snap := *c.pending
		c.pending = nil
		c.applyIdentityLocked(snap)
	}
}

func (c *Composer) editableLocked() bool {
	return c.status == StatusLoading || c.status == StatusReady
}

func (c *Composer) checkFieldLocked(identityBound bool) error {
	if c.closed {
		return ErrClosed
	}
	if !c.editableLocked() {
		return ErrFormDisabled
	}
	if identityBound && c.identity != nil {
		return ErrFieldLocked
	}
	return nil
}

func (c *Composer) transitionLocked(next Status) error {
	if !allowedTransitions[c.status][next] {
		log.Warn().
			Stringer("current_status", c.status).
			Stringer("new_status", next).
			Msg("order: invalid status transition attempt")
		return fmt.Errorf("order: %s to %s: %w", c.status, next, ErrInvalidStatusTransition)
	}
	c.status = next
	return nil
}
