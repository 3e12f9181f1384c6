// Package auth drives the login and registration forms.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/coffee-order/internal/api"
	"github.com/vasiliy-maslov/coffee-order/internal/navigation"
	"github.com/vasiliy-maslov/coffee-order/internal/session"
)

const (
	LoginFailedMessage      = "Login failed. Please try again."
	RegisterFailedMessage   = "Registration failed. Please try again."
	PasswordMismatchMessage = "Passwords do not match"
)

var (
	ErrPasswordMismatch = errors.New("auth: passwords do not match")
	ErrInFlight         = errors.New("auth: request already in flight")
	ErrRejected         = errors.New("auth: rejected")
	ErrClosed           = errors.New("auth: form closed")
)

type Remote interface {
	Login(ctx context.Context, creds api.Credentials) (api.Result[api.User], error)
	Register(ctx context.Context, reg api.Registration) (api.Result[api.User], error)
}

// IdentitySink receives the account after a successful login or registration.
type IdentitySink interface {
	SetIdentity(identity session.Identity)
}

type Options struct {
	Navigate      func(ref string)
	RedirectDelay time.Duration
}

// FormState is what a login or registration form shows.
type FormState struct {
	Username  string
	Password  string
	Confirm   string
	Email     string
	Pending   bool
	Succeeded bool
	Error     string
}

// form is the part both flows share: the fields, one request at a time, and
// the redirect home after success.
type form struct {
	sink IdentitySink
	opts Options

	mu     sync.Mutex
	state  FormState
	timer  *time.Timer
	closed bool
}

func (f *form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *form) SetUsername(v string) { f.set(func(s *FormState) { s.Username = v }) }
func (f *form) SetPassword(v string) { f.set(func(s *FormState) { s.Password = v }) }

func (f *form) set(apply func(*FormState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	apply(&f.state)
}

// Close drops the form; a late answer is then ignored and no redirect fires.
func (f *form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
	}
}

// begin marks a request as pending and returns the fields to send.
func (f *form) begin() (FormState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return FormState{}, ErrClosed
	}
	if f.state.Pending {
		return FormState{}, ErrInFlight
	}
	f.state.Pending = true
	f.state.Error = ""
	return f.state, nil
}

// finish applies the answer. Entered fields survive a failure.
func (f *form) finish(op string, submitted string, res api.Result[api.User], err error, fallback string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		log.Debug().Str("op", op).Msg("auth: form closed before the answer arrived, discarding")
		return ErrClosed
	}
	f.state.Pending = false

	switch {
	case err != nil:
		f.state.Error = fallback
		f.mu.Unlock()
		log.Error().Err(err).Str("op", op).Msg("auth: request failed")
		return fmt.Errorf("auth: %s: %w", op, err)
	case !res.IsOk():
		f.state.Error = res.MessageOr(fallback)
		msg := f.state.Error
		f.mu.Unlock()
		log.Warn().Str("op", op).Str("reason", res.Message()).Msg("auth: rejected by server")
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}

	f.state.Succeeded = true
	f.mu.Unlock()

	user := res.Value()
	identity := session.Identity{Username: user.Username, Email: user.Email}
	if identity.Username == "" {
		identity.Username = submitted
	}
	f.sink.SetIdentity(identity)
	log.Info().Str("op", op).Str("username", identity.Username).Msg("auth: succeeded")

	f.mu.Lock()
	if !f.closed {
		f.timer = time.AfterFunc(f.opts.RedirectDelay, f.redirect)
	}
	f.mu.Unlock()
	return nil
}

func (f *form) fail(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Pending = false
	f.state.Error = msg
}

func (f *form) redirect() {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed || f.opts.Navigate == nil {
		return
	}
	f.opts.Navigate(navigation.PathCatalog)
}

type Login struct {
	form
	remote Remote
}

func NewLogin(remote Remote, sink IdentitySink, opts Options) *Login {
	return &Login{form: form{sink: sink, opts: opts}, remote: remote}
}

func (l *Login) Submit(ctx context.Context) error {
	st, err := l.begin()
	if err != nil {
		return err
	}
	username := strings.TrimSpace(st.Username)
	res, err := l.remote.Login(ctx, api.Credentials{Username: username, Password: st.Password})
	return l.finish("login", username, res, err, LoginFailedMessage)
}

type Register struct {
	form
	remote Remote
}

func NewRegister(remote Remote, sink IdentitySink, opts Options) *Register {
	return &Register{form: form{sink: sink, opts: opts}, remote: remote}
}

func (r *Register) SetConfirm(v string) { r.set(func(s *FormState) { s.Confirm = v }) }
func (r *Register) SetEmail(v string)   { r.set(func(s *FormState) { s.Email = v }) }

// Submit checks the confirmation locally first; a mismatch never reaches the
// server.
func (r *Register) Submit(ctx context.Context) error {
	st, err := r.begin()
	if err != nil {
		return err
	}
	if st.Password != st.Confirm {
		r.fail(PasswordMismatchMessage)
		return ErrPasswordMismatch
	}
	username := strings.TrimSpace(st.Username)
	res, err := r.remote.Register(ctx, api.Registration{
		Username: username,
		Password: st.Password,
		Email:    strings.TrimSpace(st.Email),
	})
	return r.finish("register", username, res, err, RegisterFailedMessage)
}
