// Package app wires the stores, the navigator and the views together.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vasiliy-maslov/coffee-order/internal/auth"
	"github.com/vasiliy-maslov/coffee-order/internal/catalog"
	"github.com/vasiliy-maslov/coffee-order/internal/navigation"
	"github.com/vasiliy-maslov/coffee-order/internal/order"
	"github.com/vasiliy-maslov/coffee-order/internal/session"
)

var (
	ErrNotStarted = errors.New("app: not started")
	ErrWrongView  = errors.New("app: action not available on this view")
)

// Remote is everything the client asks of the coffee service.
type Remote interface {
	catalog.Fetcher
	session.Remote
	order.Submitter
	auth.Remote
}

type Options struct {
	RedirectDelay time.Duration
	// Start is the first location; "/" when empty.
	Start string
}

type App struct {
	remote Remote
	opts   Options

	session *session.Store
	catalog *catalog.Cache
	nav     *navigation.Navigator
	router  *navigation.Router

	startup errgroup.Group
	unsubs  []func()

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	visit  uint64
	match  navigation.Match
	found  bool
	view   mounted
}

func New(remote Remote, opts Options) *App {
	if opts.Start == "" {
		opts.Start = navigation.PathCatalog
	}
	return &App{
		remote:  remote,
		opts:    opts,
		session: session.NewStore(remote),
		catalog: catalog.NewCache(remote),
		nav:     navigation.NewNavigator(opts.Start),
		router:  navigation.NewRouter(),
	}
}

// Start issues the identity check and the catalog fetch side by side and
// mounts the first view. It does not wait for either request.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	a.ctx, a.cancel = context.WithCancel(ctx)
	base := a.ctx
	a.mu.Unlock()

	a.startup.Go(func() error {
		if err := a.session.Check(base); err != nil {
			log.Warn().Err(err).Msg("app: identity check did not complete")
		}
		return nil
	})
	a.startup.Go(func() error {
		if err := a.catalog.Load(base); err != nil {
			return fmt.Errorf("app: initial catalog load: %w", err)
		}
		return nil
	})

	a.unsubs = append(a.unsubs,
		a.nav.Subscribe(a.onNavigate),
		a.session.Subscribe(a.onIdentity),
	)
	a.mount(a.nav.Current())
	log.Info().Str("location", a.nav.Current().String()).Msg("app: started")
}

// WaitStartup blocks until both startup requests settled. Only a failed
// catalog load is reported; the app stays usable either way.
func (a *App) WaitStartup() error {
	return a.startup.Wait()
}

// Close unmounts the current view and drops every pending result.
func (a *App) Close() {
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.view != nil {
		a.view.unmount()
		a.view = nil
	}
	a.visit++
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *App) Navigate(ref string) navigation.Location {
	return a.nav.Navigate(ref)
}

func (a *App) Back() (navigation.Location, bool) {
	return a.nav.Back()
}

func (a *App) Location() navigation.Location {
	return a.nav.Current()
}

func (a *App) Session() session.Snapshot {
	return a.session.Snapshot()
}

func (a *App) CatalogStatus() catalog.Status {
	return a.catalog.Status()
}

// Logout clears the identity at once. A failed server call is returned for
// reporting but does not bring the identity back.
func (a *App) Logout(ctx context.Context) error {
	return a.session.Logout(ctx)
}

// View reports which view is mounted. ok is false for paths no view claims.
func (a *App) View() (navigation.View, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.match.View, a.found
}

func (a *App) CatalogView() (*CatalogView, error) {
	return mountedAs[*CatalogView](a)
}

func (a *App) OrderView() (*order.Composer, error) {
	v, err := mountedAs[*orderView](a)
	if err != nil {
		return nil, err
	}
	return v.composer, nil
}

func (a *App) LoginForm() (*auth.Login, error) {
	v, err := mountedAs[*loginView](a)
	if err != nil {
		return nil, err
	}
	return v.form, nil
}

func (a *App) RegisterForm() (*auth.Register, error) {
	v, err := mountedAs[*registerView](a)
	if err != nil {
		return nil, err
	}
	return v.form, nil
}

func mountedAs[T mounted](a *App) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var zero T
	if a.ctx == nil {
		return zero, ErrNotStarted
	}
	v, ok := a.view.(T)
	if !ok {
		return zero, ErrWrongView
	}
	return v, nil
}

func (a *App) onNavigate(prev, next navigation.Location) {
	if navigation.QueryChanged(prev, next) {
		a.mu.Lock()
		ov, ok := a.view.(*orderView)
		a.mu.Unlock()
		if ok {
			ov.composer.ApplyQuery(next.RawQuery)
			return
		}
	}
	a.mount(next)
}

func (a *App) onIdentity(snap session.Snapshot) {
	a.mu.Lock()
	ov, ok := a.view.(*orderView)
	a.mu.Unlock()
	if ok {
		ov.composer.ApplyIdentity(snap)
	}
}

// mount replaces the current view. The visit counter moves on, so anything
// still in flight for the old view is discarded when it lands.
func (a *App) mount(loc navigation.Location) {
	a.mu.Lock()
	if a.view != nil {
		a.view.unmount()
		a.view = nil
	}
	a.visit++
	visit := a.visit
	ctx := a.ctx
	a.match, a.found = a.router.Resolve(loc)
	view := a.match.View
	if !a.found {
		a.mu.Unlock()
		log.Warn().Str("path", loc.Path).Msg("app: no view for path")
		return
	}

	var v mounted
	switch view {
	case navigation.ViewCatalog:
		v = newCatalogView(a)
	case navigation.ViewOrder:
		v = newOrderView(a, a.match.ItemID, loc.RawQuery)
	case navigation.ViewLogin:
		v = &loginView{form: auth.NewLogin(a.remote, a.session, a.authOptions())}
	case navigation.ViewRegister:
		v = &registerView{form: auth.NewRegister(a.remote, a.session, a.authOptions())}
	}
	a.view = v
	a.mu.Unlock()

	log.Debug().Str("view", string(view)).Uint64("visit", visit).Msg("app: view mounted")
	v.mount(ctx, visit)
}

// current reports whether visit is still the mounted one.
func (a *App) current(visit uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visit == visit
}

func (a *App) authOptions() auth.Options {
	return auth.Options{Navigate: a.navigate, RedirectDelay: a.opts.RedirectDelay}
}

func (a *App) navigate(ref string) {
	a.nav.Navigate(ref)
}
