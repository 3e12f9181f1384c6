package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/coffee-order/internal/api"
	"github.com/vasiliy-maslov/coffee-order/internal/auth"
	"github.com/vasiliy-maslov/coffee-order/internal/catalog"
	"github.com/vasiliy-maslov/coffee-order/internal/navigation"
	"github.com/vasiliy-maslov/coffee-order/internal/order"
	"github.com/vasiliy-maslov/coffee-order/internal/quantity"
)

var ErrUnknownCoffee = errors.New("app: no such coffee in the catalog")

type mounted interface {
	mount(ctx context.Context, visit uint64)
	unmount()
}

// Row is one catalog line with its selected quantity.
type Row struct {
	Item     api.Coffee
	Quantity int
}

// CatalogView lists the coffees and keeps the quantities picked for them.
// Every mount starts from a fresh ledger.
type CatalogView struct {
	app    *App
	ledger *quantity.Ledger
}

func newCatalogView(a *App) *CatalogView {
	return &CatalogView{app: a, ledger: quantity.NewLedger()}
}

func (v *CatalogView) mount(ctx context.Context, visit uint64) {
	if v.app.catalog.Status() == catalog.StatusResolved {
		v.seed()
		return
	}
	go func() {
		// Load joins a fetch already in flight and retries one that failed.
		if err := v.app.catalog.Load(ctx); err != nil {
			log.Warn().Err(err).Msg("app: catalog unavailable")
			return
		}
		if !v.app.current(visit) {
			log.Debug().Uint64("visit", visit).Msg("app: catalog arrived for a closed view, discarding")
			return
		}
		v.seed()
	}()
}

func (v *CatalogView) unmount() {}

func (v *CatalogView) seed() {
	items := v.app.catalog.Items()
	ids := make([]api.CoffeeID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	v.ledger.Seed(ids)
}

// Rows is empty until the catalog resolves.
func (v *CatalogView) Rows() []Row {
	items := v.app.catalog.Items()
	rows := make([]Row, 0, len(items))
	seen := make(map[api.CoffeeID]bool, len(items))
	for _, item := range items {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		rows = append(rows, Row{Item: item, Quantity: v.ledger.Get(item.ID)})
	}
	return rows
}

func (v *CatalogView) Status() catalog.Status {
	return v.app.catalog.Status()
}

func (v *CatalogView) Increment(rawID string) (int, error) {
	item, ok := v.app.catalog.Lookup(rawID)
	if !ok {
		return 0, ErrUnknownCoffee
	}
	return v.ledger.Increment(item.ID), nil
}

func (v *CatalogView) Decrement(rawID string) (int, error) {
	item, ok := v.app.catalog.Lookup(rawID)
	if !ok {
		return 0, ErrUnknownCoffee
	}
	return v.ledger.Decrement(item.ID), nil
}

// Open goes to the order view carrying the selected quantity.
func (v *CatalogView) Open(rawID string) (navigation.Location, error) {
	item, ok := v.app.catalog.Lookup(rawID)
	if !ok {
		return navigation.Location{}, ErrUnknownCoffee
	}
	return v.app.nav.Navigate(navigation.EncodeOrder(item.ID, v.ledger.Get(item.ID))), nil
}

type orderView struct {
	app      *App
	itemID   string
	composer *order.Composer
}

// newOrderView runs under the app lock, so the identity applied here cannot
// overtake a later session change.
func newOrderView(a *App, itemID, rawQuery string) *orderView {
	c := order.NewComposer(itemID, rawQuery, a.remote, order.Options{
		Navigate:      a.navigate,
		RedirectDelay: a.opts.RedirectDelay,
	})
	c.ApplyIdentity(a.session.Snapshot())
	return &orderView{app: a, itemID: itemID, composer: c}
}

func (v *orderView) mount(ctx context.Context, visit uint64) {
	if item, ok := v.app.catalog.Lookup(v.itemID); ok {
		v.composer.ResolveItem(item, true)
		return
	}
	go func() {
		err := v.app.catalog.Load(ctx)
		if !v.app.current(visit) {
			log.Debug().Uint64("visit", visit).Str("coffee_id", v.itemID).Msg("app: item arrived for a closed order view, discarding")
			return
		}
		if err != nil {
			log.Warn().Err(err).Str("coffee_id", v.itemID).Msg("app: order view stays loading, catalog unavailable")
			return
		}
		item, ok := v.app.catalog.Lookup(v.itemID)
		v.composer.ResolveItem(item, ok)
	}()
}

func (v *orderView) unmount() {
	v.composer.Close()
}

type loginView struct {
	form *auth.Login
}

func (v *loginView) mount(context.Context, uint64) {}

func (v *loginView) unmount() {
	v.form.Close()
}

type registerView struct {
	form *auth.Register
}

func (v *registerView) mount(context.Context, uint64) {}

func (v *registerView) unmount() {
	v.form.Close()
}
