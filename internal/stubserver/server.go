// Package stubserver is an in-memory stand-in for the remote coffee service.
// It speaks the same wire contract as the production API and is used by the
// integration tests and by cmd/coffee-stub for local runs.
package stubserver

import (
	"context"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionCookie = "session_id"
	sessionTTL    = 7 * 24 * time.Hour
)

type Coffee struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

type Order struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CoffeeID  int       `json:"coffeeId"`
	Notes     string    `json:"notes"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

type account struct {
	Username     string
	Email        string
	PasswordHash string
}

type session struct {
	username  string
	expiresAt time.Time
}

type Server struct {
	mu       sync.Mutex
	coffees  []Coffee
	accounts map[string]account
	sessions map[uuid.UUID]session
	orders   []Order
	hits     map[string]int

	validate   *validator.Validate
	bcryptCost int
	now        func() time.Time
}

type Option func(*Server)

// WithBcryptCost lowers hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.bcryptCost = cost
	}
}

func New(coffees []Coffee, opts ...Option) *Server {
	s := &Server{
		coffees:    append([]Coffee(nil), coffees...),
		accounts:   make(map[string]account),
		sessions:   make(map[uuid.UUID]session),
		hits:       make(map[string]int),
		validate:   validator.New(),
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func DefaultCoffees() []Coffee {
	return []Coffee{
		{ID: 1, Name: "Espresso", Image: "espresso.jpg"},
		{ID: 2, Name: "Latte", Image: "latte.jpg"},
		{ID: 3, Name: "Cappuccino", Image: "cappuccino.jpg"},
		{ID: 4, Name: "Flat White", Image: "flat-white.jpg"},
	}
}

func (s *Server) Handler() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.countHits)
	r.Use(s.loadSession)
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/coffees", s.handleListCoffees)
	r.Post("/order", s.handleCreateOrder)
	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.Get("/me", s.handleMe)
}

// AddAccount seeds a user without going through /register.
func (s *Server) AddAccount(username, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[username]; exists {
		return ErrUsernameTaken
	}
	s.accounts[username] = account{Username: username, Email: email, PasswordHash: string(hash)}
	return nil
}

func (s *Server) Orders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Order(nil), s.orders...)
}

// Hits reports how many requests reached "METHOD /path".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

type ctxKey struct{}

func userFrom(ctx context.Context) (account, bool) {
	acc, ok := ctx.Value(ctxKey{}).(account)
	return acc, ok
}
