package stubserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type orderRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	CoffeeID int    `json:"coffeeId" validate:"required,gt=0"`
	Notes    string `json:"notes"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type userResponse struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

func (s *Server) handleListCoffees(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	coffees := append([]Coffee(nil), s.coffees...)
	s.mu.Unlock()

	respondWithJSON(w, http.StatusOK, coffees)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("stub: failed to decode order")
		respondWithError(w, http.StatusBadRequest, "Invalid order")
		return
	}

	acc, loggedIn := userFrom(r.Context())
	if req.Email == "" && loggedIn {
		req.Email = acc.Email
	}

	if err := s.validate.Struct(req); err != nil || (req.Email == "" && !loggedIn) {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			log.Debug().Strs("details", formatValidationErrors(validationErrors)).Msg("stub: order validation failed")
		}
		respondWithError(w, http.StatusBadRequest, "Missing fields")
		return
	}

	s.mu.Lock()
	known := false
	for _, c := range s.coffees {
		if c.ID == req.CoffeeID {
			known = true
			break
		}
	}
	if !known {
		s.mu.Unlock()
		respondWithError(w, http.StatusNotFound, "Unknown coffee")
		return
	}

	order := Order{
		ID:        uuid.Must(uuid.NewV4()),
		Name:      req.Name,
		Email:     req.Email,
		CoffeeID:  req.CoffeeID,
		Notes:     req.Notes,
		Quantity:  req.Quantity,
		CreatedAt: s.now().UTC(),
	}
	if loggedIn {
		order.Username = acc.Username
	}
	s.orders = append(s.orders, order)
	s.mu.Unlock()

	log.Info().Stringer("order_id", order.ID).Int("coffee_id", order.CoffeeID).Int("quantity", order.Quantity).Msg("stub: order accepted")

	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"id":        order.ID,
		"createdAt": order.CreatedAt,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decodeCredentials(w, r, &req) {
		return
	}

	if err := s.AddAccount(req.Username, req.Email, req.Password); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			respondWithError(w, http.StatusConflict, "Username or email already exists")
			return
		}
		log.Error().Err(err).Msg("stub: failed to register account")
		respondWithError(w, http.StatusInternalServerError, "Error hashing password")
		return
	}

	s.startSession(w, req.Username)
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"user":   userResponse{Username: req.Username, Email: req.Email},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decodeCredentials(w, r, &req) {
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[req.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)) != nil {
		log.Info().Str("username", req.Username).Msg("stub: rejected login")
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.startSession(w, acc.Username)
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"user":   userResponse{Username: acc.Username, Email: acc.Email},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if id, err := uuid.FromString(cookie.Value); err == nil {
			s.mu.Lock()
			delete(s.sessions, id)
			s.mu.Unlock()
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  s.now().Add(-time.Hour),
		MaxAge:   -1,
		HttpOnly: true,
	})
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	acc, ok := userFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Not logged in")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"user":   userResponse{Username: acc.Username, Email: acc.Email},
	})
}

func (s *Server) decodeCredentials(w http.ResponseWriter, r *http.Request, req *credentialsRequest) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		log.Warn().Err(err).Msg("stub: failed to decode credentials")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithError(w, http.StatusBadRequest, "Missing fields")
			return false
		}
		log.Error().Err(err).Msg("stub: unexpected validation error")
		respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		return false
	}
	return true
}

func (s *Server) startSession(w http.ResponseWriter, username string) {
	id := uuid.Must(uuid.NewV4())
	expires := s.now().Add(sessionTTL)

	s.mu.Lock()
	s.sessions[id] = session{username: username, expiresAt: expires}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id.String(),
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
