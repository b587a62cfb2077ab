package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	Users "campusnet/Events/Users"
	AuthService "campusnet/Services/Auth"
	Utils "campusnet/Utils"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// Controller serves registration, login, and the current-user endpoint.
type Controller struct {
	users Users.Store
	auth  *AuthService.Service
}

func NewController(users Users.Store, auth *AuthService.Service) *Controller {
	return &Controller{users: users, auth: auth}
}

// Handle sets up the routes for authentication endpoints.
func (c *Controller) Handle(r chi.Router) {
	r.Post("/register", c.Register)
	r.Post("/login", c.Login)
	r.With(c.auth.RequireAuth).Get("/me", c.Me)
}

// RegisterRequest represents the registration request payload.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

// Register creates a new user account and returns it with a fresh token.
func (c *Controller) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Register: failed to read body: %v", err)
		Utils.SendError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var input RegisterRequest
	if err := json.Unmarshal(body, &input); err != nil {
		Utils.SendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	email := Users.NormalizeEmail(input.Email)
	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = Users.DefaultRole
	}

	if email == "" || input.Password == "" {
		Utils.SendError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if err := Users.ValidateName(firstName); err != nil {
		Utils.SendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := Users.ValidateName(lastName); err != nil {
		Utils.SendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := Users.ValidateRole(role); err != nil {
		Utils.SendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(input.Password) < MinPasswordLength || len(input.Password) > MaxPasswordLength {
		Utils.SendError(w, http.StatusBadRequest, "Password must be between 8 and 72 characters")
		return
	}

	if _, err := c.users.FindByEmail(ctx, email); err == nil {
		Utils.SendError(w, http.StatusConflict, "Email already in use")
		return
	} else if !errors.Is(err, Users.ErrNotFound) {
		log.Printf("Register: failed to check email: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	passwordHash, err := AuthService.HashPassword(input.Password)
	if err != nil {
		log.Printf("Register: failed to hash password: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	user := &Users.User{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Role:      role,
		Password:  passwordHash,
	}
	if err := c.users.Insert(ctx, user); err != nil {
		if errors.Is(err, Users.ErrDuplicateEmail) {
			Utils.SendError(w, http.StatusConflict, "Email already in use")
			return
		}
		log.Printf("Register: failed to insert user: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	token, err := c.auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		log.Printf("Register: failed to generate token: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	Utils.SendJSON(w, http.StatusCreated, map[string]interface{}{
		"user":  user,
		"token": token,
	})
}

// LoginRequest represents the login request payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and returns a fresh token. Missing user and
// wrong password are indistinguishable to the caller.
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Login: failed to read body: %v", err)
		Utils.SendError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var input LoginRequest
	if err := json.Unmarshal(body, &input); err != nil {
		Utils.SendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := Users.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		Utils.SendError(w, http.StatusBadRequest, "Missing credentials")
		return
	}

	user, err := c.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, Users.ErrNotFound) {
			Utils.SendError(w, http.StatusUnauthorized, "Invalid credentials")
		} else {
			log.Printf("Login: failed to fetch user: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	if !AuthService.CheckPasswordHash(input.Password, user.Password) {
		Utils.SendError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := c.auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		log.Printf("Login: failed to generate token: %v", err)
		Utils.SendError(w, http.StatusInternalServerError, "Server error")
		return
	}

	Utils.SendJSON(w, http.StatusOK, map[string]interface{}{
		"user":  user,
		"token": token,
	})
}

// Me resolves the token subject to its user record.
func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := AuthService.IdentityFrom(ctx)
	if !ok {
		Utils.SendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := c.users.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, Users.ErrNotFound) {
			Utils.SendError(w, http.StatusNotFound, "User not found")
		} else {
			log.Printf("Me: failed to fetch user: %v", err)
			Utils.SendError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	Utils.SendJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}
