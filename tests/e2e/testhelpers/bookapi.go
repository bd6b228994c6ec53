package testhelpers

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
)

type user struct {
	name      string
	password  string
	latitude  float64
	longitude float64
}

type book struct {
	id          int64
	title       string
	author      string
	description string
	owner       string
}

// BookAPI is an in-memory stand-in for the book-sharing server. Like the real one it
// answers rejected logins, duplicate emails and duplicate titles with a 500.
type BookAPI struct {
	URL string

	mu     sync.Mutex
	users  map[string]*user
	tokens map[string]string
	books  []book
}

// NewBookAPI starts a fake server that lives for the duration of the test
func NewBookAPI(t *testing.T) *BookAPI {
	t.Helper()

	b := &BookAPI{
		users:  make(map[string]*user),
		tokens: make(map[string]string),
	}

	srv := httptest.NewServer(b.routes())
	t.Cleanup(srv.Close)
	b.URL = srv.URL + "/api"

	return b
}

// Revoke invalidates every token issued to email
func (b *BookAPI) Revoke(email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for token, owner := range b.tokens {
		if owner == email {
			delete(b.tokens, token)
		}
	}
}

func (b *BookAPI) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", b.login)
	mux.HandleFunc("POST /api/register", b.register)
	mux.HandleFunc("POST /api/books", b.shareBook)
	mux.HandleFunc("GET /api/books/nearby", b.nearby)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *BookAPI) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[req.Email]
	if !ok || u.password != req.Password {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server Error"})
		return
	}

	token := ulid.Make().String()
	b.tokens[token] = req.Email
	writeJSON(w, http.StatusOK, map[string]string{"result": token})
}

func (b *BookAPI) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string  `json:"name"`
		Email     string  `json:"email"`
		Password  string  `json:"password"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.users[req.Email]; exists {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server Error"})
		return
	}

	b.users[req.Email] = &user{name: req.Name, password: req.Password, latitude: req.Latitude, longitude: req.Longitude}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered"})
}

// caller returns the email behind the bearer token. Must hold b.mu.
func (b *BookAPI) caller(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	email, ok := b.tokens[token]
	return email, ok
}

func (b *BookAPI) shareBook(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	email, ok := b.caller(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		return
	}

	var req struct {
		Title       string `json:"title"`
		Author      string `json:"author"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON"})
		return
	}

	for _, existing := range b.books {
		if existing.title == req.Title {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server Error"})
			return
		}
	}

	b.books = append(b.books, book{
		id:          int64(len(b.books) + 1),
		title:       req.Title,
		author:      req.Author,
		description: req.Description,
		owner:       email,
	})
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Book shared"})
}

func (b *BookAPI) nearby(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	email, ok := b.caller(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		return
	}
	me := b.users[email]

	books := []map[string]any{}
	for _, bk := range b.books {
		if bk.owner == email {
			continue
		}
		owner := b.users[bk.owner]
		distance := haversineKM(me.latitude, me.longitude, owner.latitude, owner.longitude)
		if distance > 10 {
			continue
		}
		books = append(books, map[string]any{
			"id":          bk.id,
			"title":       bk.title,
			"author":      bk.author,
			"description": bk.description,
			"user":        map[string]string{"name": owner.name},
			"distance_km": distance,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKM = 6371.0
	rad := math.Pi / 180

	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
