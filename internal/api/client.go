package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client represents an HTTP client for the book-sharing API.
// Authentication is added by the transport of the supplied http.Client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Result string `json:"result"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name                 string  `json:"name"`
	Email                string  `json:"email"`
	Password             string  `json:"password"`
	PasswordConfirmation string  `json:"password_confirmation"`
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
}

// ShareBookRequest represents the share book request body
type ShareBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// Owner is the user sharing a book
type Owner struct {
	Name string `json:"name"`
}

// Book represents a book shared near the current user
type Book struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Description string   `json:"description"`
	User        *Owner   `json:"user,omitempty"`
	DistanceKM  *float64 `json:"distance_km,omitempty"`
}

// NearbyBooksResponse represents the nearby books response
type NearbyBooksResponse struct {
	Books []Book `json:"books"`
}

// Login authenticates the user and returns the bearer token
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/login", LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classify("login", resp, map[int]error{
			http.StatusInternalServerError: ErrInvalidCredentials,
		})
	}

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if loginResp.Result == "" {
		return "", ErrNoToken
	}

	return loginResp.Result, nil
}

// Register creates a new account
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	resp, err := c.do(ctx, http.MethodPost, "/register", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return classify("register", resp, map[int]error{
			http.StatusInternalServerError: ErrEmailExists,
		})
	}

	return nil
}

// ShareBook shares a book from the current user
func (c *Client) ShareBook(ctx context.Context, req ShareBookRequest) error {
	resp, err := c.do(ctx, http.MethodPost, "/books", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return classify("share book", resp, map[int]error{
			http.StatusInternalServerError: ErrDuplicateTitle,
		})
	}

	return nil
}

// NearbyBooks returns the books shared near the current user
func (c *Client) NearbyBooks(ctx context.Context) ([]Book, error) {
	resp, err := c.do(ctx, http.MethodGet, "/books/nearby", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classify("fetch nearby books", resp, nil)
	}

	var nearby NearbyBooksResponse
	if err := json.NewDecoder(resp.Body).Decode(&nearby); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if nearby.Books == nil {
		nearby.Books = []Book{}
	}

	return nearby.Books, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}
