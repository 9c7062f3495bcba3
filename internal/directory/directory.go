package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dentalops/clinic-platform/pkg/logging"
)

var (
	// ErrUnavailable indicates the collaborator did not answer in time.
	ErrUnavailable = errors.New("directory service unavailable")

	// ErrNotFound indicates the id is unknown to the collaborator.
	ErrNotFound = errors.New("directory entry not found")
)

// User is the identity service's view of a staff member or patient.
type User struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Role  string    `json:"role,omitempty"`
}

// Room is the room service's view of a treatment room.
type Room struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Directory resolves ids to human-readable names for audit enrichment and
// notification recipients. Lookups are best-effort: callers fall back to
// placeholder text when a lookup fails.
type Directory interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error)
}

// HTTPDirectory talks to the identity and room collaborator services.
type HTTPDirectory struct {
	identityURL string
	roomURL     string
	httpClient  *http.Client
	logger      *logging.Logger
}

// NewHTTPDirectory creates a directory over the two collaborator base URLs.
func NewHTTPDirectory(identityURL, roomURL string, timeout time.Duration, logger *logging.Logger) *HTTPDirectory {
	if identityURL == "" || roomURL == "" {
		panic("directory: identity and room base URLs required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPDirectory{
		identityURL: identityURL,
		roomURL:     roomURL,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.Component("directory"),
	}
}

func (d *HTTPDirectory) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	if err := d.get(ctx, fmt.Sprintf("%s/users/%s", d.identityURL, id), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *HTTPDirectory) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	var room Room
	if err := d.get(ctx, fmt.Sprintf("%s/rooms/%s", d.roomURL, id), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (d *HTTPDirectory) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("directory: build request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory: %w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("directory: %s: %w", url, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("directory: %s: status %d: %w", url, resp.StatusCode, ErrUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("directory: decode response: %w", err)
	}
	return nil
}
