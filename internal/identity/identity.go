// Package identity turns an incoming HTTP request (a REST call or a
// WebSocket upgrade) into the player it belongs to.
package identity

import (
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/DoyleJ11/loteria-backend/internal/apperr"
)

const MaxDisplayNameLen = 32

var ErrUnauthenticated = apperr.New(apperr.KindAuthorization, "unauthenticated", "missing or invalid credentials")
var ErrInvalidDisplayName = apperr.New(apperr.KindValidation, "invalid-display-name", "display name must be 1-32 printable characters")
var ErrInvalidPlayerID = apperr.New(apperr.KindValidation, "invalid-player-id", "player id must be a UUID")

type Identity struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Guest       bool   `json:"guest"`
}

type Resolver interface {
	Resolve(r *http.Request) (Identity, error)
}

// NormalizeDisplayName trims and collapses whitespace and rejects names that
// are empty, too long, or carry control characters.
func NormalizeDisplayName(name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" || utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return "", ErrInvalidDisplayName
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return "", ErrInvalidDisplayName
		}
	}
	return name, nil
}

// WithName returns id with its display name replaced by name, if name is
// non-empty and valid.
func (id Identity) WithName(name string) (Identity, error) {
	if strings.TrimSpace(name) == "" {
		return id, nil
	}
	n, err := NormalizeDisplayName(name)
	if err != nil {
		return id, err
	}
	id.DisplayName = n
	return id, nil
}
