package identity

import (
	"net/http"

	"github.com/google/uuid"
)

// GuestResolver trusts the player_id and name query parameters. A client
// keeps its player_id across reconnects to reclaim its seat; a missing one
// gets a fresh UUID.
type GuestResolver struct{}

func (GuestResolver) Resolve(r *http.Request) (Identity, error) {
	q := r.URL.Query()

	id := q.Get("player_id")
	if id == "" {
		id = uuid.NewString()
	} else {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return Identity{}, ErrInvalidPlayerID
		}
		id = parsed.String()
	}

	name := defaultName(id)
	if raw := q.Get("name"); raw != "" {
		n, err := NormalizeDisplayName(raw)
		if err != nil {
			return Identity{}, err
		}
		name = n
	}
	return Identity{PlayerID: id, DisplayName: name, Guest: true}, nil
}

func defaultName(id string) string {
	if len(id) > 4 {
		id = id[:4]
	}
	return "Guest-" + id
}
