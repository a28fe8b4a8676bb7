package lobby

import (
	"slices"
	"time"
)

type Player struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
	Connected   bool      `json:"connected"`
}

// Roster is a lobby's membership. Players are kept in join order, which is
// also the host succession order.
type Roster struct {
	Players []Player `json:"players"`
	HostID  string   `json:"host_id"`
}

func NewRoster(creator Player) Roster {
	creator.Connected = true
	return Roster{Players: []Player{creator}, HostID: creator.ID}
}

func (r Roster) Index(id string) int {
	return slices.IndexFunc(r.Players, func(p Player) bool { return p.ID == id })
}

func (r Roster) Has(id string) bool { return r.Index(id) >= 0 }

func (r Roster) IDs() []string {
	ids := make([]string, len(r.Players))
	for i, p := range r.Players {
		ids[i] = p.ID
	}
	return ids
}

// Join appends p unless a player with the same id is already present, in
// which case that entry is marked connected and keeps its place. The host
// never changes on join.
func (r Roster) Join(p Player) (Roster, bool) {
	next := Roster{Players: slices.Clone(r.Players), HostID: r.HostID}
	if i := next.Index(p.ID); i >= 0 {
		next.Players[i].Connected = true
		return next, false
	}
	p.Connected = true
	next.Players = append(next.Players, p)
	if next.HostID == "" {
		next.HostID = p.ID
	}
	return next, true
}

// Leave removes id. When the host leaves, the earliest remaining joiner
// becomes host. An empty roster has no host.
func (r Roster) Leave(id string) (next Roster, removed bool, hostChanged bool) {
	i := r.Index(id)
	if i < 0 {
		return r, false, false
	}

	next = Roster{Players: slices.Delete(slices.Clone(r.Players), i, i+1), HostID: r.HostID}
	if next.HostID == id {
		next.HostID = ""
		if len(next.Players) > 0 {
			next.HostID = next.Players[0].ID
		}
		hostChanged = true
	}
	return next, true, hostChanged
}

func (r Roster) SetConnected(id string, connected bool) Roster {
	i := r.Index(id)
	if i < 0 {
		return r
	}
	next := Roster{Players: slices.Clone(r.Players), HostID: r.HostID}
	next.Players[i].Connected = connected
	return next
}
