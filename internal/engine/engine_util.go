package engine

import "github.com/DoyleJ11/loteria-backend/internal/deck"

func NewState(rules Rules) State {
	return State{
		Phase:  PhaseWaiting,
		Called: []deck.Card{},
		Boards: map[string]Board{},
		Rules:  rules,
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// HasBeenCalled reports whether the card with id is among the called cards.
func (s State) HasBeenCalled(id int) bool {
	for _, c := range s.Called {
		if c.ID == id {
			return true
		}
	}
	return false
}
