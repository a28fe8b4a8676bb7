package engine

import (
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/DoyleJ11/loteria-backend/internal/apperr"
	"github.com/DoyleJ11/loteria-backend/internal/deck"
)

var ErrNotHost = apperr.New(apperr.KindAuthorization, "not-host", "only the host can do that")
var ErrNotEnoughPlayers = apperr.New(apperr.KindStateConflict, "not-enough-players", "not enough players to start")
var ErrRoundInProgress = apperr.New(apperr.KindStateConflict, "round-in-progress", "a round is already in progress")
var ErrRoundNotStarted = apperr.New(apperr.KindStateConflict, "round-not-started", "no round in progress")
var ErrGameAlreadyFinished = apperr.New(apperr.KindStateConflict, "game-already-finished", "the round already has a winner")
var ErrDeckExhausted = apperr.New(apperr.KindExhaustion, "deck-exhausted", "every card has been called")
var ErrNoBoard = apperr.New(apperr.KindStateConflict, "no-board", "player has no board this round")
var ErrNoWinningPattern = apperr.New(apperr.KindStateConflict, "no-winning-pattern", "board does not hold a winning pattern")
var ErrUnsupportedCommand = apperr.New(apperr.KindValidation, "unsupported-command", "unsupported command")

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseDealing  Phase = "dealing"
	PhaseCalling  Phase = "calling"
	PhaseFinished Phase = "finished"
)

type Rules struct {
	MinPlayers int `json:"min_players"`
}

// State is one lobby's game session. Apply never mutates the State it is
// given, so a value handed out to readers stays stable.
type State struct {
	Phase     Phase            `json:"phase"`
	Round     int              `json:"round"`
	Called    []deck.Card      `json:"called"`
	Remaining []deck.Card      `json:"-"`
	Boards    map[string]Board `json:"boards"`
	Winner    string           `json:"winner,omitempty"`
	Win       *Match           `json:"win,omitempty"`
	Rules     Rules            `json:"rules"`
}

type CommandType string

const (
	CmdStartGame    CommandType = "StartGame"
	CmdCallNextCard CommandType = "CallNextCard"
	CmdClaimWin     CommandType = "ClaimWin"
	CmdResetRound   CommandType = "ResetRound"
)

/*
	CmdStartGame    -> EvtRoundStarted -> EvtBoardsDealt   (waiting -> dealing -> calling)
	CmdCallNextCard -> EvtCardCalled
	CmdClaimWin     -> EvtWinConfirmed                     (calling -> finished)
	CmdResetRound   -> EvtRoundReset                       (calling|finished -> waiting)
*/

// Command carries the requester plus the lobby facts the session needs to
// authorize it. Players is the roster in join order.
type Command struct {
	Type        CommandType
	RequesterID string
	HostID      string
	Players     []string
	Rand        *rand.Rand // nil uses the process-wide generator
}

type EventType string

const (
	EvtRoundStarted EventType = "RoundStarted"
	EvtBoardsDealt  EventType = "BoardsDealt"
	EvtCardCalled   EventType = "CardCalled"
	EvtWinConfirmed EventType = "WinConfirmed"
	EvtRoundReset   EventType = "RoundReset"
)

type Event struct {
	Type     EventType
	PlayerID string
	Card     *deck.Card
	Match    *Match
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdStartGame:
		if cmd.RequesterID != cmd.HostID {
			return nil, s, ErrNotHost
		}
		if s.Phase != PhaseWaiting {
			return nil, s, ErrRoundInProgress
		}
		if len(cmd.Players) < s.Rules.MinPlayers || len(cmd.Players) == 0 {
			return nil, s, ErrNotEnoughPlayers
		}

		next := s.clone()
		next.Phase = PhaseDealing
		next.Round++
		next.Boards = make(map[string]Board, len(cmd.Players))

		// Every player gets an independent shuffle.
		for _, id := range cmd.Players {
			b, err := GenerateBoard(deck.ShuffledCopy(cmd.Rand))
			if err != nil {
				return nil, s, err
			}
			next.Boards[id] = b
		}

		next.Called = []deck.Card{}
		next.Remaining = deck.ShuffledCopy(cmd.Rand)
		next.Phase = PhaseCalling

		events := []Event{
			{Type: EvtRoundStarted, PlayerID: cmd.RequesterID},
			{Type: EvtBoardsDealt},
		}
		return events, next, nil

	case CmdCallNextCard:
		if err := inRound(s); err != nil {
			return nil, s, err
		}
		if cmd.RequesterID != cmd.HostID {
			return nil, s, ErrNotHost
		}
		if len(s.Remaining) == 0 {
			return nil, s, ErrDeckExhausted
		}

		card := s.Remaining[0]
		if s.HasBeenCalled(card.ID) {
			return nil, s, apperr.ErrInternal
		}

		next := s.clone()
		next.Remaining = next.Remaining[1:]
		next.Called = append(next.Called, card)

		return []Event{{Type: EvtCardCalled, Card: &card}}, next, nil

	case CmdClaimWin:
		if err := inRound(s); err != nil {
			return nil, s, err
		}
		board, ok := s.Boards[cmd.RequesterID]
		if !ok {
			return nil, s, ErrNoBoard
		}

		// The claimant's marks are rebuilt from the called cards; nothing
		// the client believes about its board is trusted.
		match, ok := DetectWin(MarksFor(board, s.Called))
		if !ok {
			return nil, s, ErrNoWinningPattern
		}

		next := s.clone()
		next.Phase = PhaseFinished
		next.Winner = cmd.RequesterID
		next.Win = &match

		return []Event{{Type: EvtWinConfirmed, PlayerID: cmd.RequesterID, Match: &match}}, next, nil

	case CmdResetRound:
		if cmd.RequesterID != cmd.HostID {
			return nil, s, ErrNotHost
		}
		if s.Phase == PhaseWaiting {
			return nil, s, ErrRoundNotStarted
		}

		next := NewState(s.Rules)
		next.Round = s.Round
		return []Event{{Type: EvtRoundReset, PlayerID: cmd.RequesterID}}, next, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func inRound(s State) error {
	switch s.Phase {
	case PhaseCalling:
		return nil
	case PhaseFinished:
		return ErrGameAlreadyFinished
	default:
		return ErrRoundNotStarted
	}
}

func (s State) clone() State {
	out := s
	out.Called = slices.Clone(s.Called)
	out.Remaining = slices.Clone(s.Remaining)
	out.Boards = maps.Clone(s.Boards)
	if s.Win != nil {
		w := *s.Win
		out.Win = &w
	}
	return out
}
