package engine

import (
	"github.com/DoyleJ11/loteria-backend/internal/apperr"
	"github.com/DoyleJ11/loteria-backend/internal/deck"
)

const (
	BoardSize  = 4
	BoardCells = BoardSize * BoardSize
)

var ErrInsufficientCards = apperr.New(apperr.KindExhaustion, "insufficient-cards", "not enough cards to deal a board")
var ErrDuplicateCard = apperr.New(apperr.KindValidation, "duplicate-card", "board cards must be distinct")

// Board is a player's 4x4 grid, row-major.
type Board [BoardSize][BoardSize]deck.Card

// MarkGrid tracks which cells of a Board have been called.
type MarkGrid [BoardSize][BoardSize]bool

// GenerateBoard lays the first BoardCells cards of a shuffled deck out
// row-major. The deck is expected to be a permutation, so the cards are
// distinct by construction; a repeated id is still rejected.
func GenerateBoard(cards []deck.Card) (Board, error) {
	var b Board
	if len(cards) < BoardCells {
		return b, ErrInsufficientCards
	}

	for i, c := range cards[:BoardCells] {
		b[i/BoardSize][i%BoardSize] = c
	}

	seen := make(map[int]bool, BoardCells)
	for _, c := range b.Cards() {
		if seen[c.ID] {
			return Board{}, ErrDuplicateCard
		}
		seen[c.ID] = true
	}
	return b, nil
}

func (b Board) Cards() []deck.Card {
	out := make([]deck.Card, 0, BoardCells)
	for _, row := range b {
		out = append(out, row[:]...)
	}
	return out
}

// MarksFor derives the mark grid of b from the called cards.
func MarksFor(b Board, called []deck.Card) MarkGrid {
	calledIDs := make(map[int]bool, len(called))
	for _, c := range called {
		calledIDs[c.ID] = true
	}

	var m MarkGrid
	for r := range b {
		for c := range b[r] {
			m[r][c] = calledIDs[b[r][c].ID]
		}
	}
	return m
}
