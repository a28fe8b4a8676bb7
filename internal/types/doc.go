// Package types holds the JSON messages exchanged over /ws.
//
// Client -> Server
//
//	create-lobby:   player_name?
//	join-lobby:     lobby_code, player_name?
//	leave-lobby:    {}
//	start-game:     lobby_code?   (host only)
//	call-next-card: lobby_code?   (host only)
//	claim-win:      lobby_code?
//	reset-round:    lobby_code?   (host only)
//
// Server -> Client
//
//	lobby-created:  lobby_code, player_id, lobby
//	lobby-updated:  version, lobby_code, lobby
//	game-started:   version, lobby_code, lobby, boards { player_id: Card[4][4] }
//	card-called:    version, lobby_code, lobby, card, called
//	win-confirmed:  version, lobby_code, lobby, winner_id, win { pattern, index, cells }
//	round-reset:    version, lobby_code, lobby
//	lobby-closed:   version, lobby_code
//	left-lobby:     lobby_code, player_id
//	win-rejected:   lobby_code, reason, error, code, kind
//	deck-exhausted: lobby_code, error, code, kind
//	error:          lobby_code?, error, code, kind
//
// Broadcasts carry the lobby version, which increases with every accepted
// change. Errors only ever go to the connection that caused them.
package types
