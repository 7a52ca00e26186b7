package events

import "time"

// Evento emitido após o settlement de uma sessão na game chain.
type GameSettled struct {
	EventID          string    `json:"event_id"`
	RequestID        string    `json:"request_id"`
	SessionID        string    `json:"session_id"`
	User             string    `json:"user"`
	GameType         string    `json:"game_type"`
	BetAmount        string    `json:"bet_amount"`
	Won              bool      `json:"won"`
	WinAmount        string    `json:"win_amount"`
	Draw             uint64    `json:"draw"`
	RandomSource     string    `json:"random_source"` // oracle_event | oracle_view | txhash_fallback
	SettlementTxHash string    `json:"settlement_tx_hash"`
	Ts               time.Time `json:"ts"`
}
