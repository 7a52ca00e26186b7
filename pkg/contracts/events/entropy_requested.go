package events

import "time"

// Evento publicado quando um pedido de entropy é confirmado na oracle chain.
// Carrega a "prova" do pedido para auditoria (seed, tx, bloco).
type EntropyRequested struct {
	EventID       string    `json:"event_id"`
	RequestID     string    `json:"request_id"`
	DerivedID     bool      `json:"derived_id"` // true quando o id não veio do log EntropyRequested
	OriginTxHash  string    `json:"origin_tx_hash"`
	RequestTxHash string    `json:"request_tx_hash"`
	BlockNumber   uint64    `json:"block_number"`
	UserSeed      string    `json:"user_seed"`
	User          string    `json:"user"`
	GameType      string    `json:"game_type"`
	BetAmount     string    `json:"bet_amount"` // wei
	FeePaid       string    `json:"fee_paid"`   // wei
	GameConfig    string    `json:"game_config,omitempty"`
	Network       string    `json:"network"`
	Ts            time.Time `json:"ts"`
}
