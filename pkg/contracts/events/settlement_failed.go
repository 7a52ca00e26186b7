package events

import "time"

// Evento enviado para a DLQ quando o settlement é abandonado.
// Jogo com entropy paga mas sem resultado na game chain: precisa de reprocessamento ou refund.
type SettlementFailed struct {
	EventID      string    `json:"event_id"`
	RequestID    string    `json:"request_id"`
	OriginTxHash string    `json:"origin_tx_hash"`
	User         string    `json:"user"`
	GameType     string    `json:"game_type"`
	BetAmount    string    `json:"bet_amount"`
	Attempts     int       `json:"attempts"`
	Reason       string    `json:"reason"`
	Ts           time.Time `json:"ts"`
}
