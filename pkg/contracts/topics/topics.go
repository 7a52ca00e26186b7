package topics

const (
	// Entropy
	EntropyRequested = "entropy_requested"

	// Settlement
	GameSettled = "game_settled"

	// DLQs
	SettlementDLQ = "game_settlement_dlq"

	// Redis Pub/Sub
	SettlementBroadcast = "game_settlements_broadcast"
)
