package roulette

const (
	operationOpen     = "round_open"
	operationBet      = "round_bet"
	operationResolve  = "round_resolve"
	operationCancel   = "round_cancel"
	operationTimeout  = "round_timeout"
	metadataKeyRound  = "round"
	metadataKeyChoice = "choice"
	metadataKeyResult = "outcome"
	metadataKeyRefund = "refund"
)
