package ledger

const (
	operationApply         = "apply"
	operationClaimDaily    = "claim_daily"
	operationClaimWeekly   = "claim_weekly"
	operationGrantStarter  = "grant_starter"
	operationManualAdjust  = "manual_adjust"
	metadataKeyPeriod      = "period"
	metadataKeyActor       = "actor"
	metadataKeyReason      = "reason"
	defaultListLimit       = 50
	maxListLimit           = 200
	defaultStarterAmount   = Coins(5000)
	defaultDailyAmount     = Coins(1800)
	defaultWeeklyAmount    = Coins(6000)
	defaultDailyCooldown   = secondsPerDay
	defaultClaimTimeZone   = "Europe/London"
	secondsPerDay          = int64(24 * 60 * 60)
	daysPerWeek            = 7
	isoWeekPeriodSeparator = "-"
)
