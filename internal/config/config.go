// Package config aggregates the runtime settings of hausd and turns them into per-package configs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/lottery"
	"github.com/MarkoPoloResearchLab/haus/pkg/prizes"
	"github.com/MarkoPoloResearchLab/haus/pkg/reels"
	"github.com/MarkoPoloResearchLab/haus/pkg/roulette"
	"github.com/shopspring/decimal"
)

const (
	defaultDatabaseURL    = "sqlite://haus.db"
	defaultListenAddr     = ":8080"
	defaultAllowedOrigin  = "http://localhost:8000"
	defaultJWTIssuer      = "haus"
	defaultTimeZone       = "Europe/London"
	defaultRequestTimeout = 5 * time.Second
)

// Config aggregates runtime settings. Zero values are replaced by defaults in Validate.
type Config struct {
	DatabaseURL    string
	ListenAddr     string
	AllowedOrigins []string
	JWTSigningKey  string
	JWTIssuer      string
	TimeZone       string
	RequestTimeout time.Duration
	Debug          bool

	StarterAmount int64
	DailyAmount   int64
	WeeklyAmount  int64

	RoundDefaultSeconds int64
	RoundMinSeconds     int64
	RoundMaxSeconds     int64
	MaxStake            int64
	AllowMultipleBets   bool
	RedBlackMultiplier  string
	GreenMultiplier     string

	ReelEntryFee      int64
	ReelFloor         int64
	ReelDoublePayout  int64
	ReelTriplePercent string
	ReelMaxSpins      int

	TicketPrice   int64
	MaxTickets    int
	PrizeQuantity int
	ShopName      string
	ShopURL       string

	CoinsPerGift int64
	MinGifts     int
	MaxGifts     int
}

// Validate fills defaults and checks every package config can be built.
func (cfg *Config) Validate() error {
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.JWTIssuer = defaultIfEmpty(cfg.JWTIssuer, defaultJWTIssuer)
	cfg.TimeZone = defaultIfEmpty(cfg.TimeZone, defaultTimeZone)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	cfg.fillEconomyDefaults()

	if _, err := cfg.Ledger(); err != nil {
		return err
	}
	if _, err := cfg.Roulette(); err != nil {
		return err
	}
	if _, err := cfg.Reels(); err != nil {
		return err
	}
	if _, err := cfg.Lottery(); err != nil {
		return err
	}
	if _, err := cfg.Prizes(); err != nil {
		return err
	}
	return nil
}

func (cfg *Config) fillEconomyDefaults() {
	claims := ledger.DefaultClaimConfig()
	cfg.StarterAmount = defaultIfZero(cfg.StarterAmount, claims.StarterAmount.Int64())
	cfg.DailyAmount = defaultIfZero(cfg.DailyAmount, claims.DailyAmount.Int64())
	cfg.WeeklyAmount = defaultIfZero(cfg.WeeklyAmount, claims.WeeklyAmount.Int64())

	rounds := roulette.DefaultConfig()
	cfg.RoundDefaultSeconds = defaultIfZero(cfg.RoundDefaultSeconds, rounds.DefaultDurationSeconds)
	cfg.RoundMinSeconds = defaultIfZero(cfg.RoundMinSeconds, rounds.MinDurationSeconds)
	cfg.RoundMaxSeconds = defaultIfZero(cfg.RoundMaxSeconds, rounds.MaxDurationSeconds)
	cfg.MaxStake = defaultIfZero(cfg.MaxStake, rounds.MaxStake.Int64())
	cfg.RedBlackMultiplier = defaultIfEmpty(cfg.RedBlackMultiplier, rounds.RedBlackMultiplier.String())
	cfg.GreenMultiplier = defaultIfEmpty(cfg.GreenMultiplier, rounds.GreenMultiplier.String())

	pots := reels.DefaultConfig()
	cfg.ReelEntryFee = defaultIfZero(cfg.ReelEntryFee, pots.EntryFee.Int64())
	cfg.ReelFloor = defaultIfZero(cfg.ReelFloor, pots.Floor.Int64())
	cfg.ReelDoublePayout = defaultIfZero(cfg.ReelDoublePayout, pots.DoublePayout.Int64())
	cfg.ReelTriplePercent = defaultIfEmpty(cfg.ReelTriplePercent, pots.TriplePercent.String())
	cfg.ReelMaxSpins = int(defaultIfZero(int64(cfg.ReelMaxSpins), int64(pots.MaxSpins)))

	draws := lottery.DefaultConfig()
	cfg.TicketPrice = defaultIfZero(cfg.TicketPrice, draws.TicketPrice.Int64())
	cfg.MaxTickets = int(defaultIfZero(int64(cfg.MaxTickets), int64(draws.MaxTicketsPerPurchase)))
	cfg.PrizeQuantity = int(defaultIfZero(int64(cfg.PrizeQuantity), int64(draws.PrizeQuantity)))
	cfg.ShopName = defaultIfEmpty(cfg.ShopName, draws.ShopName)
	cfg.ShopURL = defaultIfEmpty(cfg.ShopURL, draws.ShopURL)

	conversion := prizes.DefaultConfig()
	cfg.CoinsPerGift = defaultIfZero(cfg.CoinsPerGift, conversion.CoinsPerGift.Int64())
	cfg.MinGifts = int(defaultIfZero(int64(cfg.MinGifts), int64(conversion.MinGifts)))
	cfg.MaxGifts = int(defaultIfZero(int64(cfg.MaxGifts), int64(conversion.MaxGifts)))
}

// Location loads the configured time zone.
func (cfg Config) Location() (*time.Location, error) {
	return ledger.LoadLocation(cfg.TimeZone)
}

// Ledger builds the claim amounts and calendar.
func (cfg Config) Ledger() (ledger.ClaimConfig, error) {
	location, err := cfg.Location()
	if err != nil {
		return ledger.ClaimConfig{}, err
	}
	claims := ledger.DefaultClaimConfig()
	claims.StarterAmount = ledger.Coins(cfg.StarterAmount)
	claims.DailyAmount = ledger.Coins(cfg.DailyAmount)
	claims.WeeklyAmount = ledger.Coins(cfg.WeeklyAmount)
	claims.Location = location
	if err := claims.Validate(); err != nil {
		return claims, err
	}
	return claims, nil
}

// Roulette builds the odds table and round limits.
func (cfg Config) Roulette() (roulette.Config, error) {
	redBlack, err := decimal.NewFromString(cfg.RedBlackMultiplier)
	if err != nil {
		return roulette.Config{}, fmt.Errorf("%w: red/black multiplier %q", roulette.ErrInvalidConfig, cfg.RedBlackMultiplier)
	}
	green, err := decimal.NewFromString(cfg.GreenMultiplier)
	if err != nil {
		return roulette.Config{}, fmt.Errorf("%w: green multiplier %q", roulette.ErrInvalidConfig, cfg.GreenMultiplier)
	}
	rounds := roulette.Config{
		MinDurationSeconds:     cfg.RoundMinSeconds,
		MaxDurationSeconds:     cfg.RoundMaxSeconds,
		DefaultDurationSeconds: cfg.RoundDefaultSeconds,
		MaxStake:               ledger.Coins(cfg.MaxStake),
		OneBetPerRound:         !cfg.AllowMultipleBets,
		RedBlackMultiplier:     redBlack,
		GreenMultiplier:        green,
	}
	if err := rounds.Validate(); err != nil {
		return rounds, err
	}
	return rounds, nil
}

// Reels builds the pot economics.
func (cfg Config) Reels() (reels.Config, error) {
	triple, err := decimal.NewFromString(cfg.ReelTriplePercent)
	if err != nil {
		return reels.Config{}, fmt.Errorf("%w: triple percentage %q", reels.ErrInvalidConfig, cfg.ReelTriplePercent)
	}
	pots := reels.DefaultConfig()
	pots.EntryFee = ledger.Coins(cfg.ReelEntryFee)
	pots.Floor = ledger.Coins(cfg.ReelFloor)
	pots.DoublePayout = ledger.Coins(cfg.ReelDoublePayout)
	pots.TriplePercent = triple
	pots.MaxSpins = cfg.ReelMaxSpins
	if err := pots.Validate(); err != nil {
		return pots, err
	}
	return pots, nil
}

// Lottery builds ticket pricing and the draw schedule.
func (cfg Config) Lottery() (lottery.Config, error) {
	location, err := cfg.Location()
	if err != nil {
		return lottery.Config{}, err
	}
	draws := lottery.DefaultConfig()
	draws.TicketPrice = ledger.Coins(cfg.TicketPrice)
	draws.MaxTicketsPerPurchase = cfg.MaxTickets
	draws.PrizeQuantity = cfg.PrizeQuantity
	draws.ShopName = cfg.ShopName
	draws.ShopURL = cfg.ShopURL
	draws.Location = location
	if err := draws.Validate(); err != nil {
		return draws, err
	}
	return draws, nil
}

// Prizes builds the conversion settings.
func (cfg Config) Prizes() (prizes.Config, error) {
	conversion := prizes.DefaultConfig()
	conversion.CoinsPerGift = ledger.Coins(cfg.CoinsPerGift)
	conversion.MinGifts = cfg.MinGifts
	conversion.MaxGifts = cfg.MaxGifts
	if err := conversion.Validate(); err != nil {
		return conversion, err
	}
	return conversion, nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func defaultIfZero(value int64, fallback int64) int64 {
	if value == 0 {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
