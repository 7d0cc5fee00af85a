package main

import (
	"fmt"
	"os"
	"strings"
	_ "time/tzdata"

	"github.com/MarkoPoloResearchLab/haus/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	envPrefix = "HAUS"

	flagDatabaseURL    = "database-url"
	flagTimeZone       = "time-zone"
	flagDebug          = "debug"
	flagListenAddr     = "listen-addr"
	flagAllowedOrigins = "allowed-origins"
	flagJWTSigningKey  = "jwt-signing-key"
	flagJWTIssuer      = "jwt-issuer"
	flagRequestTimeout = "request-timeout"

	configKeyDatabaseURL    = "database_url"
	configKeyTimeZone       = "time_zone"
	configKeyDebug          = "debug"
	configKeyListenAddr     = "listen_addr"
	configKeyAllowedOrigins = "allowed_origins"
	configKeyJWTSigningKey  = "jwt_signing_key"
	configKeyJWTIssuer      = "jwt_issuer"
	configKeyRequestTimeout = "request_timeout"
)

var boundFlags = map[string]string{
	configKeyDatabaseURL:    flagDatabaseURL,
	configKeyTimeZone:       flagTimeZone,
	configKeyDebug:          flagDebug,
	configKeyListenAddr:     flagListenAddr,
	configKeyAllowedOrigins: flagAllowedOrigins,
	configKeyJWTSigningKey:  flagJWTSigningKey,
	configKeyJWTIssuer:      flagJWTIssuer,
	configKeyRequestTimeout: flagRequestTimeout,
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "hausd: .env: %v\n", err)
	}
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hausd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	settings := viper.New()
	cfg := &config.Config{}
	cmd := &cobra.Command{
		Use:           "hausd",
		Short:         "House wallet, roulette, reels, lottery and prize desk",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, settings, cfg)
		},
	}

	cmd.PersistentFlags().String(flagDatabaseURL, "", "sqlite:// path or postgres:// connection string")
	cmd.PersistentFlags().String(flagTimeZone, "", "IANA time zone for weekly claims and draws")
	cmd.PersistentFlags().Bool(flagDebug, false, "development logging")

	cmd.AddCommand(
		newServeCommand(cfg),
		newMigrateCommand(cfg),
		newDrawCommand(cfg),
		newAuditCommand(cfg),
		newTokenCommand(cfg),
	)
	return cmd
}

// loadConfig resolves flags, HAUS_* environment variables and defaults into cfg.
func loadConfig(cmd *cobra.Command, settings *viper.Viper, cfg *config.Config) error {
	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	for key, flagName := range boundFlags {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := settings.BindPFlag(key, flag); err != nil {
			return err
		}
	}

	*cfg = config.Config{
		DatabaseURL:    settings.GetString(configKeyDatabaseURL),
		ListenAddr:     settings.GetString(configKeyListenAddr),
		AllowedOrigins: config.ParseAllowedOrigins(settings.GetString(configKeyAllowedOrigins)),
		JWTSigningKey:  settings.GetString(configKeyJWTSigningKey),
		JWTIssuer:      settings.GetString(configKeyJWTIssuer),
		TimeZone:       settings.GetString(configKeyTimeZone),
		RequestTimeout: settings.GetDuration(configKeyRequestTimeout),
		Debug:          settings.GetBool(configKeyDebug),

		StarterAmount: settings.GetInt64("starter_amount"),
		DailyAmount:   settings.GetInt64("daily_amount"),
		WeeklyAmount:  settings.GetInt64("weekly_amount"),

		RoundDefaultSeconds: settings.GetInt64("round_default_seconds"),
		RoundMinSeconds:     settings.GetInt64("round_min_seconds"),
		RoundMaxSeconds:     settings.GetInt64("round_max_seconds"),
		MaxStake:            settings.GetInt64("max_stake"),
		AllowMultipleBets:   settings.GetBool("allow_multiple_bets"),
		RedBlackMultiplier:  settings.GetString("red_black_multiplier"),
		GreenMultiplier:     settings.GetString("green_multiplier"),

		ReelEntryFee:      settings.GetInt64("reel_entry_fee"),
		ReelFloor:         settings.GetInt64("reel_floor"),
		ReelDoublePayout:  settings.GetInt64("reel_double_payout"),
		ReelTriplePercent: settings.GetString("reel_triple_percent"),
		ReelMaxSpins:      settings.GetInt("reel_max_spins"),

		TicketPrice:   settings.GetInt64("ticket_price"),
		MaxTickets:    settings.GetInt("max_tickets"),
		PrizeQuantity: settings.GetInt("prize_quantity"),
		ShopName:      settings.GetString("shop_name"),
		ShopURL:       settings.GetString("shop_url"),

		CoinsPerGift: settings.GetInt64("coins_per_gift"),
		MinGifts:     settings.GetInt("min_gifts"),
		MaxGifts:     settings.GetInt("max_gifts"),
	}
	return cfg.Validate()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
