package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/haus/internal/config"
	"github.com/MarkoPoloResearchLab/haus/internal/httpapi"
	"github.com/MarkoPoloResearchLab/haus/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/haus/internal/zaplog"
	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/lottery"
	"github.com/MarkoPoloResearchLab/haus/pkg/prizes"
	"github.com/MarkoPoloResearchLab/haus/pkg/reels"
	"github.com/MarkoPoloResearchLab/haus/pkg/roulette"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	flagSubject = "subject"
	flagRoles   = "roles"
	flagTTL     = "ttl"
)

// runtime holds an open database and the services built on it.
type runtime struct {
	logger   *zap.Logger
	services httpapi.Services
	cleanup  func()
}

func newRuntime(ctx context.Context, cfg *config.Config, timers bool) (*runtime, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	db, closeDB, driver, err := openDatabase(ctx, cfg.DatabaseURL, cfg.Debug)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("database open: %w", err)
	}
	current := &runtime{logger: logger}
	current.cleanup = func() {
		_ = closeDB()
		_ = logger.Sync()
	}
	if err := prepareSchema(ctx, db, driver, logger); err != nil {
		current.cleanup()
		return nil, err
	}
	services, err := buildServices(gormstore.New(db), cfg, logger, timers)
	if err != nil {
		current.cleanup()
		return nil, err
	}
	current.services = services
	return current, nil
}

func (current *runtime) close() {
	if current.services.Roulette != nil {
		current.services.Roulette.Close()
	}
	current.cleanup()
}

func buildServices(store *gormstore.Store, cfg *config.Config, logger *zap.Logger, timers bool) (httpapi.Services, error) {
	operationLogger := zaplog.New(logger)
	claims, err := cfg.Ledger()
	if err != nil {
		return httpapi.Services{}, err
	}
	rounds, err := cfg.Roulette()
	if err != nil {
		return httpapi.Services{}, err
	}
	pots, err := cfg.Reels()
	if err != nil {
		return httpapi.Services{}, err
	}
	draws, err := cfg.Lottery()
	if err != nil {
		return httpapi.Services{}, err
	}
	conversion, err := cfg.Prizes()
	if err != nil {
		return httpapi.Services{}, err
	}

	clock := func() int64 { return time.Now().UTC().Unix() }
	wallet, err := ledger.NewService(store, clock, ledger.WithClaimConfig(claims), ledger.WithOperationLogger(operationLogger))
	if err != nil {
		return httpapi.Services{}, fmt.Errorf("ledger service init: %w", err)
	}
	rouletteOptions := []roulette.ServiceOption{roulette.WithConfig(rounds), roulette.WithOperationLogger(operationLogger)}
	if !timers {
		rouletteOptions = append(rouletteOptions, roulette.WithoutTimers())
	}
	rouletteService, err := roulette.NewService(store.Rounds(), wallet, rouletteOptions...)
	if err != nil {
		return httpapi.Services{}, fmt.Errorf("roulette service init: %w", err)
	}
	reelService, err := reels.NewService(store.Reels(), wallet, reels.WithConfig(pots), reels.WithOperationLogger(operationLogger))
	if err != nil {
		rouletteService.Close()
		return httpapi.Services{}, fmt.Errorf("reel service init: %w", err)
	}
	lotteryService, err := lottery.NewService(store.Lottery(), wallet, lottery.WithConfig(draws), lottery.WithOperationLogger(operationLogger))
	if err != nil {
		rouletteService.Close()
		return httpapi.Services{}, fmt.Errorf("lottery service init: %w", err)
	}
	prizeService, err := prizes.NewService(store.Prizes(), wallet, prizes.WithConfig(conversion), prizes.WithOperationLogger(operationLogger))
	if err != nil {
		rouletteService.Close()
		return httpapi.Services{}, fmt.Errorf("prize service init: %w", err)
	}
	return httpapi.Services{
		Wallet:   wallet,
		Roulette: rouletteService,
		Reels:    reelService,
		Lottery:  lotteryService,
		Prizes:   prizeService,
	}, nil
}

func newServeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	cmd.Flags().String(flagListenAddr, "", "HTTP listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "comma separated CORS origins")
	cmd.Flags().String(flagJWTSigningKey, "", "HS256 key for bearer tokens")
	cmd.Flags().String(flagJWTIssuer, "", "expected bearer token issuer")
	cmd.Flags().Duration(flagRequestTimeout, 0, "per request timeout")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config) error {
	current, err := newRuntime(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer current.close()

	authenticator, err := httpapi.NewAuthenticator(cfg.JWTSigningKey, cfg.JWTIssuer, nil)
	if err != nil {
		return err
	}
	recovered, err := current.services.Roulette.RecoverOpenRounds(ctx)
	if err != nil {
		return fmt.Errorf("recover open rounds: %w", err)
	}
	current.logger.Info("open rounds recovered", zap.Int("count", recovered))

	return httpapi.Run(ctx, httpapi.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}, current.services, authenticator, current.logger)
}

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, driver, err := openDatabase(cmd.Context(), cfg.DatabaseURL, cfg.Debug)
			if err != nil {
				return fmt.Errorf("database open: %w", err)
			}
			defer func() { _ = closeDB() }()
			if err := gormstore.Migrate(cmd.Context(), db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", driver)
			return nil
		},
	}
}

func newDrawCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "draw [period]",
		Short: "Draw the lottery winner of a week (default: current week)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := newRuntime(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer current.close()
			period := ""
			if len(args) == 1 {
				period = args[0]
			}
			draw, err := current.services.Lottery.Draw(cmd.Context(), period)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "period %s: winner %s (ticket %s of %d, seed %s, prize %s)\n",
				draw.Period, draw.WinnerAccountID, draw.TicketID, draw.TicketCount, draw.Seed, draw.PrizeID)
			return nil
		},
	}
}

func newAuditCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "audit account...",
		Short: "Check stored balances against the transaction log",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := newRuntime(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer current.close()
			inconsistent := 0
			for _, raw := range args {
				accountID, err := ledger.NewAccountID(raw)
				if err != nil {
					return err
				}
				reconciliation, err := current.services.Wallet.Reconcile(cmd.Context(), accountID)
				if err != nil {
					return fmt.Errorf("audit %s: %w", raw, err)
				}
				verdict := "ok"
				if !reconciliation.Consistent {
					verdict = "MISMATCH"
					inconsistent++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s balance=%d transactions=%d %s\n",
					accountID, reconciliation.Balance, reconciliation.TransactionSum, verdict)
			}
			if inconsistent > 0 {
				return fmt.Errorf("%w: %d account(s)", ledger.ErrUnbalancedAccountRecord, inconsistent)
			}
			return nil
		},
	}
}

func newTokenCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the bot or an operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString(flagSubject)
			roles, _ := cmd.Flags().GetStringSlice(flagRoles)
			ttl, _ := cmd.Flags().GetDuration(flagTTL)
			authenticator, err := httpapi.NewAuthenticator(cfg.JWTSigningKey, cfg.JWTIssuer, nil)
			if err != nil {
				return err
			}
			token, err := authenticator.Issue(subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String(flagJWTSigningKey, "", "HS256 key for bearer tokens")
	cmd.Flags().String(flagJWTIssuer, "", "bearer token issuer")
	cmd.Flags().String(flagSubject, "bot", "token subject (operator account for admin tokens)")
	cmd.Flags().StringSlice(flagRoles, []string{httpapi.RoleService}, "granted roles")
	cmd.Flags().Duration(flagTTL, 30*24*time.Hour, "token lifetime")
	return cmd
}
