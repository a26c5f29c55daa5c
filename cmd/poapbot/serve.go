package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/sync/errgroup"

	"github.com/totegamma/poapbot/client"
	"github.com/totegamma/poapbot/internal/config"
	"github.com/totegamma/poapbot/internal/infrastructure/bus"
	"github.com/totegamma/poapbot/internal/infrastructure/database"
	"github.com/totegamma/poapbot/internal/infrastructure/ens"
	"github.com/totegamma/poapbot/internal/infrastructure/gateway"
	"github.com/totegamma/poapbot/internal/infrastructure/repository"
	"github.com/totegamma/poapbot/internal/interaction"
	"github.com/totegamma/poapbot/internal/present/rest"
	authmw "github.com/totegamma/poapbot/internal/present/rest/middleware"
	"github.com/totegamma/poapbot/internal/service"
	"github.com/totegamma/poapbot/internal/usecase"
)

var version = "dev"

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the interaction endpoint and the trigger consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.Load(opts.configPath)
			if err != nil {
				return errors.Wrap(err, "load config")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, conf)
		},
	}
}

func serve(ctx context.Context, conf config.Config) error {
	if conf.Server.EnableTrace {
		shutdown, err := setupTraceProvider(ctx, conf.Server.TraceEndpoint, version)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("trace provider shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		return errors.Wrap(err, "connect database")
	}
	if err := database.Migrate(db); err != nil {
		return errors.Wrap(err, "migrate database")
	}

	var triggerBus bus.Bus = bus.NewMemoryBus()
	if conf.Server.RedisAddr != "" {
		rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer rdb.Close()
		triggerBus = bus.NewRedisBus(rdb)
	}

	issuance := client.New(client.Config{
		BaseURL:      conf.Poap.BaseURL,
		AuthURL:      conf.Poap.AuthURL,
		Audience:     conf.Poap.Audience,
		APIKey:       conf.Poap.APIKey,
		ClientID:     conf.Poap.ClientID,
		ClientSecret: conf.Poap.ClientSecret,
		Timeout:      conf.Poap.Timeout,
	})

	// address-only mode unless a provider answers
	var names usecase.NameService
	nameService, err := ens.Dial(ctx, conf.ENS.Providers, conf.ENS.Timeout)
	if err != nil {
		slog.Warn("ENS unavailable, running in address-only mode", slog.String("error", err.Error()), slog.String("module", "main"))
	} else {
		names = nameService
	}

	session, err := gateway.NewSession(conf.Bot.Token, conf.Bot.APIBase)
	if err != nil {
		return err
	}
	platform := gateway.NewPlatformGateway(session, conf.Bot.ApplicationID)

	walletRepo := repository.NewWalletRepository(db)
	distributionRepo := repository.NewDistributionRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	gateRepo := repository.NewGateRepository(db)
	eventCacheRepo := repository.NewEventCacheRepository(db)

	identity := usecase.NewIdentityUsecase(names, conf.ENS.Timeout)
	badges := usecase.NewBadgeUsecase(eventCacheRepo, issuance)
	wallets := usecase.NewWalletUsecase(walletRepo, identity, triggerBus)
	distributions := usecase.NewDistributionUsecase(walletRepo, distributionRepo, issuance, badges, triggerBus)
	gates := usecase.NewGateUsecase(gateRepo, badges)
	rules := usecase.NewRuleUsecase(ruleRepo, badges)
	engine := usecase.NewEngineUsecase(ruleRepo, walletRepo, distributionRepo, issuance)
	reconciler := usecase.NewReconcilerUsecase(walletRepo, gateRepo, issuance, platform)

	commands := &interaction.Commands{
		Wallets:     wallets,
		Identities:  identity,
		Badges:      badges,
		Distributor: distributions,
		Gates:       gates,
		Rules:       rules,
		Targets:     platform,
		Messenger:   platform,
	}
	registry, err := interaction.NewRegistry(commands.All()...)
	if err != nil {
		return errors.Wrap(err, "build command registry")
	}
	verifier, err := interaction.NewVerifier(conf.Bot.PublicKey)
	if err != nil {
		return errors.Wrap(err, "load interaction public key")
	}
	interactions := interaction.NewGateway(verifier, registry, platform, conf.Server.AckDeadline)

	triggers := service.NewTriggerService(triggerBus, engine, reconciler, badges, platform)

	e := echo.New()
	e.HideBanner = true
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware(serviceName))
	}
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	handler := rest.NewHandler(interactions, triggerBus)
	handler.RegisterRoutes(e, authmw.NewAuthMiddleware(conf.Server.RelaySecret, conf.Server.RealtimeToken))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := triggers.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if conf.Bot.DisableGateway || conf.Bot.Token == "" {
		slog.Info("gateway listener disabled, relay only", slog.String("module", "main"))
	} else {
		listener := gateway.NewListener(session, triggerBus)
		group.Go(func() error {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	group.Go(func() error {
		slog.Info("listening", slog.String("addr", conf.Server.Listen), slog.String("module", "main"))
		if err := e.Start(conf.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := e.Shutdown(shutdownCtx)
		interactions.Wait()
		return err
	})

	return group.Wait()
}
