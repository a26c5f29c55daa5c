package main

import (
	"log/slog"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/config"
	"github.com/totegamma/poapbot/internal/infrastructure/gateway"
	"github.com/totegamma/poapbot/internal/interaction"
)

func newRegisterCommand(opts *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "register-commands",
		Short: "Overwrite the slash command definitions on the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.Load(opts.configPath)
			if err != nil {
				return errors.Wrap(err, "load config")
			}

			// handlers are not invoked here, only their definitions are read
			registry, err := interaction.NewRegistry((&interaction.Commands{}).All()...)
			if err != nil {
				return err
			}

			if dryRun {
				return poapbot.JsonPrint(cmd.OutOrStdout(), "commands", registry.Definitions())
			}

			session, err := gateway.NewSession(conf.Bot.Token, conf.Bot.APIBase)
			if err != nil {
				return err
			}
			platform := gateway.NewPlatformGateway(session, conf.Bot.ApplicationID)
			if err := platform.RegisterCommands(cmd.Context(), registry.Definitions()); err != nil {
				return errors.Wrap(err, "register commands")
			}

			slog.Info("registered commands", slog.Any("commands", registry.Names()), slog.String("module", "main"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the definitions instead of registering them")
	return cmd
}
