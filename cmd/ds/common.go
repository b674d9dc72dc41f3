package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/zulandar/dealscout/internal/agent"
	"github.com/zulandar/dealscout/internal/config"
	"github.com/zulandar/dealscout/internal/db"
	"github.com/zulandar/dealscout/internal/notify"
	"github.com/zulandar/dealscout/internal/notify/discord"
	"github.com/zulandar/dealscout/internal/notify/slack"
	"github.com/zulandar/dealscout/internal/scout"
	"gorm.io/gorm"
)

const defaultConfigPath = "dealscout.yaml"

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to DealScout config file")
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// buildService wires the negotiation service from cfg. Log output goes to
// stderr so command output stays clean.
func buildService(cmd *cobra.Command, cfg *config.Config, gormDB *gorm.DB, record bool) (*scout.Service, error) {
	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

	buyer, seller, err := agent.FromConfig(cfg.Provider, logger)
	if err != nil {
		return nil, err
	}
	notifier, err := buildNotifier(cfg.Notify)
	if err != nil {
		return nil, err
	}

	opts := cfg.Negotiation.Options()
	opts.Logger = logger
	return &scout.Service{
		DB:          gormDB,
		Options:     opts,
		Buyer:       buyer,
		Seller:      seller,
		Notifier:    notifier,
		Logger:      logger,
		Parallelism: cfg.Negotiation.Parallelism,
		Record:      record,
	}, nil
}

// buildNotifier returns the configured chat notifiers, or nil when none are
// enabled.
func buildNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	var multi notify.Multi
	if cfg.Slack.Enabled() {
		n, err := slack.New(slack.Opts{BotToken: cfg.Slack.Token(), ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
	}
	if cfg.Discord.Enabled() {
		n, err := discord.New(discord.Opts{BotToken: cfg.Discord.Token(), ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
	}
	if len(multi) == 0 {
		return nil, nil
	}
	return multi, nil
}
