package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/communityaid/volunteer-dispatch/internal/airtable"
	"github.com/communityaid/volunteer-dispatch/internal/dispatch"
	"github.com/communityaid/volunteer-dispatch/internal/geo"
	"github.com/communityaid/volunteer-dispatch/internal/logger"
	"github.com/communityaid/volunteer-dispatch/internal/metrics"
	"github.com/communityaid/volunteer-dispatch/internal/secrets"
	"github.com/communityaid/volunteer-dispatch/internal/slack"
	"github.com/communityaid/volunteer-dispatch/internal/users"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the volunteer-dispatch polling loop",
	Run: func(_ *cobra.Command, _ []string) {
		run()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// run is the main command for the cli.
func run() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the volunteer-dispatch", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if err := validate(config); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	store, geocoder, err := buildClients(ctx, config, logger)
	if err != nil {
		logger.Fatal("building clients", zap.Error(err))
	}

	slackToken, err := secrets.Load(secrets.Source{
		Name: "slack token",
		File: config.Slack.TokenFile,
	})
	if err != nil {
		logger.Fatal(
			"loading slack token",
			zap.Error(err),
			zap.String("hint", "set SLACK_TOKEN_FILE environment variable or the 'slack.token-file' key in the configuration file"),
		)
	}

	notifier := slack.NewNotifier(
		slack.New(ctx, logger, slackToken),
		logger,
		config.Slack.Channel,
		config.Slack.AlertChannel,
		config.Airtable.RequestsViewURL,
		config.Airtable.VolunteersViewURL,
	)

	resolver := dispatch.NewResolver(store, geocoder, logger,
		config.Airtable.RequestsTable, config.Airtable.VolunteersTable, config.State)
	splitter := dispatch.NewSplitter(store, logger, config.Airtable.RequestsTable)
	ranker := dispatch.NewRanker(resolver, logger, config.Poll.Limit)
	ranker.LanguagePriority = config.Poll.LanguagePriority

	dispatcher := dispatch.New(store, resolver, splitter, ranker, notifier, logger, dispatch.Config{
		RequestsTable:   config.Airtable.RequestsTable,
		RequestsView:    config.Airtable.RequestsView,
		VolunteersTable: config.Airtable.VolunteersTable,
		VolunteersView:  config.Airtable.VolunteersView,
		DefaultStatus:   config.Poll.DefaultStatus,
		Interval:        config.Poll.Interval,
	})

	dispatcher.WithIdentityLinker(users.NewService(store, logger,
		config.Airtable.UsersTable, config.Airtable.UsersView))

	if m, err := metrics.New(nil); err != nil {
		logger.Warn("registering metrics", zap.Error(err))
	} else {
		dispatcher.WithRecorder(m)
	}

	go func() {
		if err := metrics.Serve(ctx, logger, config.HTTP.Addr); err != nil {
			logger.Error("health server failed", zap.Error(err))
		}
	}()

	if config.PreventProcessing {
		logger.Info("processing prevented by the prevent-processing flag")
		<-ctx.Done()
		return
	}

	logger.Info("volunteer dispatch started",
		zap.Duration("interval", config.Poll.Interval),
		zap.String("geocoder", geocoder.Provider()),
	)

	if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("dispatcher stopped", zap.Error(err))
	}
}

func validate(config *Config) error {
	if config == nil {
		return errors.New("config is required")
	}
	if config.Airtable == nil || config.Airtable.BaseID == "" {
		return errors.New("airtable.base-id is required")
	}
	if config.Slack == nil || config.Slack.Channel == "" {
		return errors.New("slack.channel is required")
	}
	if config.Geocoder == nil {
		return errors.New("geocoder configuration is required")
	}
	if config.Poll == nil {
		return errors.New("poll configuration is required")
	}

	return nil
}

// buildClients constructs the store and geocoder clients shared by the run
// and near commands.
func buildClients(ctx context.Context, config *Config, logger *zap.Logger) (*airtable.Client, *geo.Client, error) {
	airtableKey, err := secrets.Load(secrets.Source{
		Name: "airtable api key",
		File: config.Airtable.APIKeyFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set AIRTABLE_API_KEY_FILE or airtable.api-key-file)", err)
	}

	geocoderKey, err := secrets.Load(secrets.Source{
		Name: "geocoder api key",
		File: config.Geocoder.APIKeyFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set GEOCODER_API_KEY_FILE or geocoder.api-key-file)", err)
	}

	store := airtable.New(ctx, logger, airtableKey, config.Airtable.BaseID)
	geocoder := geo.New(ctx, logger, config.Geocoder.Provider, geocoderKey)

	return store, geocoder, nil
}
