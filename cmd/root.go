package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "volunteer-dispatch"
)

type Config struct {
	// State is appended to request addresses before geocoding.
	State             string `mapstructure:"state"`
	PreventProcessing bool   `mapstructure:"prevent-processing"`

	Poll     *PollConfig     `mapstructure:"poll"`
	Airtable *AirtableConfig `mapstructure:"airtable"`
	Geocoder *GeocoderConfig `mapstructure:"geocoder"`
	Slack    *SlackConfig    `mapstructure:"slack"`
	HTTP     *HTTPConfig     `mapstructure:"http"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// Limit caps the ranked volunteer list per request.
	Limit            int    `mapstructure:"limit"`
	LanguagePriority bool   `mapstructure:"language-priority"`
	DefaultStatus    string `mapstructure:"default-status"`
}

type AirtableConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseID     string `mapstructure:"base-id"`

	RequestsTable   string `mapstructure:"requests-table"`
	RequestsView    string `mapstructure:"requests-view"`
	RequestsViewURL string `mapstructure:"requests-view-url"`

	VolunteersTable   string `mapstructure:"volunteers-table"`
	VolunteersView    string `mapstructure:"volunteers-view"`
	VolunteersViewURL string `mapstructure:"volunteers-view-url"`

	UsersTable string `mapstructure:"users-table"`
	UsersView  string `mapstructure:"users-view"`
}

type GeocoderConfig struct {
	Provider   string `mapstructure:"provider"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type SlackConfig struct {
	TokenFile    string `mapstructure:"token-file"`
	Channel      string `mapstructure:"channel"`
	AlertChannel string `mapstructure:"alert-channel"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "volunteer-dispatch matches community help requests to nearby volunteers and posts dispatches to Slack",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("airtable.api-key-file", "AIRTABLE_API_KEY_FILE"); err != nil {
		log.Fatalf("binding AIRTABLE_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("geocoder.api-key-file", "GEOCODER_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEOCODER_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("slack.token-file", "SLACK_TOKEN_FILE"); err != nil {
		log.Fatalf("binding SLACK_TOKEN_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is volunteer-dispatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the run and near commands. If there is no
	// config, we can skip initialization.
	if runCmd.CalledAs() == "" && nearCmd.CalledAs() == "" {
		return
	}

	viper.SetDefault("state", "NY")
	viper.SetDefault("poll.interval", 15*time.Second)
	viper.SetDefault("poll.limit", 10)
	viper.SetDefault("poll.default-status", "Needs assigning")
	viper.SetDefault("airtable.requests-table", "Requests")
	viper.SetDefault("airtable.requests-view", "Grid view")
	viper.SetDefault("airtable.volunteers-table", "Volunteers")
	viper.SetDefault("airtable.volunteers-view", "Grid view")
	viper.SetDefault("airtable.users-table", "Users")
	viper.SetDefault("airtable.users-view", "Grid view")
	viper.SetDefault("http.addr", ":3000")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
