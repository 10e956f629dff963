package cmd

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/communityaid/volunteer-dispatch/internal/airtable"
	"github.com/communityaid/volunteer-dispatch/internal/dispatch"
	"github.com/communityaid/volunteer-dispatch/internal/geo"
	"github.com/communityaid/volunteer-dispatch/internal/logger"
	"github.com/communityaid/volunteer-dispatch/internal/phone"
)

var nearCmd = &cobra.Command{
	Use:   "near",
	Short: "List the volunteers closest to an address",
	Run: func(_ *cobra.Command, _ []string) {
		near()
	},
}

func init() {
	rootCmd.AddCommand(nearCmd)
}

// near is an interactive helper for coordinators: prompt for an address and
// print the closest volunteers with cached coordinates, regardless of task.
func near() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if err := validate(config); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	store, geocoder, err := buildClients(ctx, config, logger)
	if err != nil {
		logger.Fatal("building clients", zap.Error(err))
	}

	prompt := promptui.Prompt{Label: "Address"}
	address, err := prompt.Run()
	if err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}

	coords, err := geocoder.Geocode(address)
	if err != nil {
		logger.Fatal("geocoding address", zap.Error(err))
	}

	nearby, err := volunteersNear(store, logger, config, coords)
	if err != nil {
		logger.Fatal("listing volunteers", zap.Error(err))
	}

	if len(nearby) == 0 {
		fmt.Println("No volunteers with known coordinates found.")
		return
	}

	for _, c := range nearby {
		fmt.Printf("%s - %s - %.2f Mi.\n",
			c.Volunteer.FullName(),
			phone.DisplayNumber(c.Volunteer.PhoneNumber()),
			c.Distance,
		)
	}
}

// volunteersNear ranks active volunteers by distance to the given point using
// only cached coordinates. Volunteers never geocoded before are skipped
// rather than spending metered geocoder calls on an ad-hoc lookup.
func volunteersNear(store *airtable.Client, logger *zap.Logger, config *Config, coords *geo.Coordinates) ([]*dispatch.RankedCandidate, error) {
	records, err := store.ListRecords(config.Airtable.VolunteersTable, airtable.SelectOptions{
		View:            config.Airtable.VolunteersView,
		FilterByFormula: fmt.Sprintf("{%s} != TRUE()", dispatch.VolFieldDisabled),
	})
	if err != nil {
		return nil, err
	}

	var nearby []*dispatch.RankedCandidate
	for _, rec := range records {
		v := dispatch.NewVolunteer(rec)

		volCoords, err := v.Coordinates()
		if err != nil {
			logger.Debug("skipping volunteer without coordinates", zap.String("full_name", v.FullName()))
			continue
		}

		nearby = append(nearby, &dispatch.RankedCandidate{
			Volunteer: v,
			Distance:  geo.DistanceMiles(*volCoords, *coords),
		})
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].Distance < nearby[j].Distance
	})

	if config.Poll.Limit > 0 && len(nearby) > config.Poll.Limit {
		nearby = nearby[:config.Poll.Limit]
	}

	return nearby, nil
}
