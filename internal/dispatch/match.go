package dispatch

import (
	"errors"
	"fmt"
	"sort"

	"github.com/communityaid/volunteer-dispatch/internal/geo"
	"go.uber.org/zap"
)

// ErrUnresolvedLocation signals that ranking could not proceed because the
// request itself has no usable coordinates. It is distinct from "zero
// volunteers matched" so the notifier can post a different message.
var ErrUnresolvedLocation = errors.New("request location could not be resolved")

// DefaultEnglish is assumed when a requester picked no language; it disables
// the language tie-break because most of the pool speaks it.
const DefaultEnglish = "English"

// RankedCandidate pairs a volunteer with its distance to the requester in
// miles. Ephemeral, recomputed every cycle, never persisted.
type RankedCandidate struct {
	Volunteer *Volunteer
	Distance  float64
}

// FilterSuitable returns the volunteers able to fulfill at least one of the
// given tasks. A volunteer needs to help with only one of several requested
// tasks to be listed. Pure filter, no ordering guarantee; disabled volunteers
// are excluded by the store query, not here.
func FilterSuitable(tasks []*Task, volunteers []*Volunteer) []*Volunteer {
	var suitable []*Volunteer
	for _, v := range volunteers {
		for _, task := range tasks {
			if task.CanBeFulfilledBy(v) {
				suitable = append(suitable, v)
				break
			}
		}
	}
	return suitable
}

// Ranker orders suitable volunteers by distance to the requester and keeps
// the closest ones.
type Ranker struct {
	resolver *Resolver
	logger   *zap.Logger

	// Limit caps the ranked list; LanguagePriority turns on the variant
	// ordering that puts fluent speakers of the requester's language first.
	Limit            int
	LanguagePriority bool
}

func NewRanker(resolver *Resolver, logger *zap.Logger, limit int) *Ranker {
	return &Ranker{
		resolver: resolver,
		logger:   logger,
		Limit:    limit,
	}
}

// Rank resolves each candidate's coordinates (skipping candidates whose
// geocoding fails), computes distances, sorts ascending and truncates.
// Candidates are processed strictly sequentially to respect geocoder rate
// limits.
func (r *Ranker) Rank(req *Request, candidates []*Volunteer) ([]*RankedCandidate, error) {
	reqCoords, err := req.Coordinates()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedLocation, err)
	}

	ranked := make([]*RankedCandidate, 0, len(candidates))
	for _, v := range candidates {
		volCoords, err := r.resolver.EnsureVolunteerCoords(v)
		if err != nil {
			// Skip for this cycle; the next poll retries.
			continue
		}

		ranked = append(ranked, &RankedCandidate{
			Volunteer: v,
			Distance:  geo.DistanceMiles(*volCoords, *reqCoords),
		})
	}

	language := requestedLanguage(req)
	sort.SliceStable(ranked, func(i, j int) bool {
		if r.LanguagePriority && language != DefaultEnglish {
			it, jt := languageTier(ranked[i].Volunteer, language), languageTier(ranked[j].Volunteer, language)
			if it != jt {
				return it < jt
			}
		}
		return ranked[i].Distance < ranked[j].Distance
	})

	if r.Limit > 0 && len(ranked) > r.Limit {
		ranked = ranked[:r.Limit]
	}

	for _, c := range ranked {
		r.logger.Info("closest volunteer",
			zap.String("full_name", c.Volunteer.FullName()),
			zap.String("distance", fmt.Sprintf("%.2f Mi", c.Distance)),
		)
	}

	return ranked, nil
}

// requestedLanguage picks the requester's first language, defaulting to
// English. Only the first language is used until multi-language search lands.
func requestedLanguage(req *Request) string {
	languages := req.Languages()
	if len(languages) == 0 {
		return DefaultEnglish
	}
	return languages[0]
}

// languageTier buckets a volunteer for the language-priority ordering: fluent
// speakers of the requested language come first, everyone else after. Distance
// decides within a tier. The store only records languages a volunteer is
// fluent in, so the fluent/non-fluent distinction collapses into two tiers.
func languageTier(v *Volunteer, language string) int {
	if v.SpeaksFluently(language) {
		return 0
	}
	return 1
}
