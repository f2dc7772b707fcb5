package criteria

import (
	"time"

	"chanplan/internal/models"
)

// Tokens derives the per-criterion category tokens an item would present to
// rule matching, keyed by criterion name. Timing is omitted because its
// token depends on the slot time; filter rules match by substring and are
// handled by their criterion directly.
func Tokens(content *models.Content, meta *models.ContentMeta, profile *models.Profile, now time.Time) map[string][]string {
	tokens := map[string][]string{
		NameType:     {string(content.Type)},
		NameDuration: {durationCategory(content.DurationMinutes())},
		NameBonus:    earnedCategories(content, meta, now),
	}

	strategy := []string{string(content.Type)}
	if meta != nil && len(meta.Genres) >= 2 {
		strategy = append(strategy, "variety")
	}
	if meta != nil && len(meta.Collections) > 0 {
		strategy = append(strategy, "marathon")
	}
	if profile != nil && containsType(profile.Strategies.FillerInsertion.Types, content.Type) {
		strategy = append(strategy, "filler")
	}
	tokens[NameStrategy] = strategy

	if meta != nil {
		if len(meta.Genres) > 0 {
			tokens[NameGenre] = lowerSet(meta.Genres)
		}
		if meta.AgeRating != "" {
			tokens[NameAge] = []string{normalizeAgeRating(meta.AgeRating)}
		}
		if meta.Rating > 0 {
			tokens[NameRating] = []string{ratingCategory(meta.Rating)}
		}
	}
	return tokens
}
