package generator

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanplan/internal/criteria"
	"chanplan/internal/models"
)

func movieItem(id, title string, minutes int, genres ...string) models.PoolItem {
	item := models.PoolItem{
		Content: models.Content{
			ID:             id,
			Title:          title,
			Type:           models.ContentTypeMovie,
			DurationMillis: int64(minutes) * 60 * 1000,
		},
	}
	if len(genres) > 0 {
		item.Meta = &models.ContentMeta{Genres: genres}
	}
	return item
}

func allDayProfile(name string) *models.Profile {
	return &models.Profile{
		ID:   1,
		Name: name,
		TimeBlocks: []models.TimeBlock{
			{Name: "all-day", Start: "00:00", End: "00:00"},
		},
	}
}

func programIDs(result *models.ProgrammingResult) []string {
	ids := make([]string, len(result.Programs))
	for i, p := range result.Programs {
		ids[i] = p.Content.ID
	}
	return ids
}

func TestRunSingleBlockDeterministic(t *testing.T) {
	profile := &models.Profile{
		ID:   1,
		Name: "s1",
		TimeBlocks: []models.TimeBlock{
			{Name: "day", Start: "00:00", End: "23:59"},
		},
		ScoringWeights: map[string]float64{
			criteria.NameType: 20, criteria.NameGenre: 20, criteria.NameDuration: 10,
			criteria.NameTiming: 0, criteria.NameStrategy: 0, criteria.NameAge: 0,
			criteria.NameRating: 0, criteria.NameFilter: 0, criteria.NameBonus: 0,
		},
	}
	profile.MandatoryForbidden.Forbidden.Genres = []string{"horror"}

	pool := []models.PoolItem{
		movieItem("m1", "First", 90, "comedy"),
		movieItem("m2", "Second", 90, "drama"),
		movieItem("m3", "Scary", 100, "horror"),
		movieItem("m4", "Fourth", 110, "action"),
		movieItem("m5", "Fifth", 120, "comedy"),
		movieItem("m6", "Sixth", 60, "family"),
	}

	result, err := New().Run(context.Background(), Params{
		Profile:       profile,
		Pool:          pool,
		Start:         time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		DurationHours: 24,
		Iterations:    1,
		Randomness:    0,
		Seed:          1,
		Location:      time.UTC,
	})
	require.NoError(t, err)

	require.Len(t, result.Programs, 5)
	assert.InDelta(t, 470.0, result.TotalDurationMinutes(), 0.001)
	assert.Equal(t, 0, result.ForbiddenCount)
	assert.Equal(t, int64(1), result.Seed)
	assert.Equal(t, 1, result.Iteration)

	for i, p := range result.Programs {
		assert.Equal(t, i, p.Position)
		assert.NotEqual(t, "m3", p.Content.ID, "forbidden genre must never schedule")
		if i > 0 {
			assert.True(t, p.StartTime.Equal(result.Programs[i-1].EndTime),
				"programs must be contiguous")
		}
	}
	assert.True(t, result.Programs[0].StartTime.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)))
}

func TestRunOvernightBlock(t *testing.T) {
	profile := &models.Profile{
		ID:   2,
		Name: "overnight",
		TimeBlocks: []models.TimeBlock{
			{Name: "night", Start: "22:00", End: "02:00"},
		},
	}
	pool := []models.PoolItem{
		movieItem("m1", "One", 60, "drama"),
		movieItem("m2", "Two", 60, "drama"),
		movieItem("m3", "Three", 60, "drama"),
		movieItem("m4", "Four", 60, "drama"),
		movieItem("m5", "Five", 60, "drama"),
	}

	result, err := New().Run(context.Background(), Params{
		Profile:       profile,
		Pool:          pool,
		Start:         time.Date(2025, 1, 10, 22, 0, 0, 0, time.UTC),
		DurationHours: 24,
		Iterations:    1,
		Randomness:    0,
		Seed:          7,
		Location:      time.UTC,
	})
	require.NoError(t, err)
	require.Len(t, result.Programs, 4)

	for _, p := range result.Programs {
		assert.Equal(t, "night", p.BlockName)
	}
	assert.Equal(t, 11, result.Programs[2].StartTime.Day(), "third program crosses midnight")
	assert.Equal(t, 0, result.Programs[2].StartTime.Hour())

	timingSkipped := func(i int) bool {
		cr := result.Programs[i].Score.Criteria[criteria.NameTiming]
		require.NotNil(t, cr)
		return cr.Skipped
	}
	assert.False(t, timingSkipped(0), "first of block keeps a timing score")
	assert.True(t, timingSkipped(1))
	assert.True(t, timingSkipped(2))
	assert.False(t, timingSkipped(3), "last of block keeps a timing score")
}

func TestRunReplaceForbidden(t *testing.T) {
	profile := &models.Profile{
		ID:   3,
		Name: "replace",
		TimeBlocks: []models.TimeBlock{
			{
				Name: "all-day", Start: "00:00", End: "00:00",
				Criteria: models.BlockCriteria{
					ForbiddenGenres: []string{"horror"},
					ExcludedTypes:   []models.ContentType{models.ContentTypeTrailer},
				},
			},
		},
		ScoringWeights: map[string]float64{
			criteria.NameType: 100, criteria.NameGenre: 0, criteria.NameDuration: 0,
			criteria.NameTiming: 0, criteria.NameStrategy: 0, criteria.NameAge: 0,
			criteria.NameRating: 0, criteria.NameFilter: 0, criteria.NameBonus: 0,
		},
	}

	trailer := movieItem("m-c", "Coming Soon", 30)
	trailer.Content.Type = models.ContentTypeTrailer
	pool := []models.PoolItem{
		movieItem("m-a", "Safe Pick", 60, "comedy"),
		movieItem("m-h", "Night Terrors", 60, "horror"),
		trailer,
	}

	result, err := New().Run(context.Background(), Params{
		Profile:          profile,
		Pool:             pool,
		Start:            time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		DurationHours:    2,
		Iterations:       2,
		Randomness:       0,
		Seed:             3,
		ReplaceForbidden: true,
		Location:         time.UTC,
	})
	require.NoError(t, err)
	require.Len(t, result.Programs, 2)

	assert.Equal(t, "m-a", result.Programs[0].Content.ID)

	swapped := result.Programs[1]
	assert.Equal(t, "m-c", swapped.Content.ID)
	assert.True(t, swapped.IsReplacement)
	assert.Equal(t, models.ReplacementForbidden, swapped.ReplacementReason)
	assert.Equal(t, "Night Terrors", swapped.ReplacedTitle)

	assert.Equal(t, 0, result.ForbiddenCount)
	assert.Equal(t, 1, result.ReplacedCount)
	assert.True(t, result.IsOptimized)
	assert.Equal(t, 1, result.OriginalBestIteration)
	assert.Equal(t, 3, result.Iteration)
	require.NotEmpty(t, result.AllIterations)
	assert.Equal(t, "forbidden_replaced", result.AllIterations[0].Label)
}

func TestRunDeterminism(t *testing.T) {
	profile := &models.Profile{
		ID:   4,
		Name: "det",
		TimeBlocks: []models.TimeBlock{
			{
				Name: "prime", Start: "00:00", End: "00:00",
				Criteria: models.BlockCriteria{PreferredGenres: []string{"comedy"}},
			},
		},
	}
	pool := []models.PoolItem{
		movieItem("a", "Alpha", 45, "comedy"),
		movieItem("b", "Beta", 60, "drama"),
		movieItem("c", "Gamma", 90, "action"),
		movieItem("d", "Delta", 120, "comedy", "family"),
		movieItem("e", "Epsilon", 75, "drama", "crime"),
		movieItem("f", "Zeta", 100, "scifi"),
		movieItem("g", "Eta", 50, "comedy"),
		movieItem("h", "Theta", 140, "documentary"),
	}
	pool[1].Meta.Rating = 7.8
	pool[2].Meta.Rating = 6.2
	pool[5].Meta.Rating = 8.4

	params := Params{
		Profile:       profile,
		Pool:          pool,
		Start:         time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
		DurationHours: 8,
		Iterations:    5,
		Randomness:    0.3,
		Seed:          42,
		Location:      time.UTC,
	}

	first, err := New().Run(context.Background(), params)
	require.NoError(t, err)
	second, err := New().Run(context.Background(), params)
	require.NoError(t, err)

	if diff := cmp.Diff(programIDs(first), programIDs(second)); diff != "" {
		t.Fatalf("program sequence mismatch (-first +second):\n%s", diff)
	}
	seen := make(map[string]bool)
	for i := range first.Programs {
		assert.InDelta(t, first.Programs[i].TotalScore(), second.Programs[i].TotalScore(), 1e-9)
		assert.False(t, seen[first.Programs[i].Content.ID], "duplicate content in one schedule")
		seen[first.Programs[i].Content.ID] = true
	}
	assert.Equal(t, first.Iteration, second.Iteration)
	assert.InDelta(t, first.TotalScore, second.TotalScore, 1e-9)
}

func TestRunReservesMandatoryContent(t *testing.T) {
	profile := allDayProfile("reserved")
	profile.MandatoryForbidden.Mandatory.ContentIDs = []string{"m2"}

	pool := []models.PoolItem{
		movieItem("m1", "One", 60, "drama"),
		movieItem("m2", "Two", 60, "drama"),
		movieItem("m3", "Three", 60, "drama"),
	}

	result, err := New().Run(context.Background(), Params{
		Profile:       profile,
		Pool:          pool,
		Start:         time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		DurationHours: 4,
		Iterations:    1,
		Randomness:    0,
		Seed:          1,
		Location:      time.UTC,
	})
	require.NoError(t, err)
	require.Len(t, result.Programs, 2)
	for _, p := range result.Programs {
		assert.NotEqual(t, "m2", p.Content.ID)
	}
}

func TestRunFillsExactDuration(t *testing.T) {
	profile := allDayProfile("fill")
	pool := make([]models.PoolItem, 0, 6)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		pool = append(pool, movieItem(id, "Movie "+id, 45, "drama"))
	}

	result, err := New().Run(context.Background(), Params{
		Profile:       profile,
		Pool:          pool,
		Start:         time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC),
		DurationHours: 3,
		Iterations:    1,
		Randomness:    0,
		Seed:          1,
		Location:      time.UTC,
	})
	require.NoError(t, err)
	require.Len(t, result.Programs, 4)
	assert.InDelta(t, 180.0, result.TotalDurationMinutes(), 0.001)
	last := result.Programs[len(result.Programs)-1]
	assert.True(t, result.TotalDurationMinutes() >= 180-last.DurationMinutes())
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Run(ctx, Params{
		Profile:       allDayProfile("cancel"),
		Pool:          []models.PoolItem{movieItem("a", "A", 60, "drama")},
		Start:         time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		DurationHours: 2,
		Iterations:    3,
		Location:      time.UTC,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParamsValidate(t *testing.T) {
	valid := func() Params {
		return Params{
			Profile:       allDayProfile("v"),
			Pool:          []models.PoolItem{movieItem("a", "A", 60, "drama")},
			Start:         time.Now(),
			DurationHours: 2,
			Iterations:    1,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"nil profile", func(p *Params) { p.Profile = nil }},
		{"no blocks", func(p *Params) { p.Profile.TimeBlocks = nil }},
		{"empty pool", func(p *Params) { p.Pool = nil }},
		{"zero iterations", func(p *Params) { p.Iterations = 0 }},
		{"randomness above one", func(p *Params) { p.Randomness = 1.5 }},
		{"negative randomness", func(p *Params) { p.Randomness = -0.1 }},
		{"zero duration", func(p *Params) { p.DurationHours = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(&p)
			_, err := New().Run(context.Background(), p)
			assert.Error(t, err)
		})
	}

	p := valid()
	_, err := New().Run(context.Background(), p)
	assert.NoError(t, err)
}

func TestRunProgressCallback(t *testing.T) {
	var stages []string
	_, err := New().Run(context.Background(), Params{
		Profile:       allDayProfile("progress"),
		Pool:          []models.PoolItem{movieItem("a", "A", 60, "drama"), movieItem("b", "B", 60, "drama")},
		Start:         time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		DurationHours: 2,
		Iterations:    3,
		Seed:          5,
		Location:      time.UTC,
		OnProgress:    func(p Progress) { stages = append(stages, p.Stage) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{StageIteration, StageIteration, StageIteration}, stages)
}

func candidateSet(scores ...float64) []scoredCandidate {
	out := make([]scoredCandidate, 0, len(scores))
	for i, s := range scores {
		out = append(out, scoredCandidate{
			item:  movieItem(string(rune('a'+i)), "C", 60),
			score: &models.ScoringResult{TotalScore: s},
		})
	}
	return out
}

func TestSelectCandidateZeroRandomnessPicksTop(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		pick := selectCandidate(rng, candidateSet(70, 90, 80), 0)
		assert.InDelta(t, 90.0, pick.total(), 0.001)
	}
}

func TestSelectCandidateSingle(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pick := selectCandidate(rng, candidateSet(42), 0.9)
	assert.InDelta(t, 42.0, pick.total(), 0.001)
}

func TestSelectCandidateFullRandomnessIsUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	counts := make(map[string]int)
	for i := 0; i < 300; i++ {
		pick := selectCandidate(rng, candidateSet(90, 50, 10), 1.0)
		counts[pick.item.Content.ID]++
	}
	assert.Len(t, counts, 3, "every candidate should be drawn at randomness 1")
	for id, n := range counts {
		assert.Greater(t, n, 40, "candidate %s drawn too rarely for a uniform draw", id)
	}
}

func TestSelectCandidateBiasTowardsScore(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	counts := make(map[string]int)
	for i := 0; i < 500; i++ {
		pick := selectCandidate(rng, candidateSet(100, 50), 0.3)
		counts[pick.item.Content.ID]++
	}
	assert.Greater(t, counts["a"], counts["b"], "higher score must win more draws")
}
