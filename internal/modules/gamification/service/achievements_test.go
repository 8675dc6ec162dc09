package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pivoine.art/gamification/internal/entity"
)

var launch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func progressOf(t *testing.T, repo *fakeRepo, code string, userID uuid.UUID, now time.Time) int {
	t.Helper()
	p, err := DefaultRegistry().Progress(context.Background(), code, ProgressContext{
		UserID:     userID,
		Now:        now,
		LaunchDate: launch,
		Source:     repo,
	})
	require.NoError(t, err)
	return p
}

func TestDefaultRegistryCoversCatalog(t *testing.T) {
	reg := DefaultRegistry()
	for _, code := range []string{
		"first_recording", "recording_10", "recording_50", "recording_100",
		"featured_recording",
		"first_play", "play_100", "play_500",
		"completionist_10", "completionist_100",
		"first_comment", "comment_50", "comment_250",
		"early_adopter", "one_year", "balanced_creator", "top_10_rank",
	} {
		assert.True(t, reg.Has(code), code)
	}
	assert.Len(t, reg.Codes(), 17)
}

func TestRegistryUnknownCodeIsZero(t *testing.T) {
	p, err := NewRegistry().Progress(context.Background(), "nope", ProgressContext{})
	require.NoError(t, err)
	assert.Zero(t, p)
}

func TestRegistryRegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	reg.Register("x", func(context.Context, ProgressContext) (int, error) { return 1, nil })
	reg.Register("x", func(context.Context, ProgressContext) (int, error) { return 2, nil })

	p, err := reg.Progress(context.Background(), "x", ProgressContext{})
	require.NoError(t, err)
	assert.Equal(t, 2, p)
}

func TestCountProgress(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser(testNow)
	other := repo.addUser(testNow)

	repo.addRecording(userID, true, true)
	repo.addRecording(userID, true, false)
	repo.addRecording(userID, false, true)
	theirs := repo.addRecording(other, true, false)
	repo.addPlay(userID, theirs, true)
	repo.addPlay(userID, theirs, true)
	repo.comments = append(repo.comments, entity.Comment{Collection: entity.CollectionRecordings, UserCreated: userID})

	assert.Equal(t, 2, progressOf(t, repo, "recording_10", userID, testNow))
	assert.Equal(t, 1, progressOf(t, repo, "featured_recording", userID, testNow))
	assert.Equal(t, 2, progressOf(t, repo, "play_100", userID, testNow))
	assert.Equal(t, 2, progressOf(t, repo, "completionist_10", userID, testNow))
	assert.Equal(t, 1, progressOf(t, repo, "first_comment", userID, testNow))
}

func TestEarlyAdopter(t *testing.T) {
	tests := []struct {
		name   string
		joined time.Time
		want   int
	}{
		{"joined at launch", launch, 1},
		{"joined on the last eligible instant", launch.AddDate(0, 1, 0), 1},
		{"joined a second too late", launch.AddDate(0, 1, 0).Add(time.Second), 0},
		{"joined before launch", launch.AddDate(0, -3, 0), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			userID := repo.addUser(tt.joined)
			assert.Equal(t, tt.want, progressOf(t, repo, "early_adopter", userID, testNow))
		})
	}

	t.Run("missing user", func(t *testing.T) {
		assert.Zero(t, progressOf(t, newFakeRepo(), "early_adopter", uuid.New(), testNow))
	})
}

func TestOneYear(t *testing.T) {
	repo := newFakeRepo()
	veteran := repo.addUser(testNow.AddDate(-1, 0, 0))
	newcomer := repo.addUser(testNow.AddDate(0, -11, 0))

	assert.Equal(t, 1, progressOf(t, repo, "one_year", veteran, testNow))
	assert.Equal(t, 0, progressOf(t, repo, "one_year", newcomer, testNow))
	assert.Equal(t, 0, progressOf(t, repo, "one_year", uuid.New(), testNow))
}

func TestBalancedCreator(t *testing.T) {
	repo := newFakeRepo()
	userID := repo.addUser(testNow)
	other := repo.addUser(testNow)
	for i := 0; i < 50; i++ {
		repo.addRecording(userID, true, false)
	}
	theirs := repo.addRecording(other, true, false)
	for i := 0; i < 99; i++ {
		repo.addPlay(userID, theirs, false)
	}

	assert.Equal(t, 0, progressOf(t, repo, "balanced_creator", userID, testNow))

	repo.addPlay(userID, theirs, false)
	assert.Equal(t, 1, progressOf(t, repo, "balanced_creator", userID, testNow))
}

func TestTopTenRank(t *testing.T) {
	repo := newFakeRepo()
	var ids []uuid.UUID
	for i := 0; i < 12; i++ {
		id := repo.addUser(testNow)
		ids = append(ids, id)
		repo.stats[id] = entity.UserStats{UserID: id, TotalWeightedPoints: float64(120 - i*10)}
	}

	assert.Equal(t, 1, progressOf(t, repo, "top_10_rank", ids[0], testNow))
	assert.Equal(t, 1, progressOf(t, repo, "top_10_rank", ids[9], testNow))
	assert.Equal(t, 0, progressOf(t, repo, "top_10_rank", ids[10], testNow))
	assert.Equal(t, 0, progressOf(t, repo, "top_10_rank", uuid.New(), testNow), "no stats row")
}

type failingSource struct {
	*fakeRepo
}

func (failingSource) CountPublishedRecordings(context.Context, uuid.UUID) (int64, error) {
	return 0, errors.New("boom")
}

func TestProgressErrorsPropagate(t *testing.T) {
	src := failingSource{newFakeRepo()}
	_, err := DefaultRegistry().Progress(context.Background(), "first_recording", ProgressContext{Source: src})
	assert.Error(t, err)

	_, err = DefaultRegistry().Progress(context.Background(), "balanced_creator", ProgressContext{Source: src})
	assert.Error(t, err)
}
