package service

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"pivoine.art/gamification/internal/entity"
	"pivoine.art/gamification/internal/modules/gamification/scoring"
	"pivoine.art/gamification/pkg/apperror"
)

// fakeRepo is an in-memory GamificationRepository with the same upsert and
// conditional-unlock semantics as the gorm implementation.
type fakeRepo struct {
	mu sync.Mutex

	users        map[uuid.UUID]entity.User
	recordings   map[uuid.UUID]entity.Recording
	plays        []entity.RecordingPlay
	comments     []entity.Comment
	entries      []entity.PointEntry
	stats        map[uuid.UUID]entity.UserStats
	achievements []entity.Achievement
	progress     map[[2]uuid.UUID]*entity.UserAchievement

	// failures keyed by method name
	fail map[string]error

	statsWrites int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:      make(map[uuid.UUID]entity.User),
		recordings: make(map[uuid.UUID]entity.Recording),
		stats:      make(map[uuid.UUID]entity.UserStats),
		progress:   make(map[[2]uuid.UUID]*entity.UserAchievement),
		fail:       make(map[string]error),
	}
}

func (f *fakeRepo) addUser(joined time.Time) uuid.UUID {
	id := uuid.New()
	f.users[id] = entity.User{ID: id, FirstName: "user", DateCreated: joined}
	return id
}

func (f *fakeRepo) addRecording(owner uuid.UUID, published, featured bool) uuid.UUID {
	id := uuid.New()
	status := entity.RecordingStatusDraft
	if published {
		status = entity.RecordingStatusPublished
	}
	f.recordings[id] = entity.Recording{ID: id, UserCreated: owner, Status: status, Featured: featured}
	return id
}

func (f *fakeRepo) addPlay(userID, recordingID uuid.UUID, completed bool) {
	f.plays = append(f.plays, entity.RecordingPlay{ID: uuid.New(), UserID: userID, RecordingID: recordingID, Completed: completed})
}

func (f *fakeRepo) addAchievement(code, category string, required, reward int) entity.Achievement {
	a := entity.Achievement{
		ID:            uuid.New(),
		Code:          code,
		Name:          code,
		Category:      category,
		RequiredCount: required,
		PointsReward:  reward,
		Sort:          len(f.achievements),
		Status:        entity.AchievementStatusPublished,
	}
	f.achievements = append(f.achievements, a)
	return a
}

func (f *fakeRepo) entriesFor(userID uuid.UUID, action string) []entity.PointEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.PointEntry
	for _, e := range f.entries {
		if e.UserID == userID && (action == "" || e.Action == action) {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeRepo) userAchievement(userID, achievementID uuid.UUID) *entity.UserAchievement {
	f.mu.Lock()
	defer f.mu.Unlock()
	ua, ok := f.progress[[2]uuid.UUID{userID, achievementID}]
	if !ok {
		return nil
	}
	cp := *ua
	return &cp
}

func (f *fakeRepo) failing(name string) error {
	return f.fail[name]
}

func (f *fakeRepo) FindUser(_ context.Context, id uuid.UUID) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("FindUser"); err != nil {
		return nil, err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeRepo) FindRecording(_ context.Context, id uuid.UUID) (*entity.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recordings[id]
	if !ok {
		return nil, apperror.ErrRecordingNotFound
	}
	return &r, nil
}

func (f *fakeRepo) CreatePointEntry(_ context.Context, entry *entity.PointEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("CreatePointEntry"); err != nil {
		return err
	}
	entry.ID = uint(len(f.entries) + 1)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeRepo) SumPoints(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("SumPoints"); err != nil {
		return 0, err
	}
	var total int64
	for _, e := range f.entries {
		if e.UserID == userID {
			total += int64(e.Points)
		}
	}
	return total, nil
}

func (f *fakeRepo) WeightedScore(_ context.Context, userID uuid.UUID, asOf time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []scoring.Entry
	for _, e := range f.entries {
		if e.UserID == userID {
			entries = append(entries, scoring.Entry{Points: e.Points, At: e.DateCreated})
		}
	}
	return scoring.WeightedScore(entries, asOf), nil
}

func (f *fakeRepo) RecentPointEntries(_ context.Context, userID uuid.UUID, limit int) ([]entity.PointEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.PointEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].UserID == userID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeRepo) countRecordings(userID uuid.UUID, featuredOnly bool) int64 {
	var n int64
	for _, r := range f.recordings {
		if r.UserCreated == userID && r.Status == entity.RecordingStatusPublished && (!featuredOnly || r.Featured) {
			n++
		}
	}
	return n
}

func (f *fakeRepo) CountPublishedRecordings(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countRecordings(userID, false), nil
}

func (f *fakeRepo) CountFeaturedRecordings(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countRecordings(userID, true), nil
}

func (f *fakeRepo) CountQualifyingPlays(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.plays {
		r, ok := f.recordings[p.RecordingID]
		if p.UserID == userID && ok && r.UserCreated != userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CountCompletedPlays(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.plays {
		if p.UserID == userID && p.Completed {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CountRecordingComments(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range f.comments {
		if c.UserCreated == userID && c.Collection == entity.CollectionRecordings {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CountUnlockedAchievements(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for key, ua := range f.progress {
		if key[0] == userID && ua.DateUnlocked != nil {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) UpsertUserStats(_ context.Context, stats *entity.UserStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("UpsertUserStats"); err != nil {
		return err
	}
	f.stats[stats.UserID] = *stats
	f.statsWrites++
	return nil
}

func (f *fakeRepo) FindUserStats(_ context.Context, userID uuid.UUID) (*entity.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stats[userID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (f *fakeRepo) Rank(_ context.Context, userID uuid.UUID, weighted float64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ahead int64
	for id, st := range f.stats {
		if st.TotalWeightedPoints > weighted ||
			(st.TotalWeightedPoints == weighted && bytes.Compare(id[:], userID[:]) < 0) {
			ahead++
		}
	}
	return ahead + 1, nil
}

func (f *fakeRepo) Leaderboard(_ context.Context, limit, offset int) ([]entity.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("Leaderboard"); err != nil {
		return nil, err
	}
	all := make([]entity.UserStats, 0, len(f.stats))
	for _, st := range f.stats {
		st.User = f.users[st.UserID]
		all = append(all, st)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].TotalWeightedPoints != all[j].TotalWeightedPoints {
			return all[i].TotalWeightedPoints > all[j].TotalWeightedPoints
		}
		return bytes.Compare(all[i].UserID[:], all[j].UserID[:]) < 0
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeRepo) ListKnownUserIDs(_ context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for id := range f.stats {
		seen[id] = true
		ids = append(ids, id)
	}
	for _, e := range f.entries {
		if !seen[e.UserID] {
			seen[e.UserID] = true
			ids = append(ids, e.UserID)
		}
	}
	return ids, nil
}

func (f *fakeRepo) ListAchievements(_ context.Context, category string) ([]entity.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("ListAchievements"); err != nil {
		return nil, err
	}
	var out []entity.Achievement
	for _, a := range f.achievements {
		if a.Status != entity.AchievementStatusPublished {
			continue
		}
		if category != "" && a.Category != category {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeRepo) UpsertAchievementProgress(_ context.Context, userID, achievementID uuid.UUID, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uuid.UUID{userID, achievementID}
	if ua, ok := f.progress[key]; ok {
		ua.Progress = progress
		return nil
	}
	f.progress[key] = &entity.UserAchievement{
		ID:            uint(len(f.progress) + 1),
		UserID:        userID,
		AchievementID: achievementID,
		Progress:      progress,
	}
	return nil
}

func (f *fakeRepo) UnlockAchievement(_ context.Context, userID, achievementID uuid.UUID, at time.Time, bonus *entity.PointEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ua, ok := f.progress[[2]uuid.UUID{userID, achievementID}]
	if !ok || ua.DateUnlocked != nil {
		return false, nil
	}
	if bonus != nil {
		// the bonus insert shares the unlock's transaction
		if err := f.failing("CreatePointEntry"); err != nil {
			return false, err
		}
		bonus.ID = uint(len(f.entries) + 1)
		f.entries = append(f.entries, *bonus)
	}
	t := at
	ua.DateUnlocked = &t
	return true, nil
}

func (f *fakeRepo) ListUnlockedAchievements(_ context.Context, userID uuid.UUID) ([]entity.UserAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byID := make(map[uuid.UUID]entity.Achievement)
	for _, a := range f.achievements {
		byID[a.ID] = a
	}
	var out []entity.UserAchievement
	for key, ua := range f.progress {
		if key[0] == userID && ua.DateUnlocked != nil {
			cp := *ua
			cp.Achievement = byID[ua.AchievementID]
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Achievement.Sort < out[j].Achievement.Sort })
	return out, nil
}
