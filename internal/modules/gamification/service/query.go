package service

import (
	"context"

	"github.com/google/uuid"
	"pivoine.art/gamification/internal/entity"
	gamificationDto "pivoine.art/gamification/internal/modules/gamification/dto"
	"pivoine.art/gamification/internal/modules/gamification/scoring"
	commonDto "pivoine.art/gamification/pkg/dto"
)

// Leaderboard returns one page of users ordered by weighted points, ties
// broken by user id. Rank is offset + position on the page.
func (s *gamificationService) Leaderboard(ctx context.Context, limit, offset int) (*gamificationDto.LeaderboardResponse, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	// one extra row tells whether another page exists
	stats, err := s.repo.Leaderboard(ctx, limit+1, offset)
	if err != nil {
		return nil, err
	}

	hasMore := len(stats) > limit
	if hasMore {
		stats = stats[:limit]
	}

	entries := make([]gamificationDto.LeaderboardEntry, 0, len(stats))
	for i, st := range stats {
		entries = append(entries, gamificationDto.LeaderboardEntry{
			Rank:                int64(offset + i + 1),
			UserID:              st.UserID,
			DisplayName:         st.User.DisplayName(),
			Slug:                st.User.Slug,
			Avatar:              st.User.Avatar,
			TotalWeightedPoints: st.TotalWeightedPoints,
			TotalRawPoints:      st.TotalRawPoints,
			RecordingsCount:     st.RecordingsCount,
			PlaybacksCount:      st.PlaybacksCount,
			AchievementsCount:   st.AchievementsCount,
		})
	}

	return &gamificationDto.LeaderboardResponse{
		Data: entries,
		Meta: commonDto.PageMeta{Limit: limit, Offset: offset, HasMore: hasMore},
	}, nil
}

// UserSummary collects stats, rank, unlocked achievements and the most
// recent ledger entries of one user.
func (s *gamificationService) UserSummary(ctx context.Context, userID uuid.UUID) (*gamificationDto.UserSummaryResponse, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &gamificationDto.UserSummaryResponse{
		UserID:       user.ID,
		DisplayName:  user.DisplayName(),
		Avatar:       user.Avatar,
		Achievements: []gamificationDto.UnlockedAchievementResponse{},
		RecentPoints: []gamificationDto.PointEntryResponse{},
	}

	stats, err := s.repo.FindUserStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stats != nil {
		rank, err := s.repo.Rank(ctx, userID, stats.TotalWeightedPoints)
		if err != nil {
			return nil, err
		}
		lastUpdated := stats.LastUpdated
		resp.Rank = &rank
		resp.Stats = gamificationDto.StatsResponse{
			TotalRawPoints:      stats.TotalRawPoints,
			TotalWeightedPoints: stats.TotalWeightedPoints,
			RecordingsCount:     stats.RecordingsCount,
			PlaybacksCount:      stats.PlaybacksCount,
			CommentsCount:       stats.CommentsCount,
			AchievementsCount:   stats.AchievementsCount,
			LastUpdated:         &lastUpdated,
		}
	}

	unlocked, err := s.repo.ListUnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, ua := range unlocked {
		if !ua.Unlocked() {
			continue
		}
		resp.Achievements = append(resp.Achievements, gamificationDto.UnlockedAchievementResponse{
			AchievementResponse: s.achievementResponse(ua.Achievement),
			Progress:            ua.Progress,
			DateUnlocked:        *ua.DateUnlocked,
		})
	}

	recent, err := s.repo.RecentPointEntries(ctx, userID, s.recentLimit)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, e := range recent {
		resp.RecentPoints = append(resp.RecentPoints, gamificationDto.PointEntryResponse{
			Action:        e.Action,
			Points:        e.Points,
			DecayedPoints: scoring.Decayed(e.Points, e.DateCreated, now),
			RecordingID:   e.RecordingID,
			DateCreated:   e.DateCreated,
		})
	}

	return resp, nil
}

// Achievements lists the published catalog, optionally one category.
func (s *gamificationService) Achievements(ctx context.Context, category string) ([]gamificationDto.AchievementResponse, error) {
	achievements, err := s.repo.ListAchievements(ctx, category)
	if err != nil {
		return nil, err
	}

	resp := make([]gamificationDto.AchievementResponse, 0, len(achievements))
	for _, a := range achievements {
		resp = append(resp, s.achievementResponse(a))
	}
	return resp, nil
}

// achievementResponse strips markup from the CMS-managed text fields.
func (s *gamificationService) achievementResponse(a entity.Achievement) gamificationDto.AchievementResponse {
	return gamificationDto.AchievementResponse{
		ID:            a.ID,
		Code:          a.Code,
		Name:          s.sanitizer.Sanitize(a.Name),
		Description:   s.sanitizer.Sanitize(a.Description),
		Icon:          s.sanitizer.Sanitize(a.Icon),
		Category:      a.Category,
		RequiredCount: a.RequiredCount,
		PointsReward:  a.PointsReward,
		Sort:          a.Sort,
	}
}
