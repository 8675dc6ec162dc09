package service

const (
	ActionRecordingCreate   = "RECORDING_CREATE"
	ActionRecordingPlay     = "RECORDING_PLAY"
	ActionRecordingComplete = "RECORDING_COMPLETE"
	ActionCommentCreate     = "COMMENT_CREATE"
	ActionRecordingFeatured = "RECORDING_FEATURED"

	PointsRecordingCreate   = 50
	PointsRecordingPlay     = 10
	PointsRecordingComplete = 5
	PointsCommentCreate     = 5
	PointsRecordingFeatured = 100

	// AchievementActionPrefix marks bonus entries written on unlock.
	AchievementActionPrefix = "ACHIEVEMENT_"
)

var pointValues = map[string]int{
	ActionRecordingCreate:   PointsRecordingCreate,
	ActionRecordingPlay:     PointsRecordingPlay,
	ActionRecordingComplete: PointsRecordingComplete,
	ActionCommentCreate:     PointsCommentCreate,
	ActionRecordingFeatured: PointsRecordingFeatured,
}

// PointsFor returns the fixed value of an action code. Bonus codes are not
// accepted here; they are only written by the achievement evaluator.
func PointsFor(action string) (int, bool) {
	p, ok := pointValues[action]
	return p, ok
}

func achievementAction(code string) string {
	return AchievementActionPrefix + code
}
