package domain

import "time"

// Achievement ids.
const (
	AchievementFirstEmotionLog = "first_emotion_log"
	AchievementTenEmotionLogs  = "ten_emotion_logs"
	AchievementInterestsSet    = "interests_set"
)

// Achievement is unlocked at most once per user.
type Achievement struct {
	UserID        string     `json:"user_id"`
	AchievementID string     `json:"achievement_id"`
	UnlockedAt    time.Time  `json:"unlocked_at"`
	SyncStatus    SyncStatus `json:"sync_status"`
}

// Key is the composite id "userID:achievementID".
func (a *Achievement) Key() string {
	return AchievementKey(a.UserID, a.AchievementID)
}

// AchievementKey builds the composite achievement id.
func AchievementKey(userID, achievementID string) string {
	return userID + ":" + achievementID
}
