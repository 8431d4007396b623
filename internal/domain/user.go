package domain

import "time"

// User represents a player identified by their Telegram account.
type User struct {
	ID           int64     `json:"-"`
	TelegramID   int64     `json:"telegramId"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Username     string    `json:"username"`
	PhotoURL     string    `json:"photoUrl"`
	LanguageCode string    `json:"languageCode"`
	GameData     GameData  `json:"gameData"`
	Blocked      bool      `json:"blocked"`
	LastLogin    time.Time `json:"lastLogin"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// GameData holds the nested game-progress state mutated by the gameplay API.
type GameData struct {
	Balance       int64  `json:"balance"`
	PassiveIncome int64  `json:"passiveIncome"`
	Energy        Energy `json:"energy"`
	Level         Level  `json:"level"`
	Stats         Stats  `json:"stats"`
}

// Energy is the regenerating tap-energy pool.
type Energy struct {
	Current   int64     `json:"current"`
	Max       int64     `json:"max"`
	RegenRate int64     `json:"regenRate"`
	LastRegen time.Time `json:"lastRegenTime"`
}

// Level tracks game progression.
type Level struct {
	Current  int    `json:"current"`
	Progress int64  `json:"progress"`
	Title    string `json:"title"`
}

// Stats accumulates lifetime gameplay counters.
type Stats struct {
	TotalClicks      int64 `json:"totalClicks"`
	TotalEarned      int64 `json:"totalEarned"`
	MaxPassiveIncome int64 `json:"maxPassiveIncome"`
}

// NewGameData returns the initial game progress for a fresh or reset profile.
func NewGameData(now time.Time) GameData {
	return GameData{
		Balance:       0,
		PassiveIncome: 0,
		Energy: Energy{
			Current:   1000,
			Max:       1000,
			RegenRate: 1,
			LastRegen: now,
		},
		Level: Level{
			Current:  1,
			Progress: 0,
			Title:    "Новичок",
		},
	}
}
