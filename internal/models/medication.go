package models

// Medication is one pill owned by a user. Schedules hang off it and are
// removed with it (ON DELETE CASCADE).
type Medication struct {
	ID      int64  `json:"id"`
	UserID  int64  `json:"user_id"`
	Name    string `json:"name"`
	Dosage  string `json:"dosage"`
	PhotoID string `json:"photo_id"` // Telegram file_id, empty if no photo
	Notes   string `json:"notes"`
}
