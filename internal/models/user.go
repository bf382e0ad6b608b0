package models

// User is a registered subscriber. The same Telegram account may register in
// several chats, each registration is a separate row.
type User struct {
	ID         int64  `json:"id"`
	TelegramID int64  `json:"telegram_id"`
	ChatID     int64  `json:"chat_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
}

// Mention returns the string used to address the user in chat messages.
func (u *User) Mention() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "there"
}
