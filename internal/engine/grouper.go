package engine

import "github.com/arogachev/pillbot/internal/models"

// Addressed is anything that can name its notification recipient.
type Addressed interface {
	Recipient() models.Recipient
}

// Group is one recipient's batch of notifiable items, in the order they were
// produced.
type Group[T Addressed] struct {
	models.Recipient
	Items []T
}

// GroupByRecipient batches items by (chat, user) so one person gets one
// combined message instead of one message per pill. Groups come out in
// first-seen order and items keep their relative order, which keeps message
// building deterministic. Empty input yields no groups.
func GroupByRecipient[T Addressed](items []T) []Group[T] {
	type key struct {
		chatID     int64
		telegramID int64
	}

	index := make(map[key]int)
	var groups []Group[T]
	for _, item := range items {
		r := item.Recipient()
		k := key{chatID: r.ChatID, telegramID: r.TelegramID}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[T]{Recipient: r})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}
