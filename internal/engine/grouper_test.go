package engine

import (
	"testing"

	"github.com/arogachev/pillbot/internal/models"
)

func pending(chatID int64, name string) *models.PendingIntake {
	return &models.PendingIntake{
		MedicationName: name,
		TelegramID:     chatID,
		ChatID:         chatID,
	}
}

func TestGroupByRecipient(t *testing.T) {
	items := []*models.PendingIntake{
		pending(100, "Aspirin"),
		pending(200, "Ibuprofen"),
		pending(100, "Vitamin D"),
		pending(100, "Magnesium"),
		pending(200, "Melatonin"),
	}

	groups := GroupByRecipient(items)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}

	// First-seen order of recipients, original order of items within.
	if groups[0].ChatID != 100 || groups[1].ChatID != 200 {
		t.Errorf("group order = [%d %d], want [100 200]", groups[0].ChatID, groups[1].ChatID)
	}
	wantFirst := []string{"Aspirin", "Vitamin D", "Magnesium"}
	if len(groups[0].Items) != len(wantFirst) {
		t.Fatalf("first group has %d items, want %d", len(groups[0].Items), len(wantFirst))
	}
	for i, want := range wantFirst {
		if got := groups[0].Items[i].MedicationName; got != want {
			t.Errorf("first group item %d = %q, want %q", i, got, want)
		}
	}
	if len(groups[1].Items) != 2 {
		t.Errorf("second group has %d items, want 2", len(groups[1].Items))
	}
}

func TestGroupByRecipientEmpty(t *testing.T) {
	if groups := GroupByRecipient([]*models.PendingIntake(nil)); len(groups) != 0 {
		t.Errorf("got %d groups from empty input, want 0", len(groups))
	}
}

func TestGroupByRecipientDistinguishesUsersInSharedChat(t *testing.T) {
	// A family chat: same chat id, two different people.
	a := pending(100, "Aspirin")
	a.TelegramID = 1
	b := pending(100, "Ibuprofen")
	b.TelegramID = 2

	groups := GroupByRecipient([]*models.PendingIntake{a, b})
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2 for distinct users in one chat", len(groups))
	}
}
