package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"planner-reminders/internal/model"
	"planner-reminders/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fakeClock pins the current instant for deterministic dispatch tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type sentMessage struct {
	ChatID int64
	Text   string
}

// fakeNotifier records sends and can be told to fail for certain chats.
type fakeNotifier struct {
	mu        sync.Mutex
	sent      []sentMessage
	failChats map[int64]error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failChats: make(map[int64]error)}
}

func (n *fakeNotifier) failFor(chatID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failChats[chatID] = fmt.Errorf("delivery failed for chat %d", chatID)
}

func (n *fakeNotifier) recover(chatID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.failChats, chatID)
}

func (n *fakeNotifier) Send(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err, ok := n.failChats[chatID]; ok {
		return err
	}
	n.sent = append(n.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (n *fakeNotifier) sentTo(chatID int64) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (n *fakeNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func seedUser(t *testing.T, db *gorm.DB, telegramID int64, timezone string) *model.User {
	t.Helper()
	users := repository.NewUserRepository(db)
	user, err := users.UpsertFromTelegram(context.Background(), telegramID, "Test", "", "test")
	require.NoError(t, err)
	if timezone != "" {
		require.NoError(t, users.UpdateTimezone(context.Background(), user.ID, timezone))
		user.Timezone = timezone
	}
	return user
}

func seedTask(t *testing.T, db *gorm.DB, user *model.User, title string, dueLocal *time.Time) *model.Task {
	t.Helper()
	tasks := repository.NewTaskRepository(db)
	task := &model.Task{
		UserID:          user.ID,
		Title:           title,
		DueLocal:        dueLocal,
		ReminderEnabled: true,
	}
	require.NoError(t, tasks.Create(context.Background(), task))
	return task
}

func reminderByID(t *testing.T, db *gorm.DB, id any) *model.Reminder {
	t.Helper()
	var reminder model.Reminder
	require.NoError(t, db.First(&reminder, "id = ?", id).Error)
	return &reminder
}

func countReminders(t *testing.T, db *gorm.DB, taskID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&model.Reminder{}).Where("task_id = ?", taskID).Count(&count).Error)
	return count
}

func wallTime(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}
