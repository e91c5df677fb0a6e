package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner-reminders/internal/model"
	"planner-reminders/internal/repository"
)

func dispatchConfig() DispatchConfig {
	return DispatchConfig{
		BatchLimit:  50,
		SendTimeout: time.Second,
		MaxAttempts: 0,
	}
}

func TestRunTickSendsDueReminder(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 100, "UTC")
	task := seedTask(t, db, user, "water the plants", nil)
	ledger := NewLedgerService(repository.NewReminderRepository(db), testLogger())
	ctx := context.Background()

	now := wallTime(2024, time.June, 10, 12, 0)
	reminder, err := ledger.CreateOrReplacePending(ctx, task.ID, user.ID, now.Add(-time.Minute))
	require.NoError(t, err)

	notifier := newFakeNotifier()
	clk := newFakeClock(now)
	dispatcher := NewDispatcher(ledger, notifier, clk, dispatchConfig(), testLogger())

	dispatcher.RunTick(ctx)

	sent := notifier.sentTo(user.TelegramID)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "water the plants")

	got := reminderByID(t, db, reminder.ID)
	assert.Equal(t, model.StatusSent, got.Status)
	require.NotNil(t, got.SentAtUTC)
	assert.True(t, got.SentAtUTC.Equal(now))
}

func TestRunTickDoesNotResendSentReminder(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 100, "UTC")
	task := seedTask(t, db, user, "water the plants", nil)
	ledger := NewLedgerService(repository.NewReminderRepository(db), testLogger())
	ctx := context.Background()

	now := wallTime(2024, time.June, 10, 12, 0)
	_, err := ledger.CreateOrReplacePending(ctx, task.ID, user.ID, now.Add(-time.Minute))
	require.NoError(t, err)

	notifier := newFakeNotifier()
	clk := newFakeClock(now)
	dispatcher := NewDispatcher(ledger, notifier, clk, dispatchConfig(), testLogger())

	dispatcher.RunTick(ctx)
	clk.Set(now.Add(30 * time.Second))
	dispatcher.RunTick(ctx)

	assert.Equal(t, 1, notifier.sentCount())
}

func TestRunTickFailureLeavesReminderActive(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 100, "UTC")
	task := seedTask(t, db, user, "water the plants", nil)
	ledger := NewLedgerService(repository.NewReminderRepository(db), testLogger())
	ctx := context.Background()

	now := wallTime(2024, time.June, 10, 12, 0)
	reminder, err := ledger.CreateOrReplacePending(ctx, task.ID, user.ID, now.Add(-time.Minute))
	require.NoError(t, err)

	notifier := newFakeNotifier()
	notifier.failFor(user.TelegramID)
	clk := newFakeClock(now)
	dispatcher := NewDispatcher(ledger, notifier, clk, dispatchConfig(), testLogger())

	dispatcher.RunTick(ctx)

	got := reminderByID(t, db, reminder.ID)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)

	// Delivery recovers on a later tick.
	notifier.recover(user.TelegramID)
	clk.Set(now.Add(30 * time.Second))
	dispatcher.RunTick(ctx)

	assert.Equal(t, model.StatusSent, reminderByID(t, db, reminder.ID).Status)
}

func TestRunTickIsolatesFailures(t *testing.T) {
	db := newTestDB(t)
	healthy := seedUser(t, db, 100, "UTC")
	broken := seedUser(t, db, 200, "UTC")
	healthyTask := seedTask(t, db, healthy, "healthy task", nil)
	brokenTask := seedTask(t, db, broken, "broken task", nil)
	ledger := NewLedgerService(repository.NewReminderRepository(db), testLogger())
	ctx := context.Background()

	now := wallTime(2024, time.June, 10, 12, 0)
	healthyReminder, err := ledger.CreateOrReplacePending(ctx, healthyTask.ID, healthy.ID, now.Add(-time.Minute))
	require.NoError(t, err)
	brokenReminder, err := ledger.CreateOrReplacePending(ctx, brokenTask.ID, broken.ID, now.Add(-time.Minute))
	require.NoError(t, err)

	notifier := newFakeNotifier()
	notifier.failFor(broken.TelegramID)
	dispatcher := NewDispatcher(ledger, notifier, newFakeClock(now), dispatchConfig(), testLogger())

	dispatcher.RunTick(ctx)

	assert.Equal(t, model.StatusSent, reminderByID(t, db, healthyReminder.ID).Status)
	assert.Equal(t, model.StatusPending, reminderByID(t, db, brokenReminder.ID).Status)
}

func TestRunTickHonorsBatchLimit(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 100, "UTC")
	ledger := NewLedgerService(repository.NewReminderRepository(db), testLogger())
	ctx := context.Background()

	now := wallTime(2024, time.June, 10, 12, 0)
	for i := 0; i < 5; i++ {
		task := seedTask(t, db, user, "task", nil)
		_, err := ledger.CreateOrReplacePending(ctx, task.ID, user.ID, now.Add(-time.Duration(i+1)*time.Minute))
		require.NoError(t, err)
	}

	cfg := dispatchConfig()
	cfg.BatchLimit = 2
	notifier := newFakeNotifier()
	clk := newFakeClock(now)
	dispatcher := NewDispatcher(ledger, notifier, clk, cfg, testLogger())

	dispatcher.RunTick(ctx)
	assert.Equal(t, 2, notifier.sentCount())

	// The remainder drains on subsequent ticks.
	clk.Set(now.Add(30 * time.Second))
	dispatcher.RunTick(ctx)
	clk.Set(now.Add(60 * time.Second))
	dispatcher.RunTick(ctx)
	assert.Equal(t, 5, notifier.sentCount())
}

func TestRunTickCancelsAfterMaxAttempts(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 100, "UTC")
	task := seedTask(t, db, user, "water the plants", nil)
	ledger := NewLedgerService(repository.NewReminderRepository(db), testLogger())
	ctx := context.Background()

	now := wallTime(2024, time.June, 10, 12, 0)
	reminder, err := ledger.CreateOrReplacePending(ctx, task.ID, user.ID, now.Add(-time.Minute))
	require.NoError(t, err)

	cfg := dispatchConfig()
	cfg.MaxAttempts = 3
	notifier := newFakeNotifier()
	notifier.failFor(user.TelegramID)
	clk := newFakeClock(now)
	dispatcher := NewDispatcher(ledger, notifier, clk, cfg, testLogger())

	for i := 0; i < 3; i++ {
		dispatcher.RunTick(ctx)
		clk.Set(clk.Now().Add(30 * time.Second))
	}

	got := reminderByID(t, db, reminder.ID)
	assert.Equal(t, model.StatusCanceled, got.Status)
	assert.Equal(t, 3, got.Attempts)

	// A canceled reminder never comes back, even if delivery recovers.
	notifier.recover(user.TelegramID)
	dispatcher.RunTick(ctx)
	assert.Equal(t, 0, notifier.sentCount())
}

func TestRunTickAbortsCleanlyWhenStorageFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.db")
	db, err := repository.NewDB(path)
	require.NoError(t, err)

	user := seedUser(t, db, 100, "UTC")
	task := seedTask(t, db, user, "water the plants", nil)
	ledger := NewLedgerService(repository.NewReminderRepository(db), testLogger())
	ctx := context.Background()

	now := wallTime(2024, time.June, 10, 12, 0)
	reminder, err := ledger.CreateOrReplacePending(ctx, task.ID, user.ID, now.Add(-time.Minute))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	notifier := newFakeNotifier()
	dispatcher := NewDispatcher(ledger, notifier, newFakeClock(now), dispatchConfig(), testLogger())

	require.NotPanics(t, func() { dispatcher.RunTick(ctx) })
	assert.Equal(t, 0, notifier.sentCount(), "a failed fetch must not deliver anything")

	// Once storage is back, the untouched reminder goes out on the next tick.
	db2, err := repository.NewDB(path)
	require.NoError(t, err)
	ledger2 := NewLedgerService(repository.NewReminderRepository(db2), testLogger())
	dispatcher2 := NewDispatcher(ledger2, notifier, newFakeClock(now.Add(30*time.Second)), dispatchConfig(), testLogger())
	dispatcher2.RunTick(ctx)

	require.Equal(t, 1, notifier.sentCount())
	assert.Equal(t, model.StatusSent, reminderByID(t, db2, reminder.ID).Status)
}

func TestRunTickSkipsFutureReminders(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 100, "UTC")
	task := seedTask(t, db, user, "water the plants", nil)
	ledger := NewLedgerService(repository.NewReminderRepository(db), testLogger())
	ctx := context.Background()

	now := wallTime(2024, time.June, 10, 12, 0)
	_, err := ledger.CreateOrReplacePending(ctx, task.ID, user.ID, now.Add(time.Hour))
	require.NoError(t, err)

	notifier := newFakeNotifier()
	clk := newFakeClock(now)
	dispatcher := NewDispatcher(ledger, notifier, clk, dispatchConfig(), testLogger())

	dispatcher.RunTick(ctx)
	assert.Equal(t, 0, notifier.sentCount())

	clk.Set(now.Add(time.Hour))
	dispatcher.RunTick(ctx)
	assert.Equal(t, 1, notifier.sentCount())
}
