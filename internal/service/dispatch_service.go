package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"planner-reminders/internal/clock"
	"planner-reminders/internal/notify"
	"planner-reminders/internal/repository"
)

// DispatchConfig tunes the reminder dispatch loop. The tick interval itself
// lives with the scheduler that calls RunTick.
type DispatchConfig struct {
	BatchLimit  int
	SendTimeout time.Duration
	// MaxAttempts caps delivery retries per reminder; 0 retries forever.
	MaxAttempts int
}

// Dispatcher drives reminder delivery: each tick fetches due reminders,
// sends each one independently, and records the outcome in the ledger.
//
// Delivery is at-least-once: a send that succeeds right before a crash can
// be repeated after restart, but the conditional MarkSent keeps the ledger
// consistent either way.
type Dispatcher struct {
	ledger   *LedgerService
	notifier notify.Notifier
	clock    clock.Clock
	cfg      DispatchConfig
	log      zerolog.Logger
}

func NewDispatcher(ledger *LedgerService, notifier notify.Notifier, clk clock.Clock, cfg DispatchConfig, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		ledger:   ledger,
		notifier: notifier,
		clock:    clk,
		cfg:      cfg,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// RunTick executes one dispatch cycle. A storage failure aborts the tick
// cleanly; it will be retried on the next interval.
func (d *Dispatcher) RunTick(ctx context.Context) {
	now := d.clock.Now().UTC()

	due, err := d.ledger.FetchDue(ctx, now, d.cfg.BatchLimit)
	if err != nil {
		d.log.Error().Err(err).Msg("fetch due reminders failed, skipping tick")
		return
	}
	if len(due) == 0 {
		return
	}
	d.log.Debug().Int("due", len(due)).Msg("dispatching reminders")

	var wg sync.WaitGroup
	for _, item := range due {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.deliver(ctx, item)
		}()
	}
	wg.Wait()
}

// deliver sends one reminder and transitions its state. Failures are
// isolated per reminder: they never abort the rest of the batch.
func (d *Dispatcher) deliver(ctx context.Context, item repository.DueReminder) {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	if err := d.notifier.Send(sendCtx, item.TelegramID, notify.ReminderText(item.TaskTitle)); err != nil {
		d.onDeliveryFailure(ctx, item, err)
		return
	}

	if err := d.ledger.MarkSent(ctx, item.ID, d.clock.Now().UTC()); err != nil {
		d.log.Error().Err(err).Stringer("reminder_id", item.ID).Msg("mark sent failed")
	}
}

func (d *Dispatcher) onDeliveryFailure(ctx context.Context, item repository.DueReminder, sendErr error) {
	now := d.clock.Now().UTC()
	if err := d.ledger.RecordFailedAttempt(ctx, item.ID, now); err != nil {
		d.log.Error().Err(err).Stringer("reminder_id", item.ID).Msg("record attempt failed")
	}

	attempts := item.Attempts + 1
	if d.cfg.MaxAttempts > 0 && attempts >= d.cfg.MaxAttempts {
		if err := d.ledger.Cancel(ctx, item.ID); err != nil {
			d.log.Error().Err(err).Stringer("reminder_id", item.ID).Msg("cancel exhausted reminder failed")
			return
		}
		d.log.Warn().
			Stringer("reminder_id", item.ID).
			Int("attempts", attempts).
			Msg("delivery attempts exhausted, reminder canceled")
		return
	}

	d.log.Warn().
		Err(sendErr).
		Stringer("reminder_id", item.ID).
		Int("attempts", attempts).
		Msg("delivery failed, will retry next tick")
}
