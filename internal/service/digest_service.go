package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"planner-reminders/internal/clock"
	"planner-reminders/internal/model"
	"planner-reminders/internal/notify"
	"planner-reminders/internal/recurrence"
	"planner-reminders/internal/repository"
	"planner-reminders/internal/tz"
)

// DigestService builds and sends the daily agenda message for every user.
type DigestService struct {
	tasks       *repository.TaskRepository
	users       *repository.UserRepository
	notifier    notify.Notifier
	clock       clock.Clock
	horizonDays int
	log         zerolog.Logger
}

func NewDigestService(tasks *repository.TaskRepository, users *repository.UserRepository, notifier notify.Notifier, clk clock.Clock, horizonDays int, log zerolog.Logger) *DigestService {
	return &DigestService{
		tasks:       tasks,
		users:       users,
		notifier:    notifier,
		clock:       clk,
		horizonDays: horizonDays,
		log:         log.With().Str("component", "digest").Logger(),
	}
}

// SendDailyDigests sends an agenda to every known user. A failure for one
// user is logged and does not block the others.
func (s *DigestService) SendDailyDigests(ctx context.Context) error {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return err
	}

	for _, user := range users {
		text, err := s.BuildDigest(ctx, user)
		if err != nil {
			s.log.Error().Err(err).Int64("telegram_id", user.TelegramID).Msg("build digest failed")
			continue
		}
		if text == "" {
			continue
		}
		if err := s.notifier.Send(ctx, user.TelegramID, text); err != nil {
			s.log.Error().Err(err).Int64("telegram_id", user.TelegramID).Msg("send digest failed")
		}
	}
	return nil
}

// BuildDigest renders the user's agenda in their own time zone. Returns an
// empty string when there is nothing to report.
func (s *DigestService) BuildDigest(ctx context.Context, user model.User) (string, error) {
	tasks, err := s.tasks.ListOpenByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "", nil
	}

	loc, err := tz.Resolve(user.Timezone)
	if err != nil {
		s.log.Warn().Err(err).Int64("telegram_id", user.TelegramID).Msg("bad timezone, falling back to UTC")
		loc = time.UTC
	}
	nowWall := tz.Wall(s.clock.Now().In(loc))

	var pending []model.Task
	var recurring []model.Task
	for _, task := range tasks {
		if task.IsRecurring() {
			recurring = append(recurring, task)
			continue
		}
		if !task.Completed {
			pending = append(pending, task)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		switch {
		case pending[i].DueLocal == nil && pending[j].DueLocal == nil:
			return pending[i].CreatedAt.After(pending[j].CreatedAt)
		case pending[i].DueLocal == nil:
			return false
		case pending[j].DueLocal == nil:
			return true
		default:
			return pending[i].DueLocal.Before(*pending[j].DueLocal)
		}
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Ежедневный отчёт</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", nowWall.Format("02.01.2006")))

	builder.WriteString("🔥 <b>Текущие задачи</b>\n")
	if len(pending) == 0 {
		builder.WriteString("— нет открытых задач\n")
	} else {
		for _, task := range pending {
			builder.WriteString(formatPendingTask(task, nowWall))
		}
	}

	builder.WriteString("\n♻️ <b>Регулярные задачи</b>\n")
	if len(recurring) == 0 {
		builder.WriteString("— нет регулярных задач\n")
	} else {
		for _, task := range recurring {
			builder.WriteString(s.formatRecurringTask(task, nowWall))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatPendingTask(task model.Task, nowWall time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if task.DueLocal != nil {
		switch {
		case nowWall.After(*task.DueLocal):
			icon = "⚠️"
		case task.DueLocal.Sub(nowWall) <= 48*time.Hour:
			icon = "⏳"
		}
	}

	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("%s %s", icon, title))

	if task.DueLocal != nil {
		if nowWall.After(*task.DueLocal) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ до %s — <b>просрочено</b>", task.DueLocal.Format("2006-01-02 15:04")))
		} else {
			daysLeft := int(task.DueLocal.Sub(nowWall).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ до %s · осталось ≈%d дн.", task.DueLocal.Format("2006-01-02 15:04"), daysLeft))
		}
	}

	if task.Notes != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Notes))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func (s *DigestService) formatRecurringTask(task model.Task, nowWall time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("♻️ %s", html.EscapeString(strings.TrimSpace(task.Title))))

	if task.DueLocal != nil {
		horizon := nowWall.AddDate(0, 0, s.horizonDays)
		if next, ok := recurrence.NextOnOrAfter(*task.DueLocal, task.Rule(), nowWall, horizon); ok {
			sb.WriteString(fmt.Sprintf("\n   📆 Ближайшая дата: %s", next.Format("2006-01-02 15:04")))
		}
	}

	if task.LastCompletedAt != nil {
		sb.WriteString(fmt.Sprintf("\n   ✅ Последнее выполнение: %s", task.LastCompletedAt.Format("2006-01-02")))
	} else {
		sb.WriteString("\n   ✅ Пока не выполнялась")
	}

	sb.WriteByte('\n')
	return sb.String()
}
