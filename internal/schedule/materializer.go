// Package schedule содержит чистую логику материализации вхождений:
// превращение правила повторения и шаблона в конкретные моменты публикации.
package schedule

import (
	"time"

	"github.com/classtrack/assignment_engine/internal/model"
)

const (
	// DefaultLookahead сколько вхождений генерируется за один проход
	DefaultLookahead = 28
	// MaxScanDays жёсткий предел просмотра календаря, гарантирует завершение
	// даже при редком наборе дней недели или окне в далёком прошлом
	MaxScanDays = 120
)

// Candidate вычисленное вхождение до записи в леджер
type Candidate struct {
	TemplateID int64
	PublishAt  time.Time
	Status     model.OccurrenceStatus
}

// PublishInstant собирает абсолютный момент публикации из локальной
// календарной даты и времени. Смещение UTC вычисляется для конкретной даты,
// а не берётся фиксированным, поэтому результат корректен и при сезонных
// переходах таймзоны.
func PublishInstant(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

// Materialize вычисляет до limit будущих вхождений шаблона по правилу
// повторения. Календарь просматривается день за днём от якоря (start_date
// шаблона, иначе сегодня в loc), не дальше MaxScanDays дней.
//
// Вхождения на каникулярные даты не отбрасываются, а помечаются
// skipped_holiday, чтобы леджер сохранял и подавленные даты.
func Materialize(rec *model.Recurrence, tmpl *model.AssignmentTemplate, now time.Time, loc *time.Location, limit int) []Candidate {
	if rec == nil || tmpl == nil {
		return nil
	}
	if rec.IsPaused || !tmpl.IsActive {
		return nil
	}
	if len(rec.Weekdays) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLookahead
	}

	anchor := startAnchor(tmpl, now, loc)

	var out []Candidate
	for i := 0; i < MaxScanDays && len(out) < limit; i++ {
		day := anchor.AddDate(0, 0, i)

		// Окно действия шаблона: end_date включительно до конца локального дня,
		// поэтому достаточно сравнения календарных дат
		if tmpl.EndDate != nil && afterDate(day, *tmpl.EndDate) {
			break
		}

		if !rec.Weekdays.Contains(day.Weekday()) {
			continue
		}

		instant := PublishInstant(day.Year(), day.Month(), day.Day(), rec.PublishHour, rec.PublishMinute, loc)
		if instant.Before(now) {
			continue
		}

		status := model.OccurrenceStatusScheduled
		if rec.HolidayAt(day) {
			status = model.OccurrenceStatusSkippedHoliday
		}

		out = append(out, Candidate{
			TemplateID: tmpl.ID,
			PublishAt:  instant,
			Status:     status,
		})
	}

	return out
}

// startAnchor возвращает полночь дня, с которого начинается просмотр календаря
func startAnchor(tmpl *model.AssignmentTemplate, now time.Time, loc *time.Location) time.Time {
	if tmpl.StartDate != nil {
		sd := *tmpl.StartDate
		return time.Date(sd.Year(), sd.Month(), sd.Day(), 0, 0, 0, 0, loc)
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// afterDate сравнивает только календарные даты: a строго позже b
func afterDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}
