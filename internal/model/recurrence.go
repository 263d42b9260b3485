package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// dateLayout формат календарной даты в holiday_ranges
const dateLayout = "2006-01-02"

// Weekdays набор дней недели (0 = Sunday, 6 = Saturday)
type Weekdays []int

// Contains проверяет входит ли день недели в набор
func (w Weekdays) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == int(day) {
			return true
		}
	}
	return false
}

// Valid проверяет что все значения в диапазоне 0-6
func (w Weekdays) Valid() bool {
	for _, d := range w {
		if d < 0 || d > 6 {
			return false
		}
	}
	return true
}

// DateRange интервал календарных дат, включительный с обеих сторон
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains проверяет попадает ли календарная дата в интервал.
// Сравниваются только год/месяц/день, границы включительно.
func (r DateRange) Contains(date time.Time) bool {
	d := dateOnly(date)
	return !d.Before(dateOnly(r.Start)) && !d.After(dateOnly(r.End))
}

// Valid проверяет что начало интервала не позже конца
func (r DateRange) Valid() bool {
	return !dateOnly(r.End).Before(dateOnly(r.Start))
}

type dateRangeJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON сериализует интервал в пару дат вида "2006-01-02"
func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateRangeJSON{
		Start: r.Start.Format(dateLayout),
		End:   r.End.Format(dateLayout),
	})
}

// UnmarshalJSON разбирает интервал из пары дат вида "2006-01-02"
func (r *DateRange) UnmarshalJSON(data []byte) error {
	var raw dateRangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	start, err := time.Parse(dateLayout, raw.Start)
	if err != nil {
		return fmt.Errorf("parse holiday range start: %w", err)
	}
	end, err := time.Parse(dateLayout, raw.End)
	if err != nil {
		return fmt.Errorf("parse holiday range end: %w", err)
	}

	r.Start = start
	r.End = end
	return nil
}

// Recurrence правило еженедельной публикации для пары учитель+курс.
// На пару существует не больше одной записи.
type Recurrence struct {
	ID            int64       `json:"id"`
	TeacherID     int64       `json:"teacher_id"`
	CourseID      int64       `json:"course_id"`
	Weekdays      Weekdays    `json:"weekdays"`
	PublishHour   int         `json:"publish_hour"`   // 0-23, локальное время учреждения
	PublishMinute int         `json:"publish_minute"` // 0-59
	IsPaused      bool        `json:"is_paused"`
	HolidayRanges []DateRange `json:"holiday_ranges"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// HolidayAt проверяет попадает ли календарная дата в один из каникулярных интервалов
func (r *Recurrence) HolidayAt(date time.Time) bool {
	for _, hr := range r.HolidayRanges {
		if hr.Contains(date) {
			return true
		}
	}
	return false
}

// dateOnly обнуляет время, оставляя только календарную дату
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
