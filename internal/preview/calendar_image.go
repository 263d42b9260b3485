// Package preview рисует календарь предстоящих публикаций для предпросмотра
// расписания учителем.
package preview

import (
	"bytes"
	"fmt"
	"image/color"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/classtrack/assignment_engine/internal/model"
)

// Константы размеров и отступов
const (
	imageWidth       = 1400
	imageHeight      = 900
	headerHeight     = 80
	legendHeight     = 60
	cellPadding      = 6.0
	entryHeight      = 26.0
	entrySpacing     = 4.0
	entryRadius      = 5.0
	totalDaysInWeek  = 7
	weeksShown       = 4
	maxEntriesPerDay = 5
	maxTitleChars    = 18
)

// Цветовая схема
var (
	bgColor        = color.RGBA{245, 246, 248, 255}
	headerColor    = color.RGBA{80, 85, 90, 255}
	dayLabelColor  = color.RGBA{110, 115, 120, 255}
	gridLineColor  = color.NRGBA{200, 200, 200, 255}
	evenDayColor   = color.NRGBA{240, 240, 240, 255}
	oddDayColor    = color.NRGBA{228, 228, 228, 255}
	todayBgColor   = color.NRGBA{255, 230, 200, 255}
	pastDayColor   = color.NRGBA{215, 215, 215, 255}
	entryTextColor = color.RGBA{25, 28, 32, 255}

	scheduledColor = color.RGBA{133, 193, 85, 230}
	holidayColor   = color.RGBA{158, 158, 158, 210}
	postedColor    = color.RGBA{120, 170, 255, 230}

	legendTextColor = color.RGBA{90, 95, 100, 255}
)

var weekdayLabels = [totalDaysInWeek]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Item одно вхождение для отрисовки
type Item struct {
	Title     string
	PublishAt time.Time
	Status    model.OccurrenceStatus
}

// GenerateCalendarImage рисует сетку ближайших четырёх недель с вхождениями,
// раскрашенными по статусу, и возвращает PNG
func GenerateCalendarImage(now time.Time, loc *time.Location, items []Item) ([]byte, error) {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	gridStart := startOfWeek(today)

	byDay := groupItemsByDay(items, loc)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	drawHeader(dc, gridStart)
	drawGrid(dc, gridStart, today, byDay)
	drawLegend(dc)

	return encodeImage(dc)
}

// startOfWeek нормализует дату к понедельнику её недели
func startOfWeek(date time.Time) time.Time {
	daysSinceMonday := int(date.Weekday()) - 1
	if date.Weekday() == time.Sunday {
		daysSinceMonday = 6
	}
	return date.AddDate(0, 0, -daysSinceMonday)
}

// dayKey ключ группировки по локальной календарной дате
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// groupItemsByDay раскладывает вхождения по локальным датам
func groupItemsByDay(items []Item, loc *time.Location) map[string][]Item {
	byDay := make(map[string][]Item)
	for _, item := range items {
		key := dayKey(item.PublishAt.In(loc))
		byDay[key] = append(byDay[key], item)
	}
	return byDay
}

// drawHeader рисует заголовок с диапазоном отображаемых недель
func drawHeader(dc *gg.Context, gridStart time.Time) {
	gridEnd := gridStart.AddDate(0, 0, weeksShown*totalDaysInWeek-1)
	title := fmt.Sprintf("Upcoming assignments: %s - %s",
		gridStart.Format("02.01.2006"), gridEnd.Format("02.01.2006"))

	dc.SetColor(headerColor)
	dc.DrawStringAnchored(title, imageWidth/2, headerHeight/3, 0.5, 0.5)

	// Подписи дней недели
	dayWidth := float64(imageWidth) / totalDaysInWeek
	dc.SetColor(dayLabelColor)
	for i, label := range weekdayLabels {
		x := dayWidth*float64(i) + dayWidth/2
		dc.DrawStringAnchored(label, x, float64(headerHeight)-12, 0.5, 0.5)
	}
}

// drawGrid рисует сетку недель с ячейками дней и вхождениями
func drawGrid(dc *gg.Context, gridStart, today time.Time, byDay map[string][]Item) {
	dayWidth := float64(imageWidth) / totalDaysInWeek
	gridHeight := float64(imageHeight - headerHeight - legendHeight)
	weekHeight := gridHeight / weeksShown

	for week := 0; week < weeksShown; week++ {
		for dow := 0; dow < totalDaysInWeek; dow++ {
			day := gridStart.AddDate(0, 0, week*totalDaysInWeek+dow)
			x := dayWidth * float64(dow)
			y := float64(headerHeight) + weekHeight*float64(week)

			drawDayCell(dc, day, today, x, y, dayWidth, weekHeight, byDay[dayKey(day)])
		}
	}

	// Линии сетки поверх ячеек
	dc.SetColor(gridLineColor)
	dc.SetLineWidth(1)
	for dow := 1; dow < totalDaysInWeek; dow++ {
		x := dayWidth * float64(dow)
		dc.DrawLine(x, headerHeight, x, float64(imageHeight-legendHeight))
		dc.Stroke()
	}
	for week := 0; week <= weeksShown; week++ {
		y := float64(headerHeight) + weekHeight*float64(week)
		dc.DrawLine(0, y, imageWidth, y)
		dc.Stroke()
	}
}

// drawDayCell рисует одну ячейку дня с номером даты и вхождениями
func drawDayCell(dc *gg.Context, day, today time.Time, x, y, w, h float64, items []Item) {
	bg := evenDayColor
	if day.Day()%2 == 1 {
		bg = oddDayColor
	}
	if day.Before(today) {
		bg = pastDayColor
	}
	if day.Equal(today) {
		bg = todayBgColor
	}

	dc.SetColor(bg)
	dc.DrawRectangle(x, y, w, h)
	dc.Fill()

	dc.SetColor(dayLabelColor)
	dc.DrawString(fmt.Sprintf("%d", day.Day()), x+cellPadding, y+cellPadding+10)

	entryY := y + cellPadding + 20
	for i, item := range items {
		if i >= maxEntriesPerDay {
			dc.SetColor(dayLabelColor)
			dc.DrawString(fmt.Sprintf("+%d more", len(items)-maxEntriesPerDay), x+cellPadding, entryY+12)
			break
		}

		dc.SetColor(statusColor(item.Status))
		dc.DrawRoundedRectangle(x+cellPadding, entryY, w-2*cellPadding, entryHeight, entryRadius)
		dc.Fill()

		label := fmt.Sprintf("%s %s", item.PublishAt.In(day.Location()).Format("15:04"), truncate(item.Title))
		dc.SetColor(entryTextColor)
		dc.DrawString(label, x+cellPadding+5, entryY+entryHeight/2+4)

		entryY += entryHeight + entrySpacing
	}
}

// drawLegend рисует легенду статусов внизу изображения
func drawLegend(dc *gg.Context) {
	type legendEntry struct {
		label string
		col   color.Color
	}
	entries := []legendEntry{
		{"scheduled", scheduledColor},
		{"holiday skip", holidayColor},
		{"posted", postedColor},
	}

	y := float64(imageHeight - legendHeight/2)
	x := 30.0
	for _, e := range entries {
		dc.SetColor(e.col)
		dc.DrawRoundedRectangle(x, y-8, 16, 16, 3)
		dc.Fill()

		dc.SetColor(legendTextColor)
		dc.DrawString(e.label, x+24, y+4)
		x += 160
	}
}

// statusColor цвет вхождения по статусу
func statusColor(status model.OccurrenceStatus) color.Color {
	switch status {
	case model.OccurrenceStatusSkippedHoliday:
		return holidayColor
	case model.OccurrenceStatusPosted:
		return postedColor
	default:
		return scheduledColor
	}
}

// truncate обрезает заголовок до ширины ячейки
func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxTitleChars {
		return s
	}
	return string(runes[:maxTitleChars-1]) + "…"
}

// encodeImage кодирует холст в PNG
func encodeImage(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode preview image: %w", err)
	}
	return buf.Bytes(), nil
}
