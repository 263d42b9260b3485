package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classtrack/assignment_engine/internal/model"
)

var testLoc = time.FixedZone("EET", 2*60*60)

type pairKey struct {
	teacherID int64
	courseID  int64
}

type fakeRecurrenceStore struct {
	recs   map[pairKey]*model.Recurrence
	nextID int64
}

func newFakeRecurrenceStore() *fakeRecurrenceStore {
	return &fakeRecurrenceStore{recs: make(map[pairKey]*model.Recurrence)}
}

func (f *fakeRecurrenceStore) Upsert(_ context.Context, rec *model.Recurrence) error {
	key := pairKey{rec.TeacherID, rec.CourseID}
	if existing, ok := f.recs[key]; ok {
		rec.ID = existing.ID
	} else {
		f.nextID++
		rec.ID = f.nextID
	}
	stored := *rec
	f.recs[key] = &stored
	return nil
}

func (f *fakeRecurrenceStore) GetByTeacherCourse(_ context.Context, teacherID, courseID int64) (*model.Recurrence, error) {
	return f.recs[pairKey{teacherID, courseID}], nil
}

func (f *fakeRecurrenceStore) GetAllActive(_ context.Context) ([]*model.Recurrence, error) {
	var out []*model.Recurrence
	for _, rec := range f.recs {
		if !rec.IsPaused {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeTemplateStore struct {
	templates []*model.AssignmentTemplate
	nextID    int64
	failFor   map[int64]bool // teacher_id -> ошибка чтения
}

func newFakeTemplateStore() *fakeTemplateStore {
	return &fakeTemplateStore{failFor: make(map[int64]bool)}
}

func (f *fakeTemplateStore) Create(_ context.Context, tmpl *model.AssignmentTemplate) error {
	f.nextID++
	tmpl.ID = f.nextID
	stored := *tmpl
	f.templates = append(f.templates, &stored)
	return nil
}

func (f *fakeTemplateStore) Update(_ context.Context, tmpl *model.AssignmentTemplate) error {
	for i, existing := range f.templates {
		if existing.ID == tmpl.ID {
			stored := *tmpl
			f.templates[i] = &stored
			return nil
		}
	}
	return fmt.Errorf("template not found")
}

func (f *fakeTemplateStore) GetByID(_ context.Context, id int64) (*model.AssignmentTemplate, error) {
	for _, tmpl := range f.templates {
		if tmpl.ID == id {
			return tmpl, nil
		}
	}
	return nil, nil
}

func (f *fakeTemplateStore) GetByTeacherCourse(_ context.Context, teacherID, courseID int64) ([]*model.AssignmentTemplate, error) {
	var out []*model.AssignmentTemplate
	for _, tmpl := range f.templates {
		if tmpl.TeacherID == teacherID && tmpl.CourseID == courseID {
			out = append(out, tmpl)
		}
	}
	return out, nil
}

func (f *fakeTemplateStore) GetActiveByTeacherCourse(_ context.Context, teacherID, courseID int64) ([]*model.AssignmentTemplate, error) {
	if f.failFor[teacherID] {
		return nil, fmt.Errorf("connection refused")
	}
	var out []*model.AssignmentTemplate
	for _, tmpl := range f.templates {
		if tmpl.TeacherID == teacherID && tmpl.CourseID == courseID && tmpl.IsActive {
			out = append(out, tmpl)
		}
	}
	return out, nil
}

func (f *fakeTemplateStore) SetActive(_ context.Context, id int64, active bool) error {
	for _, tmpl := range f.templates {
		if tmpl.ID == id {
			tmpl.IsActive = active
			return nil
		}
	}
	return fmt.Errorf("template not found")
}

type fakeOccurrenceStore struct {
	occurrences map[string]model.OccurrenceStatus
}

func newFakeOccurrenceStore() *fakeOccurrenceStore {
	return &fakeOccurrenceStore{occurrences: make(map[string]model.OccurrenceStatus)}
}

func occurrenceKey(templateID int64, publishAt time.Time) string {
	return fmt.Sprintf("%d|%d", templateID, publishAt.UTC().Unix())
}

func (f *fakeOccurrenceStore) Upsert(_ context.Context, templateID int64, publishAt time.Time, status model.OccurrenceStatus) (bool, error) {
	key := occurrenceKey(templateID, publishAt)
	if _, ok := f.occurrences[key]; ok {
		return false, nil
	}
	f.occurrences[key] = status
	return true, nil
}

func (f *fakeOccurrenceStore) ListVisibleByCourse(_ context.Context, _ int64) ([]*model.VisibleOccurrence, error) {
	return nil, nil
}

func (f *fakeOccurrenceStore) countByStatus(status model.OccurrenceStatus) int {
	n := 0
	for _, s := range f.occurrences {
		if s == status {
			n++
		}
	}
	return n
}

func newTestScheduleService(recs *fakeRecurrenceStore, templates *fakeTemplateStore, occs *fakeOccurrenceStore, lookahead int) *ScheduleService {
	return NewScheduleService(recs, templates, occs, testLoc, lookahead, zap.NewNop())
}

func addTemplate(t *testing.T, templates *fakeTemplateStore, teacherID, courseID int64, title string) *model.AssignmentTemplate {
	t.Helper()
	tmpl := &model.AssignmentTemplate{
		TeacherID: teacherID,
		CourseID:  courseID,
		Title:     title,
		IsActive:  true,
	}
	require.NoError(t, templates.Create(context.Background(), tmpl))
	return tmpl
}

func TestSaveRecurrenceValidation(t *testing.T) {
	svc := newTestScheduleService(newFakeRecurrenceStore(), newFakeTemplateStore(), newFakeOccurrenceStore(), 4)
	ctx := context.Background()

	cases := []struct {
		name     string
		weekdays model.Weekdays
		hour     int
		minute   int
		paused   bool
		holidays []model.DateRange
	}{
		{name: "empty weekdays when active", weekdays: nil, hour: 10},
		{name: "weekday out of range", weekdays: model.Weekdays{7}, hour: 10},
		{name: "hour out of range", weekdays: model.Weekdays{1}, hour: 24},
		{name: "negative hour", weekdays: model.Weekdays{1}, hour: -1},
		{name: "minute out of range", weekdays: model.Weekdays{1}, hour: 10, minute: 60},
		{
			name:     "inverted holiday range",
			weekdays: model.Weekdays{1},
			hour:     10,
			holidays: []model.DateRange{{
				Start: time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC),
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SaveRecurrence(ctx, 1, 2, tc.weekdays, tc.hour, tc.minute, tc.paused, tc.holidays)
			assert.Error(t, err)
		})
	}

	// Пауза с пустыми днями недели допустима
	rec, err := svc.SaveRecurrence(ctx, 1, 2, nil, 10, 0, true, nil)
	require.NoError(t, err)
	assert.True(t, rec.IsPaused)
}

func TestSaveRecurrenceTriggersMaterialization(t *testing.T) {
	recs := newFakeRecurrenceStore()
	templates := newFakeTemplateStore()
	occs := newFakeOccurrenceStore()
	svc := newTestScheduleService(recs, templates, occs, 4)
	ctx := context.Background()

	addTemplate(t, templates, 1, 2, "Weekly homework")

	rec, err := svc.SaveRecurrence(ctx, 1, 2, model.Weekdays{int(time.Monday)}, 10, 0, false, nil)
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)

	// Сохранение сразу наполнило леджер
	assert.Len(t, occs.occurrences, 4)
}

func TestMaterializePairIdempotent(t *testing.T) {
	recs := newFakeRecurrenceStore()
	templates := newFakeTemplateStore()
	occs := newFakeOccurrenceStore()
	svc := newTestScheduleService(recs, templates, occs, 4)
	ctx := context.Background()

	addTemplate(t, templates, 1, 2, "Weekly homework")
	_, err := svc.SaveRecurrence(ctx, 1, 2, model.Weekdays{int(time.Monday)}, 10, 0, false, nil)
	require.NoError(t, err)

	countAfterFirst := len(occs.occurrences)
	require.NotZero(t, countAfterFirst)

	// Повторный проход не создаёт дубликатов
	inserted, err := svc.MaterializePair(ctx, 1, 2)
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Len(t, occs.occurrences, countAfterFirst)
}

func TestMaterializePairPausedYieldsNothing(t *testing.T) {
	recs := newFakeRecurrenceStore()
	templates := newFakeTemplateStore()
	occs := newFakeOccurrenceStore()
	svc := newTestScheduleService(recs, templates, occs, 4)
	ctx := context.Background()

	addTemplate(t, templates, 1, 2, "Weekly homework")
	_, err := svc.SaveRecurrence(ctx, 1, 2, model.Weekdays{int(time.Monday)}, 10, 0, true, nil)
	require.NoError(t, err)

	assert.Empty(t, occs.occurrences)
}

func TestMaterializePairUnknownPair(t *testing.T) {
	svc := newTestScheduleService(newFakeRecurrenceStore(), newFakeTemplateStore(), newFakeOccurrenceStore(), 4)

	inserted, err := svc.MaterializePair(context.Background(), 99, 99)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestMaterializeAllIsolatesPairFailures(t *testing.T) {
	recs := newFakeRecurrenceStore()
	templates := newFakeTemplateStore()
	occs := newFakeOccurrenceStore()
	svc := newTestScheduleService(recs, templates, occs, 4)
	ctx := context.Background()

	addTemplate(t, templates, 1, 2, "Math homework")
	addTemplate(t, templates, 3, 4, "History essay")

	_, err := svc.SaveRecurrence(ctx, 1, 2, model.Weekdays{int(time.Monday)}, 10, 0, false, nil)
	require.NoError(t, err)
	_, err = svc.SaveRecurrence(ctx, 3, 4, model.Weekdays{int(time.Tuesday)}, 9, 30, false, nil)
	require.NoError(t, err)

	// Сбрасываем леджер и ломаем чтение шаблонов первого учителя
	occs.occurrences = make(map[string]model.OccurrenceStatus)
	templates.failFor[1] = true

	require.NoError(t, svc.MaterializeAll(ctx))

	// Пара второго учителя материализована несмотря на сбой первой
	assert.Len(t, occs.occurrences, 4)
}

func TestMaterializeRecordsHolidayOccurrences(t *testing.T) {
	recs := newFakeRecurrenceStore()
	templates := newFakeTemplateStore()
	occs := newFakeOccurrenceStore()
	svc := newTestScheduleService(recs, templates, occs, 4)
	ctx := context.Background()

	addTemplate(t, templates, 1, 2, "Weekly homework")

	// Каникулы закрывают все даты ближайших четырёх месяцев
	holidays := []model.DateRange{{
		Start: time.Now().AddDate(0, 0, -1),
		End:   time.Now().AddDate(0, 4, 0),
	}}
	_, err := svc.SaveRecurrence(ctx, 1, 2, model.Weekdays{int(time.Monday)}, 10, 0, false, holidays)
	require.NoError(t, err)

	// Подавленные вхождения записаны в леджер, а не отброшены
	assert.Len(t, occs.occurrences, 4)
	assert.Equal(t, 4, occs.countByStatus(model.OccurrenceStatusSkippedHoliday))
	assert.Zero(t, occs.countByStatus(model.OccurrenceStatusScheduled))
}

func TestPreviewOccurrencesSortedAcrossTemplates(t *testing.T) {
	recs := newFakeRecurrenceStore()
	templates := newFakeTemplateStore()
	occs := newFakeOccurrenceStore()
	svc := newTestScheduleService(recs, templates, occs, 6)
	ctx := context.Background()

	addTemplate(t, templates, 1, 2, "Math homework")
	addTemplate(t, templates, 1, 2, "Reading assignment")

	_, err := svc.SaveRecurrence(ctx, 1, 2, model.Weekdays{int(time.Monday), int(time.Thursday)}, 10, 0, false, nil)
	require.NoError(t, err)

	items, err := svc.PreviewOccurrences(ctx, 1, 2)
	require.NoError(t, err)
	require.NotEmpty(t, items)

	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].PublishAt.Before(items[i-1].PublishAt),
			"items must be sorted by publish_at ascending")
	}

	// Предпросмотр ничего не пишет в леджер сверх сделанного при сохранении
	countBefore := len(occs.occurrences)
	_, err = svc.PreviewOccurrences(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, occs.occurrences, countBefore)
}

func TestPreviewOccurrencesUnknownPair(t *testing.T) {
	svc := newTestScheduleService(newFakeRecurrenceStore(), newFakeTemplateStore(), newFakeOccurrenceStore(), 4)

	items, err := svc.PreviewOccurrences(context.Background(), 99, 99)
	require.NoError(t, err)
	assert.Empty(t, items)
}
