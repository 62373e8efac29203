package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurak-emp/attendance/internal/entity"
)

// fakeAttendanceRepo хранит записи в памяти и воспроизводит семантику
// postgres-репозитория: уникальность штрих-кода и идемпотентный check-in
type fakeAttendanceRepo struct {
	mu         sync.Mutex
	nextID     int64
	byID       map[int64]*entity.Attendance
	byBarcode  map[string]*entity.Attendance
	failCreate int // сколько ближайших Create вернут коллизию
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{
		byID:      make(map[int64]*entity.Attendance),
		byBarcode: make(map[string]*entity.Attendance),
	}
}

func (r *fakeAttendanceRepo) Create(ctx context.Context, attendance *entity.Attendance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failCreate > 0 {
		r.failCreate--
		return entity.ErrBarcodeExists
	}
	if _, exists := r.byBarcode[attendance.Barcode]; exists {
		return entity.ErrBarcodeExists
	}

	r.nextID++
	attendance.ID = r.nextID
	attendance.CreatedAt = time.Now()

	stored := *attendance
	r.byID[attendance.ID] = &stored
	r.byBarcode[attendance.Barcode] = &stored
	return nil
}

func (r *fakeAttendanceRepo) GetByID(ctx context.Context, id int64) (*entity.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, entity.ErrAttendeeNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAttendanceRepo) GetByBarcode(ctx context.Context, barcode string) (*entity.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byBarcode[barcode]
	if !ok {
		return nil, entity.ErrAttendeeNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAttendanceRepo) CheckInByBarcode(ctx context.Context, barcode string, at time.Time) (*entity.Attendance, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byBarcode[barcode]
	if !ok {
		return nil, false, entity.ErrAttendeeNotFound
	}

	if a.IsPresent {
		copied := *a
		return &copied, true, nil
	}

	a.IsPresent = true
	a.CheckinTime = &at
	copied := *a
	return &copied, false, nil
}

func (r *fakeAttendanceRepo) GetPresentByEvent(ctx context.Context, eventID int64) ([]*entity.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.Attendance
	for id := int64(1); id <= r.nextID; id++ {
		a, ok := r.byID[id]
		if ok && a.EventID == eventID && a.IsPresent {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeAttendanceRepo) GetByEventID(ctx context.Context, eventID int64) ([]*entity.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.Attendance
	for id := int64(1); id <= r.nextID; id++ {
		a, ok := r.byID[id]
		if ok && a.EventID == eventID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeAttendanceRepo) MarkNotified(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return entity.ErrAttendeeNotFound
	}
	a.Notified = true
	return nil
}

func (r *fakeAttendanceRepo) GetUnnotified(ctx context.Context, before time.Time, limit int) ([]*entity.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.Attendance
	for id := int64(1); id <= r.nextID && len(out) < limit; id++ {
		a, ok := r.byID[id]
		if ok && !a.Notified && a.CreatedAt.Before(before) {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeAttendanceRepo) GetEventAttendanceStats(ctx context.Context, eventID int64) (*entity.EventAttendanceStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &entity.EventAttendanceStats{
		EventID:       eventID,
		ByAffiliation: make(map[string]int64),
	}
	for _, a := range r.byID {
		if a.EventID != eventID {
			continue
		}
		stats.TotalRegistered++
		stats.ByAffiliation[string(a.Affiliation)]++
		if a.IsPresent {
			stats.TotalPresent++
		}
		if a.Notified {
			stats.TotalNotified++
		}
	}
	return stats, nil
}

type fakeEventRepo struct {
	events map[int64]*entity.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[int64]*entity.Event)}
}

func (r *fakeEventRepo) Create(ctx context.Context, event *entity.Event) error {
	event.ID = int64(len(r.events) + 1)
	r.events[event.ID] = event
	return nil
}

func (r *fakeEventRepo) GetByID(ctx context.Context, id int64) (*entity.Event, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, entity.ErrEventNotFound
	}
	return e, nil
}

func (r *fakeEventRepo) GetAll(ctx context.Context) ([]*entity.Event, error) {
	var out []*entity.Event
	for _, e := range r.events {
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeEventRepo) UpdateStatus(ctx context.Context, id int64, status entity.EventStatus) error {
	e, ok := r.events[id]
	if !ok {
		return entity.ErrEventNotFound
	}
	e.Status = status
	return nil
}

func (r *fakeEventRepo) Delete(ctx context.Context, id int64) error {
	delete(r.events, id)
	return nil
}

// fakePublisher собирает опубликованные задачи; fail=true имитирует
// недоступный Redis
type fakePublisher struct {
	mu    sync.Mutex
	tasks []*Task
	fail  bool
}

func (p *fakePublisher) Publish(ctx context.Context, task *Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail {
		return fmt.Errorf("queue unavailable")
	}
	p.tasks = append(p.tasks, task)
	return nil
}

func (p *fakePublisher) published() []*Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Task(nil), p.tasks...)
}

func newTestService(t *testing.T) (AttendanceService, *fakeAttendanceRepo, *fakeEventRepo, *fakePublisher) {
	t.Helper()

	attendanceRepo := newFakeAttendanceRepo()
	eventRepo := newFakeEventRepo()
	publisher := &fakePublisher{}

	eventRepo.events[1] = &entity.Event{
		ID:     1,
		Name:   "Engineering Open Day",
		Status: entity.EventStatusApproved,
	}

	return NewAttendanceService(attendanceRepo, eventRepo, publisher), attendanceRepo, eventRepo, publisher
}

func validRegisterRequest() *RegisterRequest {
	return &RegisterRequest{
		EventID:     1,
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "ada@example.edu",
		PhoneNumber: "+971501234567",
		Affiliation: "faculty",
		Department:  "Computer Science",
	}
}

// TestRegister тестирует регистрацию участника
func TestRegister(t *testing.T) {
	svc, _, _, publisher := newTestService(t)

	result, err := svc.Register(context.Background(), validRegisterRequest())
	require.NoError(t, err)
	require.NotNil(t, result.Attendance)

	assert.NotZero(t, result.Attendance.ID)
	assert.Len(t, result.Attendance.Barcode, 10)
	assert.False(t, result.Attendance.IsPresent)
	assert.Nil(t, result.Attendance.CheckinTime)
	assert.Equal(t, NotificationQueued, result.Notification)

	// Задача доставки опубликована с id записи и названием мероприятия
	tasks := publisher.published()
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskTypeSendBarcode, tasks[0].Type)
	assert.Equal(t, result.Attendance.ID, tasks[0].Data["attendance_id"])
	assert.Equal(t, "Engineering Open Day", tasks[0].Data["event_name"])
}

// TestRegisterValidation тестирует отказы регистрации
func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(req *RegisterRequest)
		wantErr error
	}{
		{
			name:    "unknown event",
			modify:  func(req *RegisterRequest) { req.EventID = 99 },
			wantErr: entity.ErrEventNotFound,
		},
		{
			name:    "invalid affiliation",
			modify:  func(req *RegisterRequest) { req.Affiliation = "alumni" },
			wantErr: entity.ErrInvalidAffiliation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _ := newTestService(t)

			req := validRegisterRequest()
			tt.modify(req)

			result, err := svc.Register(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
		})
	}
}

// TestRegisterBarcodeCollision тестирует повторную генерацию при коллизии
func TestRegisterBarcodeCollision(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	// Две коллизии подряд, третья попытка проходит
	repo.failCreate = 2

	result, err := svc.Register(context.Background(), validRegisterRequest())
	require.NoError(t, err)
	assert.Len(t, result.Attendance.Barcode, 10)
}

// TestRegisterBarcodeExhausted тестирует исчерпание попыток вставки
func TestRegisterBarcodeExhausted(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	repo.failCreate = 3

	result, err := svc.Register(context.Background(), validRegisterRequest())
	assert.ErrorIs(t, err, entity.ErrBarcodeExhausted)
	assert.Nil(t, result)
}

// TestRegisterDeliveryFailure: сбой очереди не откатывает регистрацию
func TestRegisterDeliveryFailure(t *testing.T) {
	svc, repo, _, publisher := newTestService(t)
	publisher.fail = true

	result, err := svc.Register(context.Background(), validRegisterRequest())
	require.NoError(t, err)
	assert.Equal(t, NotificationFailed, result.Notification)

	// Запись существует несмотря на сбой доставки
	stored, err := repo.GetByID(context.Background(), result.Attendance.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Attendance.Barcode, stored.Barcode)
	assert.False(t, stored.Notified)
}

// TestCheckIn тестирует первый скан штрих-кода
func TestCheckIn(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	reg, err := svc.Register(context.Background(), validRegisterRequest())
	require.NoError(t, err)

	result, err := svc.CheckIn(context.Background(), reg.Attendance.Barcode)
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", result.Name)
	assert.Equal(t, entity.AffiliationFaculty, result.Role)
	assert.False(t, result.AlreadyPresent)
	assert.False(t, result.CheckinTime.IsZero())
}

// TestCheckInIdempotent: повторный скан возвращает исходное время отметки
func TestCheckInIdempotent(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	reg, err := svc.Register(context.Background(), validRegisterRequest())
	require.NoError(t, err)

	first, err := svc.CheckIn(context.Background(), reg.Attendance.Barcode)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	second, err := svc.CheckIn(context.Background(), reg.Attendance.Barcode)
	require.NoError(t, err)

	assert.True(t, second.AlreadyPresent)
	assert.Equal(t, first.CheckinTime, second.CheckinTime)
	assert.Equal(t, first.Name, second.Name)
}

// TestCheckInUnknownBarcode: неизвестный код ничего не меняет
func TestCheckInUnknownBarcode(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	reg, err := svc.Register(context.Background(), validRegisterRequest())
	require.NoError(t, err)

	result, err := svc.CheckIn(context.Background(), "FFFFFFFFFF")
	assert.ErrorIs(t, err, entity.ErrAttendeeNotFound)
	assert.Nil(t, result)

	stored, err := repo.GetByID(context.Background(), reg.Attendance.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPresent)
}

// TestCheckInConcurrent: при параллельных сканах одного кода ровно один
// проходит как первый, остальные видят то же время отметки
func TestCheckInConcurrent(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	reg, err := svc.Register(context.Background(), validRegisterRequest())
	require.NoError(t, err)

	const scans = 20

	var wg sync.WaitGroup
	results := make([]*entity.CheckInResult, scans)
	errs := make([]error, scans)

	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.CheckIn(context.Background(), reg.Attendance.Barcode)
		}(i)
	}
	wg.Wait()

	firstScans := 0
	for i, res := range results {
		require.NoError(t, errs[i])
		require.NotNil(t, res)
		if !res.AlreadyPresent {
			firstScans++
		}
		assert.Equal(t, results[0].CheckinTime, res.CheckinTime)
	}
	assert.Equal(t, 1, firstScans)
}

// TestGetPresent тестирует выборку отмеченных участников
func TestGetPresent(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	// Два зарегистрированных, один отмечен
	first, err := svc.Register(context.Background(), validRegisterRequest())
	require.NoError(t, err)

	secondReq := validRegisterRequest()
	secondReq.FirstName = "Grace"
	secondReq.LastName = "Hopper"
	secondReq.Email = "grace@example.edu"
	_, err = svc.Register(context.Background(), secondReq)
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), first.Attendance.Barcode)
	require.NoError(t, err)

	present, err := svc.GetPresent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, present, 1)
	assert.Equal(t, first.Attendance.ID, present[0].ID)
}

// TestGetPresentUnknownEvent: неизвестное мероприятие дает пустой список
func TestGetPresentUnknownEvent(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	present, err := svc.GetPresent(context.Background(), 404)
	require.NoError(t, err)
	assert.NotNil(t, present)
	assert.Empty(t, present)
}

// TestRedispatchPending тестирует переотправку зависших уведомлений
func TestRedispatchPending(t *testing.T) {
	svc, repo, _, publisher := newTestService(t)

	reg, err := svc.Register(context.Background(), validRegisterRequest())
	require.NoError(t, err)

	// Уведомленная запись переотправке не подлежит
	notifiedReq := validRegisterRequest()
	notifiedReq.Email = "grace@example.edu"
	notified, err := svc.Register(context.Background(), notifiedReq)
	require.NoError(t, err)
	require.NoError(t, repo.MarkNotified(context.Background(), notified.Attendance.ID))

	before := publisher.published()

	count, err := svc.RedispatchPending(context.Background(), time.Now().Add(time.Minute), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	after := publisher.published()
	require.Len(t, after, len(before)+1)
	redispatched := after[len(after)-1]
	assert.Equal(t, TaskTypeSendBarcode, redispatched.Type)
	assert.Equal(t, reg.Attendance.ID, redispatched.Data["attendance_id"])
}

// TestRedispatchPendingSkipsFreshRows: записи моложе порога не трогаем,
// их задачи еще могут штатно висеть в очереди
func TestRedispatchPendingSkipsFreshRows(t *testing.T) {
	svc, repo, _, publisher := newTestService(t)

	stale, err := svc.Register(context.Background(), validRegisterRequest())
	require.NoError(t, err)

	freshReq := validRegisterRequest()
	freshReq.Email = "grace@example.edu"
	fresh, err := svc.Register(context.Background(), freshReq)
	require.NoError(t, err)

	// Старим первую запись; вторая остается свежее порога
	repo.mu.Lock()
	repo.byID[stale.Attendance.ID].CreatedAt = time.Now().Add(-time.Hour)
	repo.mu.Unlock()

	countBefore := len(publisher.published())

	count, err := svc.RedispatchPending(context.Background(), time.Now().Add(-10*time.Minute), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	tasks := publisher.published()
	require.Len(t, tasks, countBefore+1)
	assert.Equal(t, stale.Attendance.ID, tasks[len(tasks)-1].Data["attendance_id"])
	for _, task := range tasks[countBefore:] {
		assert.NotEqual(t, fresh.Attendance.ID, task.Data["attendance_id"])
	}
}

// TestGetEventStats тестирует агрегированную статистику
func TestGetEventStats(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	reg, err := svc.Register(context.Background(), validRegisterRequest())
	require.NoError(t, err)

	studentReq := validRegisterRequest()
	studentReq.Email = "student@example.edu"
	studentReq.Affiliation = "student"
	_, err = svc.Register(context.Background(), studentReq)
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), reg.Attendance.Barcode)
	require.NoError(t, err)
	require.NoError(t, repo.MarkNotified(context.Background(), reg.Attendance.ID))

	stats, err := svc.GetEventStats(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TotalRegistered)
	assert.Equal(t, int64(1), stats.TotalPresent)
	assert.Equal(t, int64(1), stats.TotalNotified)
	assert.Equal(t, int64(1), stats.ByAffiliation["faculty"])
	assert.Equal(t, int64(1), stats.ByAffiliation["student"])
}
