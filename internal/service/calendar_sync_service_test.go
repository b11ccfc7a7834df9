package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/noah-isme/sidang-api/internal/models"
	"github.com/noah-isme/sidang-api/pkg/calendar"
)

type stubTokenStore struct {
	token  *models.CalendarToken
	getErr error

	updatedAccess  string
	updatedRefresh string
	upserted       *models.CalendarToken
	deletedUser    string
}

func (s *stubTokenStore) GetByUser(_ context.Context, _ string) (*models.CalendarToken, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	copied := *s.token
	return &copied, nil
}

func (s *stubTokenStore) Upsert(_ context.Context, token *models.CalendarToken) error {
	s.upserted = token
	return nil
}

func (s *stubTokenStore) UpdateTokens(_ context.Context, _ string, accessToken, refreshToken string, _ time.Time) error {
	s.updatedAccess = accessToken
	s.updatedRefresh = refreshToken
	return nil
}

func (s *stubTokenStore) Delete(_ context.Context, userID string) error {
	s.deletedUser = userID
	return nil
}

type stubProvider struct {
	mu          sync.Mutex
	event       *calendar.Event
	createErr   error
	createFails int
	updateErr   error

	createdWith string
	updatedID   string
	payload     calendar.EventPayload
}

func (s *stubProvider) CreateEvent(_ context.Context, accessToken string, payload calendar.EventPayload) (*calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createFails > 0 {
		s.createFails--
		return nil, &calendar.APIError{StatusCode: 503, Body: "unavailable"}
	}
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.createdWith = accessToken
	s.payload = payload
	return s.event, nil
}

func (s *stubProvider) UpdateEvent(_ context.Context, accessToken, eventID string, payload calendar.EventPayload) (*calendar.Event, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.createdWith = accessToken
	s.updatedID = eventID
	s.payload = payload
	return s.event, nil
}

type stubRefresher struct {
	token  *oauth2.Token
	err    error
	called bool
}

func (s *stubRefresher) Refresh(_ context.Context, _ string) (*oauth2.Token, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

type stubEventIDWriter struct {
	mu         sync.Mutex
	setErr     error
	gotExamID  string
	gotEventID *string
}

func (s *stubEventIDWriter) SetCalendarEventID(_ context.Context, examID string, eventID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.gotExamID = examID
	s.gotEventID = eventID
	return nil
}

func (s *stubEventIDWriter) examID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotExamID
}

type syncFixture struct {
	tokens    *stubTokenStore
	provider  *stubProvider
	refresher *stubRefresher
	exams     *stubEventIDWriter
	svc       *CalendarSyncService
}

func newSyncFixture() *syncFixture {
	f := &syncFixture{
		tokens: &stubTokenStore{token: &models.CalendarToken{
			UserID:       "admin-1",
			AccessToken:  "fresh-access",
			RefreshToken: "refresh-1",
			Expiry:       time.Now().Add(time.Hour),
		}},
		provider:  &stubProvider{event: &calendar.Event{ID: "evt-9", HTMLLink: "https://cal/evt-9"}},
		refresher: &stubRefresher{token: &oauth2.Token{AccessToken: "refreshed-access", Expiry: time.Now().Add(time.Hour)}},
		exams:     &stubEventIDWriter{},
	}
	users := &stubParticipants{users: map[string]models.User{
		"stud-1": {ID: "stud-1", Email: "stud-1@kampus.ac.id", FullName: "Budi Santoso", Role: models.RoleStudent, Active: true},
		"lect-9": lecturer("lect-9"),
		"lect-1": lecturer("lect-1"),
		"lect-2": lecturer("lect-2"),
	}}
	rooms := &stubRoomReader{rooms: map[string]*models.Room{"room-1": {ID: "room-1", Name: "R. Sidang 1"}}}
	f.svc = NewCalendarSyncService(f.tokens, f.provider, f.refresher, f.exams, users, rooms, 5*time.Minute, nil, nil)
	return f
}

func scheduledDetail() *models.ExamDetail {
	start := time.Date(2026, 3, 12, 9, 0, 0, 0, TimeZoneWIB)
	end := time.Date(2026, 3, 12, 11, 0, 0, 0, TimeZoneWIB)
	roomID := "room-1"
	return &models.ExamDetail{
		Exam: models.Exam{
			ID:           "exam-1",
			StudentID:    "stud-1",
			SupervisorID: "lect-9",
			Title:        "Analisis Sistem",
			Status:       models.StatusDijadwalkan,
			StartTime:    &start,
			EndTime:      &end,
			RoomID:       &roomID,
		},
		ExaminerIDs: []string{"lect-1", "lect-2"},
	}
}

func TestSyncCreatesEventWithFreshToken(t *testing.T) {
	f := newSyncFixture()

	result := f.svc.SyncExamSchedule(context.Background(), "admin-1", scheduledDetail())

	assert.True(t, result.Synced)
	assert.Equal(t, "evt-9", result.EventID)
	assert.Equal(t, "https://cal/evt-9", result.Link)
	assert.False(t, f.refresher.called)
	assert.Equal(t, "fresh-access", f.provider.createdWith)

	assert.Equal(t, "exam-1", f.exams.gotExamID)
	require.NotNil(t, f.exams.gotEventID)
	assert.Equal(t, "evt-9", *f.exams.gotEventID)

	assert.Equal(t, "Ujian Skripsi: Budi Santoso", f.provider.payload.Title)
	assert.Equal(t, "R. Sidang 1", f.provider.payload.Location)
	assert.Len(t, f.provider.payload.Attendees, 4)
}

func TestSyncUpdatesExistingEvent(t *testing.T) {
	f := newSyncFixture()
	detail := scheduledDetail()
	eventID := "evt-old"
	detail.CalendarEventID = &eventID

	result := f.svc.SyncExamSchedule(context.Background(), "admin-1", detail)

	assert.True(t, result.Synced)
	assert.Equal(t, "evt-old", f.provider.updatedID)
	assert.Empty(t, f.exams.gotExamID)
}

func TestSyncUnlinkedAccountNeedsReauth(t *testing.T) {
	f := newSyncFixture()
	f.tokens.getErr = sql.ErrNoRows

	result := f.svc.SyncExamSchedule(context.Background(), "admin-1", scheduledDetail())

	assert.True(t, result.NeedsReauth)
	assert.False(t, result.Synced)
	assert.Contains(t, result.Warning, "no calendar account linked")
}

func TestSyncRefreshesExpiringToken(t *testing.T) {
	f := newSyncFixture()
	f.tokens.token.Expiry = time.Now().Add(time.Minute)

	result := f.svc.SyncExamSchedule(context.Background(), "admin-1", scheduledDetail())

	assert.True(t, result.Synced)
	assert.True(t, f.refresher.called)
	assert.Equal(t, "refreshed-access", f.provider.createdWith)
	assert.Equal(t, "refreshed-access", f.tokens.updatedAccess)
	// The provider did not rotate the refresh token, so the stored one stays.
	assert.Equal(t, "refresh-1", f.tokens.updatedRefresh)
}

func TestSyncExpiredWithoutRefreshToken(t *testing.T) {
	f := newSyncFixture()
	f.tokens.token.Expiry = time.Now().Add(-time.Minute)
	f.tokens.token.RefreshToken = ""

	result := f.svc.SyncExamSchedule(context.Background(), "admin-1", scheduledDetail())

	assert.True(t, result.NeedsReauth)
	assert.False(t, f.refresher.called)
}

func TestSyncRevokedGrantNeedsReauth(t *testing.T) {
	f := newSyncFixture()
	f.tokens.token.Expiry = time.Now().Add(-time.Minute)
	f.refresher.err = &oauth2.RetrieveError{ErrorCode: "invalid_grant"}

	result := f.svc.SyncExamSchedule(context.Background(), "admin-1", scheduledDetail())

	assert.True(t, result.NeedsReauth)
	assert.Contains(t, result.Warning, "re-link")
}

func TestSyncTransientRefreshFailure(t *testing.T) {
	f := newSyncFixture()
	f.tokens.token.Expiry = time.Now().Add(-time.Minute)
	f.refresher.err = errors.New("connection refused")

	result := f.svc.SyncExamSchedule(context.Background(), "admin-1", scheduledDetail())

	assert.False(t, result.NeedsReauth)
	assert.False(t, result.Synced)
	assert.True(t, result.Retryable)
}

func TestSyncProviderUnauthorizedNeedsReauth(t *testing.T) {
	f := newSyncFixture()
	f.provider.createErr = &calendar.APIError{StatusCode: 401, Body: "invalid credentials"}

	result := f.svc.SyncExamSchedule(context.Background(), "admin-1", scheduledDetail())

	assert.True(t, result.NeedsReauth)
	assert.False(t, result.Synced)
}

func TestSyncProviderServerErrorRetryable(t *testing.T) {
	f := newSyncFixture()
	f.provider.createErr = &calendar.APIError{StatusCode: 503, Body: "unavailable"}

	result := f.svc.SyncExamSchedule(context.Background(), "admin-1", scheduledDetail())

	assert.False(t, result.Synced)
	assert.False(t, result.NeedsReauth)
	assert.True(t, result.Retryable)
}

func TestSyncEventIDPersistFailure(t *testing.T) {
	f := newSyncFixture()
	f.exams.setErr = errors.New("db down")

	result := f.svc.SyncExamSchedule(context.Background(), "admin-1", scheduledDetail())

	assert.False(t, result.Synced)
	assert.True(t, result.Retryable)
	assert.Contains(t, result.Warning, "could not be linked")
}

func TestSyncUnscheduledExamFails(t *testing.T) {
	f := newSyncFixture()
	detail := scheduledDetail()
	detail.StartTime = nil

	result := f.svc.SyncExamSchedule(context.Background(), "admin-1", detail)

	assert.False(t, result.Synced)
	assert.True(t, result.Retryable)
}

func TestSyncRetriesTransientProviderFailure(t *testing.T) {
	f := newSyncFixture()
	f.provider.createFails = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.svc.Start(ctx)
	defer f.svc.Stop()

	result := f.svc.SyncExamSchedule(ctx, "admin-1", scheduledDetail())
	assert.False(t, result.Synced)
	assert.True(t, result.Retryable)

	// The queued retry runs against a recovered provider and links the event.
	require.Eventually(t, func() bool { return f.exams.examID() == "exam-1" }, time.Second, 10*time.Millisecond)
}

func TestLinkAccountStoresTokens(t *testing.T) {
	f := newSyncFixture()
	principal := models.Principal{UserID: "admin-1", Role: models.RoleAdmin}

	err := f.svc.LinkAccount(context.Background(), principal, LinkCalendarAccountRequest{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, f.tokens.upserted)
	assert.Equal(t, "admin-1", f.tokens.upserted.UserID)
}

func TestLinkAccountRejectsMissingAccessToken(t *testing.T) {
	f := newSyncFixture()
	principal := models.Principal{UserID: "admin-1", Role: models.RoleAdmin}

	err := f.svc.LinkAccount(context.Background(), principal, LinkCalendarAccountRequest{Expiry: time.Now()})
	assert.Error(t, err)
}

func TestAccountStatusUnlinked(t *testing.T) {
	f := newSyncFixture()
	f.tokens.getErr = sql.ErrNoRows

	status, err := f.svc.AccountStatus(context.Background(), models.Principal{UserID: "admin-1"})
	require.NoError(t, err)
	assert.False(t, status.Linked)
}

func TestAccountStatusLinked(t *testing.T) {
	f := newSyncFixture()

	status, err := f.svc.AccountStatus(context.Background(), models.Principal{UserID: "admin-1"})
	require.NoError(t, err)
	assert.True(t, status.Linked)
	assert.True(t, status.HasRefreshToken)
}
