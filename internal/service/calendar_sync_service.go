package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/google/uuid"

	"github.com/noah-isme/sidang-api/internal/models"
	"github.com/noah-isme/sidang-api/pkg/calendar"
	appErrors "github.com/noah-isme/sidang-api/pkg/errors"
	"github.com/noah-isme/sidang-api/pkg/jobs"
)

type calendarTokenStore interface {
	GetByUser(ctx context.Context, userID string) (*models.CalendarToken, error)
	Upsert(ctx context.Context, token *models.CalendarToken) error
	UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error
	Delete(ctx context.Context, userID string) error
}

type calendarEventWriter interface {
	CreateEvent(ctx context.Context, accessToken string, payload calendar.EventPayload) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, accessToken, eventID string, payload calendar.EventPayload) (*calendar.Event, error)
}

type tokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type examEventIDWriter interface {
	SetCalendarEventID(ctx context.Context, examID string, eventID *string) error
}

type participantReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type roomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

// OAuthRefresher exchanges refresh tokens at the provider's token endpoint.
type OAuthRefresher struct {
	cfg *oauth2.Config
}

// NewOAuthRefresher builds a refresher for the configured OAuth client.
func NewOAuthRefresher(clientID, clientSecret, tokenURL string) *OAuthRefresher {
	return &OAuthRefresher{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}}
}

// Refresh obtains a fresh access token using the stored refresh token.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := r.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

// CalendarSyncService keeps one external calendar event in step with each
// scheduled exam and manages OAuth token freshness for the calendar owner.
// All sync outcomes are values, never errors that could unwind a committed
// schedule.
type CalendarSyncService struct {
	tokens    calendarTokenStore
	provider  calendarEventWriter
	refresher tokenRefresher
	exams     examEventIDWriter
	users     participantReader
	rooms     roomReader
	margin    time.Duration
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

type calendarRetryPayload struct {
	ownerID string
	detail  models.ExamDetail
}

// NewCalendarSyncService instantiates CalendarSyncService. margin is the
// refresh-before-expiry safety window.
func NewCalendarSyncService(
	tokens calendarTokenStore,
	provider calendarEventWriter,
	refresher tokenRefresher,
	exams examEventIDWriter,
	users participantReader,
	rooms roomReader,
	margin time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *CalendarSyncService {
	if margin <= 0 {
		margin = 5 * time.Minute
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CalendarSyncService{
		tokens:    tokens,
		provider:  provider,
		refresher: refresher,
		exams:     exams,
		users:     users,
		rooms:     rooms,
		margin:    margin,
		validator: validate,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("calendar-retry", s.handleRetry, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: time.Minute,
		Logger:     logger,
	})
	return s
}

// Start launches the retry worker. Without it transient sync failures are
// reported but never retried.
func (s *CalendarSyncService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the retry worker.
func (s *CalendarSyncService) Stop() {
	s.queue.Stop()
}

// SyncExamSchedule creates or updates the calendar event for a scheduled
// exam on the owner's linked calendar. The returned result classifies
// failures as needs-reauth or transient; it never blocks scheduling.
// Transient failures get one asynchronous retry.
func (s *CalendarSyncService) SyncExamSchedule(ctx context.Context, ownerID string, detail *models.ExamDetail) models.CalendarSyncResult {
	result := s.syncOnce(ctx, ownerID, detail)
	if result.Retryable {
		s.enqueueRetry(ownerID, detail)
	}
	return result
}

func (s *CalendarSyncService) syncOnce(ctx context.Context, ownerID string, detail *models.ExamDetail) models.CalendarSyncResult {
	accessToken, result := s.freshAccessToken(ctx, ownerID)
	if result != nil {
		return *result
	}

	payload, err := s.buildEventPayload(ctx, detail)
	if err != nil {
		s.logger.Warn("failed to build calendar payload", zap.String("exam_id", detail.ID), zap.Error(err))
		return models.CalendarSyncResult{Warning: "calendar sync failed: could not assemble event details", Retryable: true}
	}

	var event *calendar.Event
	if detail.CalendarEventID == nil || *detail.CalendarEventID == "" {
		event, err = s.provider.CreateEvent(ctx, accessToken, payload)
	} else {
		event, err = s.provider.UpdateEvent(ctx, accessToken, *detail.CalendarEventID, payload)
	}
	if err != nil {
		return s.classifyProviderError(detail.ID, err)
	}

	if detail.CalendarEventID == nil || *detail.CalendarEventID == "" {
		if err := s.exams.SetCalendarEventID(ctx, detail.ID, &event.ID); err != nil {
			s.logger.Error("calendar event created but id not persisted",
				zap.String("exam_id", detail.ID),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
			return models.CalendarSyncResult{Warning: "calendar event created but could not be linked to the exam", Retryable: true}
		}
	}

	return models.CalendarSyncResult{Synced: true, EventID: event.ID, Link: event.HTMLLink}
}

func (s *CalendarSyncService) enqueueRetry(ownerID string, detail *models.ExamDetail) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "calendar-sync",
		Payload: calendarRetryPayload{ownerID: ownerID, detail: *detail},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue calendar sync retry", zap.String("exam_id", detail.ID), zap.Error(err))
	}
}

func (s *CalendarSyncService) handleRetry(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(calendarRetryPayload)
	if !ok {
		return nil
	}
	result := s.syncOnce(ctx, payload.ownerID, &payload.detail)
	if result.Retryable {
		return fmt.Errorf("calendar sync for exam %s still failing", payload.detail.ID)
	}
	if result.Synced {
		s.logger.Info("calendar sync retry succeeded",
			zap.String("exam_id", payload.detail.ID),
			zap.String("event_id", result.EventID),
		)
	}
	return nil
}

// freshAccessToken returns a usable access token for the owner, refreshing
// proactively when the stored one expires within the safety margin. A non-nil
// result means the token could not be obtained.
func (s *CalendarSyncService) freshAccessToken(ctx context.Context, ownerID string) (string, *models.CalendarSyncResult) {
	token, err := s.tokens.GetByUser(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", &models.CalendarSyncResult{NeedsReauth: true, Warning: "no calendar account linked"}
		}
		s.logger.Error("failed to load calendar token", zap.String("user_id", ownerID), zap.Error(err))
		return "", &models.CalendarSyncResult{Warning: "calendar sync failed: token lookup error", Retryable: true}
	}

	now := time.Now()
	if token.FreshWithin(now, s.margin) {
		return token.AccessToken, nil
	}

	// Token expires within the margin: refresh before calling the provider.
	if token.RefreshToken == "" {
		return "", &models.CalendarSyncResult{NeedsReauth: true, Warning: "calendar access expired and no refresh token is on file"}
	}

	refreshed, err := s.refresher.Refresh(ctx, token.RefreshToken)
	if err != nil {
		if refreshNeedsReauth(err) {
			return "", &models.CalendarSyncResult{NeedsReauth: true, Warning: "calendar authorization was revoked; please re-link the account"}
		}
		s.logger.Warn("calendar token refresh failed", zap.String("user_id", ownerID), zap.Error(err))
		return "", &models.CalendarSyncResult{Warning: "calendar sync failed: token refresh error", Retryable: true}
	}

	newRefresh := token.RefreshToken
	if refreshed.RefreshToken != "" {
		newRefresh = refreshed.RefreshToken
	}
	if err := s.tokens.UpdateTokens(ctx, ownerID, refreshed.AccessToken, newRefresh, refreshed.Expiry); err != nil {
		// The refreshed token is still usable for this call.
		s.logger.Warn("failed to persist refreshed calendar token", zap.String("user_id", ownerID), zap.Error(err))
	}

	return refreshed.AccessToken, nil
}

// refreshNeedsReauth reports whether a token-endpoint error means the grant
// is gone for good (revoked or expired refresh token) rather than transient.
func refreshNeedsReauth(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	if retrieveErr.ErrorCode == "invalid_grant" {
		return true
	}
	if retrieveErr.Response != nil {
		code := retrieveErr.Response.StatusCode
		return code == http.StatusBadRequest || code == http.StatusUnauthorized
	}
	return false
}

func (s *CalendarSyncService) classifyProviderError(examID string, err error) models.CalendarSyncResult {
	var apiErr *calendar.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Unauthorized() {
			return models.CalendarSyncResult{NeedsReauth: true, Warning: "calendar provider rejected the access token; please re-link the account"}
		}
		s.logger.Warn("calendar provider error", zap.String("exam_id", examID), zap.Int("status", apiErr.StatusCode))
		retryable := apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
		return models.CalendarSyncResult{Warning: "calendar sync failed: provider error", Retryable: retryable}
	}

	// Timeouts and network failures degrade to a plain best-effort failure.
	s.logger.Warn("calendar sync request failed", zap.String("exam_id", examID), zap.Error(err))
	return models.CalendarSyncResult{Warning: "calendar sync failed: provider unreachable", Retryable: true}
}

func (s *CalendarSyncService) buildEventPayload(ctx context.Context, detail *models.ExamDetail) (calendar.EventPayload, error) {
	if detail.StartTime == nil || detail.EndTime == nil || detail.RoomID == nil {
		return calendar.EventPayload{}, fmt.Errorf("exam %s has no schedule", detail.ID)
	}

	ids := append([]string{detail.StudentID, detail.SupervisorID}, detail.ExaminerIDs...)
	participants, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return calendar.EventPayload{}, fmt.Errorf("load participants: %w", err)
	}
	byID := make(map[string]models.User, len(participants))
	for _, participant := range participants {
		byID[participant.ID] = participant
	}

	room, err := s.rooms.FindByID(ctx, *detail.RoomID)
	if err != nil {
		return calendar.EventPayload{}, fmt.Errorf("load room: %w", err)
	}

	// Only participants with a resolvable address are invited.
	attendees := make([]calendar.Attendee, 0, len(ids))
	for _, id := range ids {
		participant, ok := byID[id]
		if !ok || participant.Email == "" {
			continue
		}
		attendees = append(attendees, calendar.Attendee{Email: participant.Email, DisplayName: participant.FullName})
	}

	examinerNames := make([]string, 0, len(detail.ExaminerIDs))
	for _, id := range detail.ExaminerIDs {
		examinerNames = append(examinerNames, byID[id].FullName)
	}

	description := fmt.Sprintf("[SIDANG] %s | Ruang: %s | Pembimbing: %s / Penguji: %s",
		detail.Title, room.Name, byID[detail.SupervisorID].FullName, strings.Join(examinerNames, ", "))

	return calendar.EventPayload{
		Title:       fmt.Sprintf("Ujian Skripsi: %s", byID[detail.StudentID].FullName),
		Description: description,
		Location:    room.Name,
		Start:       *detail.StartTime,
		End:         *detail.EndTime,
		TimeZone:    TimeZoneName,
		Attendees:   attendees,
	}, nil
}

// LinkCalendarAccountRequest stores tokens obtained by the frontend's OAuth
// consent flow.
type LinkCalendarAccountRequest struct {
	AccessToken  string    `json:"access_token" validate:"required"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry" validate:"required"`
}

// CalendarAccountStatus describes a user's calendar link state.
type CalendarAccountStatus struct {
	Linked          bool      `json:"linked"`
	HasRefreshToken bool      `json:"has_refresh_token"`
	Expiry          time.Time `json:"expiry,omitempty"`
}

// LinkAccount saves (or replaces) the caller's calendar account tokens.
func (s *CalendarSyncService) LinkAccount(ctx context.Context, principal models.Principal, req LinkCalendarAccountRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar account payload")
	}
	token := &models.CalendarToken{
		UserID:       principal.UserID,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		Expiry:       req.Expiry,
	}
	if err := s.tokens.Upsert(ctx, token); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store calendar account")
	}
	return nil
}

// UnlinkAccount removes the caller's calendar account link.
func (s *CalendarSyncService) UnlinkAccount(ctx context.Context, principal models.Principal) error {
	if err := s.tokens.Delete(ctx, principal.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink calendar account")
	}
	return nil
}

// AccountStatus reports whether the caller has a linked, refreshable account.
func (s *CalendarSyncService) AccountStatus(ctx context.Context, principal models.Principal) (*CalendarAccountStatus, error) {
	token, err := s.tokens.GetByUser(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &CalendarAccountStatus{Linked: false}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar account")
	}
	return &CalendarAccountStatus{
		Linked:          true,
		HasRefreshToken: token.RefreshToken != "",
		Expiry:          token.Expiry,
	}, nil
}
