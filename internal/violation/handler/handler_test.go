package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"platewatch/internal/violation/models"
	dErrors "platewatch/pkg/domain-errors"
	"platewatch/pkg/testutil"
)

type stubService struct {
	attempt *models.NotificationAttempt
	err     error

	gotPlate string
	gotPhone string
	gotEmail string
}

func (s *stubService) RegisterViolation(_ context.Context, plate, phone, email string) (*models.NotificationAttempt, error) {
	s.gotPlate, s.gotPhone, s.gotEmail = plate, phone, email
	return s.attempt, s.err
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, 5, slog.Default()).Register(r)
	return r
}

func TestAddNumberPlateDispatched(t *testing.T) {
	svc := &stubService{attempt: &models.NotificationAttempt{
		Outcome:           models.OutcomeDispatched,
		ProviderMessageID: "SM123",
	}}
	router := newRouter(svc)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/addNumberPlate", map[string]string{
		"numberplate": "KA01AB1234",
		"phonenumber": "+15550100",
		"email":       "owner@example.com",
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "success")
	testutil.AssertJSONContains(t, rr, "sid", "SM123")
	assert.Equal(t, "KA01AB1234", svc.gotPlate)
	assert.Equal(t, "+15550100", svc.gotPhone)
	assert.Equal(t, "owner@example.com", svc.gotEmail)
}

func TestAddNumberPlateLimitReached(t *testing.T) {
	svc := &stubService{attempt: &models.NotificationAttempt{Outcome: models.OutcomeQuotaExceeded}}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewJSONRequest(t, http.MethodPost, "/addNumberPlate",
		map[string]string{"numberplate": "KA01AB1234", "phonenumber": "+15550100"}))

	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "limit_reached")
	testutil.AssertJSONContains(t, rr, "msg", "Max 5 SMS sent today")
}

func TestAddNumberPlateDuplicate(t *testing.T) {
	svc := &stubService{attempt: &models.NotificationAttempt{Outcome: models.OutcomeDuplicateRejected}}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewJSONRequest(t, http.MethodPost, "/addNumberPlate",
		map[string]string{"numberplate": "KA01AB1234", "phonenumber": "+15550100"}))

	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "duplicate")
}

func TestAddNumberPlateValidationError(t *testing.T) {
	svc := &stubService{err: dErrors.New(dErrors.CodeValidation, "numberplate is required")}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewJSONRequest(t, http.MethodPost, "/addNumberPlate",
		map[string]string{"phonenumber": "+15550100"}))

	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "numberplate is required")
}

func TestAddNumberPlateStoreFailure(t *testing.T) {
	svc := &stubService{err: dErrors.New(dErrors.CodeStoreFailure, "record store write failed")}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewJSONRequest(t, http.MethodPost, "/addNumberPlate",
		map[string]string{"numberplate": "KA01AB1234", "phonenumber": "+15550100"}))

	testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "record store write failed")
}

func TestAddNumberPlateMalformedBody(t *testing.T) {
	svc := &stubService{}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewRequestWithBody(t, http.MethodPost, "/addNumberPlate", "{not json"))

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	assert.Empty(t, svc.gotPlate, "service must not be called on malformed body")
}
