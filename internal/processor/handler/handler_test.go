package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"forestclient/internal/processor/handler/mocks"
	"forestclient/internal/submission/models"
	dErrors "forestclient/pkg/domain-errors"
	"forestclient/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Processor
type TriggerHandlerSuite struct {
	suite.Suite
	processor *mocks.MockProcessor
	router    chi.Router
	logs      *bytes.Buffer
}

func TestTriggerHandlerSuite(t *testing.T) {
	suite.Run(t, new(TriggerHandlerSuite))
}

func (s *TriggerHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.processor = mocks.NewMockProcessor(ctrl)
	s.router = chi.NewRouter()
	s.logs = &bytes.Buffer{}
	New(s.processor, slog.New(slog.NewTextHandler(s.logs, nil))).Register(s.router)
}

func (s *TriggerHandlerSuite) serve(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *TriggerHandlerSuite) TestGetTrigger() {
	s.Run("accepted", func() {
		s.processor.EXPECT().Submit(gomock.Any(), models.SubmissionID(42)).Return(nil)

		w := s.serve(http.MethodGet, "/api/processor/42", "")

		s.Equal(http.StatusAccepted, w.Code)
		resp := testutil.UnmarshalResponse[AcceptedResponse](s.T(), w)
		s.Equal(models.SubmissionID(42), resp.SubmissionID)
		s.Equal("accepted", resp.Status)
	})

	s.Run("invalid id", func() {
		w := s.serve(http.MethodGet, "/api/processor/abc", "")
		testutil.AssertStatusAndError(s.T(), w, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("queue full is unavailable", func() {
		s.processor.EXPECT().Submit(gomock.Any(), models.SubmissionID(7)).
			Return(dErrors.New(dErrors.CodeUnavailable, "submission processor is busy"))

		w := s.serve(http.MethodGet, "/api/processor/7", "")
		testutil.AssertStatusAndError(s.T(), w, http.StatusServiceUnavailable, string(dErrors.CodeUnavailable))
	})
}

func (s *TriggerHandlerSuite) TestPostTrigger() {
	s.Run("accepted", func() {
		s.processor.EXPECT().Submit(gomock.Any(), models.SubmissionID(9)).Return(nil)

		req := testutil.WithSubject(
			testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/processor", TriggerRequest{SubmissionID: 9}),
			"idir\\jdoe",
		)
		w := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusAccepted, w.Code)
		s.Contains(s.logs.String(), "jdoe")
	})

	s.Run("missing id", func() {
		w := s.serve(http.MethodPost, "/api/processor", `{}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("malformed body", func() {
		w := s.serve(http.MethodPost, "/api/processor", `{`)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("context errors surface as internal", func() {
		s.processor.EXPECT().Submit(gomock.Any(), models.SubmissionID(3)).Return(context.Canceled)

		w := s.serve(http.MethodPost, "/api/processor", `{"submissionId": 3}`)
		testutil.AssertStatusAndError(s.T(), w, http.StatusInternalServerError, string(dErrors.CodeInternal))
	})
}
