package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/trimtofit/internal/job"
	"github.com/maauso/trimtofit/internal/media"
	"github.com/maauso/trimtofit/internal/timeline"
)

// mockService implements JobService for testing.
type mockService struct {
	mock.Mock
}

func (m *mockService) Submit(ctx context.Context, req job.Request) (*job.Job, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}

func (m *mockService) GetJob(ctx context.Context, id string) (*job.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}

func (m *mockService) ListJobs(ctx context.Context) ([]*job.Job, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*job.Job), args.Error(1)
}

func (m *mockService) DeleteJob(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockService) Plan(ranges []timeline.Range, totalMs int64, mode timeline.Mode) (job.Plan, error) {
	args := m.Called(ranges, totalMs, mode)
	return args.Get(0).(job.Plan), args.Error(1)
}

var _ JobService = (*job.Service)(nil)

func newTestRouter(t *testing.T) (http.Handler, *mockService) {
	t.Helper()
	svc := &mockService{}
	logger := slog.New(slog.DiscardHandler)
	return NewRouter(NewHandlers(svc, logger), logger, DefaultConfig()), svc
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestCreateTrimJob_Success(t *testing.T) {
	router, svc := newTestRouter(t)

	want := job.TrimRequest{
		InputPath: "/media/talk.mp3",
		Mode:      timeline.ModeRemove,
		Ranges:    []timeline.Range{{Start: 1000, End: 2000}},
	}
	svc.On("Submit", mock.Anything, want).Return(job.NewWithID("job-1", job.KindTrim), nil)

	rec := doJSON(t, router, http.MethodPost, "/jobs/trim", TrimJobRequest{
		InputPath: "/media/talk.mp3",
		Mode:      "remove",
		Ranges:    []RangeDTO{{StartMs: 1000, EndMs: 2000}},
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp CreateJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, "QUEUED", resp.Status)
	svc.AssertExpectations(t)
}

func TestCreateTrimJob_InvalidJSON(t *testing.T) {
	router, svc := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/jobs/trim", "invalid json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decodeError(t, rec).Code)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestCreateTrimJob_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body TrimJobRequest
	}{
		{"missing input", TrimJobRequest{Mode: "remove"}},
		{"missing mode", TrimJobRequest{InputPath: "a.mp3"}},
		{"unknown mode", TrimJobRequest{InputPath: "a.mp3", Mode: "shuffle"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t)
			rec := doJSON(t, router, http.MethodPost, "/jobs/trim", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
		})
	}
}

func TestCreateTrimJob_InvertedRange(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.On("Submit", mock.Anything, mock.Anything).
		Return(nil, errors.Join(timeline.ErrInvalidRange, errors.New("start 5 > end 1")))

	rec := doJSON(t, router, http.MethodPost, "/jobs/trim", TrimJobRequest{
		InputPath: "a.mp3",
		Mode:      "keep",
		Ranges:    []RangeDTO{{StartMs: 5, EndMs: 1}},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_RANGE", decodeError(t, rec).Code)
}

func TestCreateSpeedJob(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.On("Submit", mock.Anything, job.SpeedRequest{InputPath: "a.mp3", Factor: 1.5}).
		Return(job.NewWithID("job-2", job.KindSpeed), nil)

	rec := doJSON(t, router, http.MethodPost, "/jobs/speed", SpeedJobRequest{InputPath: "a.mp3", Factor: 1.5})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/jobs/speed", SpeedJobRequest{InputPath: "a.mp3", Factor: 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
	svc.AssertNumberOfCalls(t, "Submit", 1)
}

func TestCreateConvertJob(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.On("Submit", mock.Anything, job.ConvertRequest{InputPath: "a.mp3", Format: "flac"}).
		Return(job.NewWithID("job-3", job.KindConvert), nil)

	rec := doJSON(t, router, http.MethodPost, "/jobs/convert", ConvertJobRequest{InputPath: "a.mp3", Format: "flac"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/jobs/convert", ConvertJobRequest{InputPath: "a.mp3", Format: "wma"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateMergeJob(t *testing.T) {
	router, svc := newTestRouter(t)
	want := job.MergeRequest{InputPaths: []string{"a.mp3", "b.wav"}, OutputPath: "/out/mix.mp3", PushToS3: true}
	svc.On("Submit", mock.Anything, want).Return(job.NewWithID("job-4", job.KindMerge), nil)

	rec := doJSON(t, router, http.MethodPost, "/jobs/merge", MergeJobRequest{
		InputPaths: []string{"a.mp3", "b.wav"},
		OutputPath: "/out/mix.mp3",
		PushToS3:   true,
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/jobs/merge", MergeJobRequest{OutputPath: "/out/mix.mp3"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
}

func TestCreateJob_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no inputs", job.ErrNoInputs, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unsupported format", media.ErrUnsupportedFormat, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"invalid speed", media.ErrInvalidSpeed, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"repository down", errors.New("redis: connection refused"), http.StatusInternalServerError, "JOB_CREATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := newTestRouter(t)
			svc.On("Submit", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := doJSON(t, router, http.MethodPost, "/jobs/merge", MergeJobRequest{
				InputPaths: []string{"a.mp3"},
				OutputPath: "mix.mp3",
			})

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestPlan(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.On("Plan", []timeline.Range{{Start: 1000, End: 2000}}, int64(5000), timeline.ModeRemove).
		Return(job.Plan{
			Mode:      timeline.ModeRemove,
			TotalMs:   5000,
			Keep:      []timeline.Range{{Start: 0, End: 1000}, {Start: 2000, End: 5000}},
			KeptMs:    4000,
			RemovedMs: 1000,
		}, nil)

	rec := doJSON(t, router, http.MethodPost, "/plan", PlanRequest{
		TotalMs: 5000,
		Mode:    "remove",
		Ranges:  []RangeDTO{{StartMs: 1000, EndMs: 2000}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PlanResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []RangeDTO{{StartMs: 0, EndMs: 1000}, {StartMs: 2000, EndMs: 5000}}, resp.Keep)
	assert.Equal(t, int64(4000), resp.KeptMs)
	assert.Equal(t, int64(1000), resp.RemovedMs)
}

func TestPlan_InvalidRange(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.On("Plan", mock.Anything, mock.Anything, mock.Anything).Return(job.Plan{}, timeline.ErrInvalidRange)

	rec := doJSON(t, router, http.MethodPost, "/plan", PlanRequest{
		TotalMs: 5000,
		Mode:    "keep",
		Ranges:  []RangeDTO{{StartMs: 3000, EndMs: 1000}},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_RANGE", decodeError(t, rec).Code)
}

func TestGetJob(t *testing.T) {
	router, svc := newTestRouter(t)

	j := job.NewWithID("job-5", job.KindTrim)
	j.InputPaths = []string{"a.mp3"}
	require.NoError(t, j.TransitionTo(job.StatusLoading))
	j.SetKeepRanges([]timeline.Range{{Start: 0, End: 500}}, 1000)
	j.SetOutput("/out/a_trimmed.mp3", 500, "")
	require.NoError(t, j.TransitionTo(job.StatusExporting))
	require.NoError(t, j.Complete())
	svc.On("GetJob", mock.Anything, "job-5").Return(j, nil)

	rec := doJSON(t, router, http.MethodGet, "/jobs/job-5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "job-5", resp.ID)
	assert.Equal(t, "trim", resp.Kind)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.InDelta(t, 1.0, resp.Progress, 1e-9)
	assert.Equal(t, []RangeDTO{{StartMs: 0, EndMs: 500}}, resp.KeepRanges)
	assert.Equal(t, int64(1000), resp.SourceDurationMs)
	assert.Equal(t, int64(500), resp.OutputDurationMs)
	assert.Equal(t, "/out/a_trimmed.mp3", resp.OutputPath)
	assert.NotNil(t, resp.CompletedAt)
}

func TestGetJob_Errors(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.On("GetJob", mock.Anything, "missing").Return(nil, job.ErrJobNotFound)
	svc.On("GetJob", mock.Anything, "broken").Return(nil, errors.New("decode failed"))

	rec := doJSON(t, router, http.MethodGet, "/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decodeError(t, rec).Code)

	rec = doJSON(t, router, http.MethodGet, "/jobs/broken", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "JOB_FETCH_FAILED", decodeError(t, rec).Code)
}

func TestListJobs(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.On("ListJobs", mock.Anything).Return([]*job.Job{
		job.NewWithID("job-a", job.KindTrim),
		job.NewWithID("job-b", job.KindMerge),
	}, nil)

	rec := doJSON(t, router, http.MethodGet, "/jobs", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListJobsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, "job-a", resp.Jobs[0].ID)
	assert.Equal(t, "merge", resp.Jobs[1].Kind)
	assert.Nil(t, resp.Jobs[0].CompletedAt)
}

func TestListJobs_Empty(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.On("ListJobs", mock.Anything).Return([]*job.Job{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/jobs", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jobs":[]}`, rec.Body.String())
}

func TestDeleteJob(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"deleted", nil, http.StatusNoContent},
		{"not found", job.ErrJobNotFound, http.StatusNotFound},
		{"still running", job.ErrInvalidTransition, http.StatusConflict},
		{"repository error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := newTestRouter(t)
			svc.On("DeleteJob", mock.Anything, "job-9").Return(tt.err)

			rec := doJSON(t, router, http.MethodDelete, "/jobs/job-9", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPut, "/jobs/job-1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func newConfinedRouter(t *testing.T, dataDir string) (http.Handler, *mockService) {
	t.Helper()
	svc := &mockService{}
	logger := slog.New(slog.DiscardHandler)
	return NewRouter(NewHandlers(svc, logger, WithDataDir(dataDir)), logger, DefaultConfig()), svc
}

func TestCreateJob_DataDirResolvesPaths(t *testing.T) {
	dataDir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	router, svc := newConfinedRouter(t, dataDir)

	want := job.MergeRequest{
		InputPaths: []string{filepath.Join(dataDir, "a.wav"), filepath.Join(dataDir, "parts", "b.wav")},
		OutputPath: filepath.Join(dataDir, "out", "joined.mp3"),
	}
	svc.On("Submit", mock.Anything, want).Return(job.NewWithID("job-1", job.KindMerge), nil)

	rec := doJSON(t, router, http.MethodPost, "/jobs/merge", MergeJobRequest{
		InputPaths: []string{"a.wav", filepath.Join(dataDir, "parts", "b.wav")},
		OutputPath: "out/joined.mp3",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	svc.AssertExpectations(t)
}

func TestCreateJob_DataDirRejectsEscapes(t *testing.T) {
	router, svc := newConfinedRouter(t, t.TempDir())

	tests := []struct {
		name string
		path string
		body any
	}{
		{"trim input outside", "/jobs/trim",
			TrimJobRequest{InputPath: "/etc/passwd", Mode: "remove"}},
		{"trim output outside", "/jobs/trim",
			TrimJobRequest{InputPath: "in.wav", OutputPath: "../../out.wav", Mode: "keep"}},
		{"speed input traversal", "/jobs/speed",
			SpeedJobRequest{InputPath: "../in.wav", Factor: 1.5}},
		{"convert output outside", "/jobs/convert",
			ConvertJobRequest{InputPath: "in.wav", Format: "mp3", OutputPath: "/tmp/../etc/out.mp3"}},
		{"merge one input outside", "/jobs/merge",
			MergeJobRequest{InputPaths: []string{"a.wav", "../b.wav"}, OutputPath: "out.mp3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, tt.path, tt.body)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "PATH_NOT_ALLOWED", decodeError(t, rec).Code)
		})
	}
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}
