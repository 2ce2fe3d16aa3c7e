package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticelearn/lattice-api/internal/api/shared"
	"github.com/latticelearn/lattice-api/internal/domain"
	"github.com/latticelearn/lattice-api/internal/domain/credit"
	"github.com/latticelearn/lattice-api/internal/service/review"
	"github.com/latticelearn/lattice-api/internal/store"
)

// stubReviewService lets each test wire only the methods it exercises.
type stubReviewService struct {
	submitReview      func(ctx context.Context, userID uuid.UUID, req review.SubmitReviewRequest) (*review.ReviewResult, error)
	getDueReviews     func(ctx context.Context, userID, domainID uuid.UUID, nodeType *domain.NodeType) (*review.DueReviews, error)
	getDomainProgress func(ctx context.Context, userID, domainID uuid.UUID) ([]*domain.NodeProgress, error)
	getDomainStats    func(ctx context.Context, userID, domainID uuid.UUID) (*store.DomainStats, error)
	updateNodeStatus  func(ctx context.Context, userID uuid.UUID, node domain.NodeRef, status domain.NodeStatus) (*domain.NodeProgress, error)
	testPropagation   func(ctx context.Context, userID uuid.UUID, node domain.NodeRef, quality domain.Quality) ([]credit.NeighborUpdate, error)
	endSession        func(ctx context.Context, userID uuid.UUID) (*domain.StudySession, error)
}

func (s *stubReviewService) SubmitReview(
	ctx context.Context, userID uuid.UUID, req review.SubmitReviewRequest,
) (*review.ReviewResult, error) {
	return s.submitReview(ctx, userID, req)
}

func (s *stubReviewService) GetDueReviews(
	ctx context.Context, userID, domainID uuid.UUID, nodeType *domain.NodeType,
) (*review.DueReviews, error) {
	return s.getDueReviews(ctx, userID, domainID, nodeType)
}

func (s *stubReviewService) GetDomainProgress(
	ctx context.Context, userID, domainID uuid.UUID,
) ([]*domain.NodeProgress, error) {
	return s.getDomainProgress(ctx, userID, domainID)
}

func (s *stubReviewService) GetDomainStats(
	ctx context.Context, userID, domainID uuid.UUID,
) (*store.DomainStats, error) {
	return s.getDomainStats(ctx, userID, domainID)
}

func (s *stubReviewService) UpdateNodeStatus(
	ctx context.Context, userID uuid.UUID, node domain.NodeRef, status domain.NodeStatus,
) (*domain.NodeProgress, error) {
	return s.updateNodeStatus(ctx, userID, node, status)
}

func (s *stubReviewService) TestCreditPropagation(
	ctx context.Context, userID uuid.UUID, node domain.NodeRef, quality domain.Quality,
) ([]credit.NeighborUpdate, error) {
	return s.testPropagation(ctx, userID, node, quality)
}

func (s *stubReviewService) EndSession(
	ctx context.Context, userID uuid.UUID,
) (*domain.StudySession, error) {
	return s.endSession(ctx, userID)
}

// newTestRouter mounts the handler the way the server does.
func newTestRouter(service review.ReviewService) chi.Router {
	handler := NewReviewHandler(service, slog.Default())

	r := chi.NewRouter()
	r.Post("/reviews", handler.SubmitReview)
	r.Get("/reviews/due", handler.GetDueReviews)
	r.Get("/domains/{id}/progress", handler.GetDomainProgress)
	r.Get("/domains/{id}/stats", handler.GetDomainStats)
	r.Put("/nodes/{nodeType}/{nodeID}/status", handler.UpdateNodeStatus)
	r.Post("/propagation/test", handler.TestPropagation)
	r.Post("/sessions/end", handler.EndSession)
	return r
}

// doRequest performs a request with the user ID already in context, the
// way the auth middleware leaves it.
func doRequest(
	t *testing.T, router chi.Router, userID uuid.UUID, method, target string, body any,
) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if userID != uuid.Nil {
		ctx := context.WithValue(req.Context(), shared.UserIDContextKey, userID)
		req = req.WithContext(ctx)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func testProgress(t *testing.T, userID uuid.UUID) *domain.NodeProgress {
	t.Helper()
	node, err := domain.NewNodeRef(uuid.New(), domain.NodeTypeExercise)
	require.NoError(t, err)
	progress, err := domain.NewNodeProgress(userID, node)
	require.NoError(t, err)
	progress.Status = domain.StatusGrasped
	return progress
}

func TestSubmitReviewEndpoint(t *testing.T) {
	userID := uuid.New()
	nodeID := uuid.New()

	validBody := map[string]any{
		"node_id":            nodeID.String(),
		"node_type":          "exercise",
		"quality":            4,
		"time_taken_seconds": 30,
	}

	t.Run("success", func(t *testing.T) {
		progress := testProgress(t, userID)
		session := domain.NewStudySession(userID, time.Now().UTC())
		record := domain.NewReviewRecord(
			userID, progress.Node, domain.QualityGood, 30,
			domain.ReviewTypeDue, &session.ID, time.Now().UTC())

		service := &stubReviewService{
			submitReview: func(
				ctx context.Context, gotUser uuid.UUID, req review.SubmitReviewRequest,
			) (*review.ReviewResult, error) {
				assert.Equal(t, userID, gotUser)
				assert.Equal(t, nodeID, req.Node.ID)
				assert.Equal(t, domain.NodeTypeExercise, req.Node.Type)
				assert.Equal(t, domain.QualityGood, req.Quality)
				assert.Equal(t, 30, req.TimeTakenSeconds)
				return &review.ReviewResult{
					Progress: progress,
					Record:   record,
					Session:  session,
				}, nil
			},
		}

		recorder := doRequest(t, newTestRouter(service), userID, http.MethodPost, "/reviews", validBody)
		require.Equal(t, http.StatusOK, recorder.Code)

		var response SubmitReviewResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, record.ID, response.ReviewID)
		assert.Equal(t, session.ID, response.SessionID)
		assert.True(t, response.Success)
		assert.Equal(t, "grasped", response.Progress.Status)
	})

	t.Run("missing user is unauthorized", func(t *testing.T) {
		recorder := doRequest(
			t, newTestRouter(&stubReviewService{}), uuid.Nil, http.MethodPost, "/reviews", validBody)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		router := newTestRouter(&stubReviewService{})
		req := httptest.NewRequest(http.MethodPost, "/reviews", bytes.NewBufferString("{not json"))
		req = req.WithContext(context.WithValue(req.Context(), shared.UserIDContextKey, userID))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("quality out of range fails validation", func(t *testing.T) {
		body := map[string]any{"node_id": nodeID.String(), "node_type": "exercise", "quality": 9}
		recorder := doRequest(
			t, newTestRouter(&stubReviewService{}), userID, http.MethodPost, "/reviews", body)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("service error status mapping", func(t *testing.T) {
		testCases := []struct {
			name     string
			err      error
			expected int
		}{
			{"unknown node", review.ErrNodeNotFound, http.StatusNotFound},
			{"retries exhausted", review.ErrConflictRetriesExhausted, http.StatusConflict},
			{"internal failure", fmt.Errorf("db down"), http.StatusInternalServerError},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				service := &stubReviewService{
					submitReview: func(
						ctx context.Context, _ uuid.UUID, _ review.SubmitReviewRequest,
					) (*review.ReviewResult, error) {
						return nil, tc.err
					},
				}
				recorder := doRequest(
					t, newTestRouter(service), userID, http.MethodPost, "/reviews", validBody)
				assert.Equal(t, tc.expected, recorder.Code)
			})
		}
	})
}

func TestGetDueReviewsEndpoint(t *testing.T) {
	userID := uuid.New()
	domainID := uuid.New()

	t.Run("success with type filter", func(t *testing.T) {
		progress := testProgress(t, userID)
		service := &stubReviewService{
			getDueReviews: func(
				ctx context.Context, gotUser, gotDomain uuid.UUID, nodeType *domain.NodeType,
			) (*review.DueReviews, error) {
				assert.Equal(t, userID, gotUser)
				assert.Equal(t, domainID, gotDomain)
				require.NotNil(t, nodeType)
				assert.Equal(t, domain.NodeTypeDefinition, *nodeType)
				return &review.DueReviews{
					Items: []store.DueItem{{
						Node:     progress.Node,
						NodeCode: "DEF-1",
						NodeName: "Derivative",
						Progress: progress,
					}},
					CompletedToday: 3,
				}, nil
			},
		}

		target := fmt.Sprintf("/reviews/due?domain_id=%s&node_type=definition", domainID)
		recorder := doRequest(t, newTestRouter(service), userID, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		var response DueReviewsResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		require.Len(t, response.Items, 1)
		assert.Equal(t, "DEF-1", response.Items[0].Code)
		assert.Equal(t, 3, response.CompletedToday)
	})

	t.Run("missing domain_id", func(t *testing.T) {
		recorder := doRequest(
			t, newTestRouter(&stubReviewService{}), userID, http.MethodGet, "/reviews/due", nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("invalid node_type filter", func(t *testing.T) {
		target := fmt.Sprintf("/reviews/due?domain_id=%s&node_type=theorem", domainID)
		recorder := doRequest(
			t, newTestRouter(&stubReviewService{}), userID, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestGetDomainStatsEndpoint(t *testing.T) {
	userID := uuid.New()
	domainID := uuid.New()

	t.Run("success", func(t *testing.T) {
		service := &stubReviewService{
			getDomainStats: func(
				ctx context.Context, _, gotDomain uuid.UUID,
			) (*store.DomainStats, error) {
				assert.Equal(t, domainID, gotDomain)
				return &store.DomainStats{
					CountsByStatus:    map[domain.NodeStatus]int{domain.StatusGrasped: 4},
					DueCount:          2,
					TotalReviews:      10,
					SuccessfulReviews: 8,
				}, nil
			},
		}

		target := fmt.Sprintf("/domains/%s/stats", domainID)
		recorder := doRequest(t, newTestRouter(service), userID, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		var response DomainStatsResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, 4, response.CountsByStatus["grasped"])
		assert.Equal(t, 2, response.DueCount)
		assert.InDelta(t, 0.8, response.SuccessRate, 1e-9)
	})

	t.Run("invalid domain id", func(t *testing.T) {
		recorder := doRequest(
			t, newTestRouter(&stubReviewService{}), userID, http.MethodGet,
			"/domains/not-a-uuid/stats", nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestUpdateNodeStatusEndpoint(t *testing.T) {
	userID := uuid.New()
	nodeID := uuid.New()

	t.Run("success", func(t *testing.T) {
		service := &stubReviewService{
			updateNodeStatus: func(
				ctx context.Context, _ uuid.UUID, node domain.NodeRef, status domain.NodeStatus,
			) (*domain.NodeProgress, error) {
				assert.Equal(t, nodeID, node.ID)
				assert.Equal(t, domain.NodeTypeDefinition, node.Type)
				assert.Equal(t, domain.StatusTackling, status)
				progress := testProgress(t, userID)
				progress.Status = status
				return progress, nil
			},
		}

		target := fmt.Sprintf("/nodes/definition/%s/status", nodeID)
		recorder := doRequest(t, newTestRouter(service), userID, http.MethodPut, target,
			map[string]any{"status": "tackling"})
		require.Equal(t, http.StatusOK, recorder.Code)

		var response NodeProgressResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, "tackling", response.Status)
	})

	t.Run("unknown status fails validation", func(t *testing.T) {
		target := fmt.Sprintf("/nodes/definition/%s/status", nodeID)
		recorder := doRequest(t, newTestRouter(&stubReviewService{}), userID, http.MethodPut, target,
			map[string]any{"status": "mastered"})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("bad node type in path", func(t *testing.T) {
		target := fmt.Sprintf("/nodes/theorem/%s/status", nodeID)
		recorder := doRequest(t, newTestRouter(&stubReviewService{}), userID, http.MethodPut, target,
			map[string]any{"status": "tackling"})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestPropagationTestEndpoint(t *testing.T) {
	userID := uuid.New()
	nodeID := uuid.New()

	service := &stubReviewService{
		testPropagation: func(
			ctx context.Context, _ uuid.UUID, node domain.NodeRef, quality domain.Quality,
		) ([]credit.NeighborUpdate, error) {
			assert.Equal(t, domain.QualityEasy, quality)
			neighbor := testProgress(t, userID)
			neighbor.AccumulatedCredit = 0.2
			return []credit.NeighborUpdate{{
				Node:     neighbor.Node,
				Delta:    0.2,
				Effect:   credit.EffectAccumulated,
				Progress: neighbor,
			}}, nil
		},
	}

	body := map[string]any{"node_id": nodeID.String(), "node_type": "exercise", "quality": 5}
	recorder := doRequest(t, newTestRouter(service), userID, http.MethodPost, "/propagation/test", body)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response []NeighborEffectResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	require.Len(t, response, 1)
	assert.Equal(t, "accumulated", response[0].Effect)
	assert.InDelta(t, 0.2, response[0].Credit, 1e-9)
}

func TestEndSessionEndpoint(t *testing.T) {
	userID := uuid.New()

	t.Run("success", func(t *testing.T) {
		endedAt := time.Now().UTC()
		session := domain.NewStudySession(userID, endedAt.Add(-time.Hour))
		session.EndedAt = &endedAt

		service := &stubReviewService{
			endSession: func(ctx context.Context, _ uuid.UUID) (*domain.StudySession, error) {
				return session, nil
			},
		}

		recorder := doRequest(t, newTestRouter(service), userID, http.MethodPost, "/sessions/end", nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		var response SessionResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, session.ID, response.ID)
		require.NotNil(t, response.EndedAt)
	})

	t.Run("no open session", func(t *testing.T) {
		service := &stubReviewService{
			endSession: func(ctx context.Context, _ uuid.UUID) (*domain.StudySession, error) {
				return nil, review.ErrNoOpenSession
			},
		}
		recorder := doRequest(t, newTestRouter(service), userID, http.MethodPost, "/sessions/end", nil)
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}
