package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavechat/client/internal/domain/shared"
	syncdomain "github.com/wavechat/client/internal/domain/sync"
	"github.com/wavechat/client/internal/interfaces/http/dto"
)

// stubQueue scripts the ActionQueue surface
type stubQueue struct {
	enqueueID  uuid.UUID
	enqueueErr error
	enqueued   []syncdomain.ActionPayload
	listOut    []*syncdomain.QueuedAction
	listErr    error
	markErr    error
}

func (q *stubQueue) Enqueue(ctx context.Context, payload syncdomain.ActionPayload) (uuid.UUID, error) {
	if q.enqueueErr != nil {
		return uuid.Nil, q.enqueueErr
	}
	q.enqueued = append(q.enqueued, payload)
	return q.enqueueID, nil
}

func (q *stubQueue) List(ctx context.Context, status syncdomain.ActionStatus) ([]*syncdomain.QueuedAction, error) {
	return q.listOut, q.listErr
}

func (q *stubQueue) MarkSent(ctx context.Context, id uuid.UUID) error { return q.markErr }
func (q *stubQueue) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return q.markErr
}

func setupActionRouter(q ActionQueue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewActionHandler(q).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestEnqueueEndpoint(t *testing.T) {
	t.Run("accepts a message action", func(t *testing.T) {
		q := &stubQueue{enqueueID: uuid.New()}
		engine := setupActionRouter(q)

		w := doJSON(t, engine, http.MethodPost, "/api/v1/actions", dto.EnqueueRequest{
			Kind:    string(syncdomain.KindMessageSend),
			Message: &dto.MessagePayload{ConversationID: "c1", Content: "hello"},
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		require.Len(t, q.enqueued, 1)
		assert.Equal(t, syncdomain.KindMessageSend, q.enqueued[0].ActionKind())

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		engine := setupActionRouter(&stubQueue{})
		w := doJSON(t, engine, http.MethodPost, "/api/v1/actions", map[string]any{"kind": "poll.vote"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects kind without matching payload", func(t *testing.T) {
		engine := setupActionRouter(&stubQueue{})
		w := doJSON(t, engine, http.MethodPost, "/api/v1/actions", dto.EnqueueRequest{
			Kind: string(syncdomain.KindMessageSend),
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no session maps to unprocessable", func(t *testing.T) {
		q := &stubQueue{enqueueErr: shared.ErrInvalidState}
		engine := setupActionRouter(q)
		w := doJSON(t, engine, http.MethodPost, "/api/v1/actions", dto.EnqueueRequest{
			Kind:   string(syncdomain.KindStatusUpdate),
			Status: &dto.StatusPayload{Status: "away"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("storage exhaustion maps to 507", func(t *testing.T) {
		q := &stubQueue{enqueueErr: shared.ErrStorageExhausted}
		engine := setupActionRouter(q)
		w := doJSON(t, engine, http.MethodPost, "/api/v1/actions", dto.EnqueueRequest{
			Kind:   string(syncdomain.KindStatusUpdate),
			Status: &dto.StatusPayload{Status: "away"},
		})
		assert.Equal(t, http.StatusInsufficientStorage, w.Code)
	})
}

func TestListEndpoint(t *testing.T) {
	t.Run("defaults to pending", func(t *testing.T) {
		action := syncdomain.NewQueuedAction("user-1", syncdomain.StatusUpdatePayload{Status: "away"})
		q := &stubQueue{listOut: []*syncdomain.QueuedAction{action}}
		engine := setupActionRouter(q)

		w := doJSON(t, engine, http.MethodGet, "/api/v1/actions", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool `json:"success"`
			Data    []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		assert.Equal(t, action.ID.String(), resp.Data[0].ID)
		assert.Equal(t, "pending", resp.Data[0].Status)
	})

	t.Run("rejects unknown status filter", func(t *testing.T) {
		engine := setupActionRouter(&stubQueue{})
		w := doJSON(t, engine, http.MethodGet, "/api/v1/actions?status=archived", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMarkEndpoints(t *testing.T) {
	t.Run("mark sent by id", func(t *testing.T) {
		engine := setupActionRouter(&stubQueue{})
		w := doJSON(t, engine, http.MethodPost, "/api/v1/actions/"+uuid.NewString()+"/sent", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid id rejected", func(t *testing.T) {
		engine := setupActionRouter(&stubQueue{})
		w := doJSON(t, engine, http.MethodPost, "/api/v1/actions/not-a-uuid/sent", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("mark failed requires a reason", func(t *testing.T) {
		engine := setupActionRouter(&stubQueue{})
		id := uuid.NewString()

		w := doJSON(t, engine, http.MethodPost, "/api/v1/actions/"+id+"/failed", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doJSON(t, engine, http.MethodPost, "/api/v1/actions/"+id+"/failed", map[string]string{"reason": "cancelled"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing action maps to not found class", func(t *testing.T) {
		q := &stubQueue{markErr: shared.ErrNotFound}
		engine := setupActionRouter(q)
		w := doJSON(t, engine, http.MethodPost, "/api/v1/actions/"+uuid.NewString()+"/sent", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
