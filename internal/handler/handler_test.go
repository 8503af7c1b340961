package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familytree_go/internal/graph"
	"familytree_go/internal/repository"
	"familytree_go/internal/service"
)

type noopPlayer struct{}

func (noopPlayer) Play(asset string) error { return nil }
func (noopPlayer) Stop()                   {}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, payload *service.PushPayload) error { return nil }
func (noopNotifier) Dismiss(tag string)                                             {}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.InitDB("sqlite", ":memory:")
	require.NoError(t, err)

	logger := service.NewLogger(&service.LoggerConfig{Level: service.LogLevelFatal, Output: io.Discard})
	storage, err := service.NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)
	upload := service.NewUploadService(storage, logger)

	ringtones := service.NewRingtoneService(
		repository.NewRingtoneRepository(db), service.NewCache(), noopPlayer{}, upload, logger)
	calls := service.NewCallFlow(
		repository.NewProfileRepository(db, service.NewCache()), noopNotifier{}, ringtones, nil, logger)

	h := New(&Config{
		DB:        db,
		Members:   repository.NewMemberRepository(db),
		Relatives: repository.NewRelativeRepository(db),
		Locks:     graph.NewSpouseLock(filepath.Join(t.TempDir(), "locks.json"), logger),
		Upload:    upload,
		Ringtones: ringtones,
		Calls:     calls,
		Logger:    logger,
		JWTSecret: "test-secret",
	})
	r := gin.New()
	h.Register(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registerUser(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/auth/register", "", gin.H{
		"username": "zhangwei",
		"email":    "zw@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func createMember(t *testing.T, r *gin.Engine, token, path string, body gin.H) uint {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, path, token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Member struct {
			ID uint `json:"ID"`
		} `json:"member"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotZero(t, resp.Member.ID)
	return resp.Member.ID
}

func TestAuthFlowAndLogin(t *testing.T) {
	r := newTestRouter(t)
	registerUser(t, r)

	w := doJSON(t, r, http.MethodPost, "/auth/login", "", gin.H{
		"username": "zhangwei", "password": "secret123",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/auth/login", "", gin.H{
		"username": "zhangwei", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTreeRequiresAuth(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/tree", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTreeBuildAndCoupleEdge(t *testing.T) {
	r := newTestRouter(t)
	token := registerUser(t, r)

	createMember(t, r, token, "/api/tree/members", gin.H{"name": "张伟", "gender": "male"})
	createMember(t, r, token, "/api/tree/members/1/spouse", gin.H{"name": "李娜", "gender": "female"})

	w := doJSON(t, r, http.MethodGet, "/api/tree", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tree struct {
		Members []json.RawMessage `json:"members"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tree))
	assert.Len(t, tree.Members, 2)

	w = doJSON(t, r, http.MethodGet,
		"/api/tree/couple-edge?src=1&dst=2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var edge graph.CoupleEdge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &edge))
	assert.Equal(t, edge.From.Y, edge.To.Y)

	// 缺失节点不渲染连线
	w = doJSON(t, r, http.MethodGet, "/api/tree/couple-edge?src=1&dst=99", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestLockedSpouseMovesTogether(t *testing.T) {
	r := newTestRouter(t)
	token := registerUser(t, r)

	createMember(t, r, token, "/api/tree/members", gin.H{"name": "张伟", "gender": "male"})
	createMember(t, r, token, "/api/tree/members/1/spouse", gin.H{"name": "李娜", "gender": "female"})

	// 缺省锁定
	w := doJSON(t, r, http.MethodGet, "/api/tree/locks?a=1&b=2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"locked":true`)

	w = doJSON(t, r, http.MethodPost, "/api/tree/members/1/move", token, gin.H{"dx": 10, "dy": 5})
	require.Equal(t, http.StatusOK, w.Code)
	var moved struct {
		Moved []uint `json:"moved"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &moved))
	assert.ElementsMatch(t, []uint{1, 2}, moved.Moved)

	// 解锁后单独移动
	w = doJSON(t, r, http.MethodPost, "/api/tree/locks/toggle", token, gin.H{"a": 1, "b": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"locked":false`)

	w = doJSON(t, r, http.MethodPost, "/api/tree/members/1/move", token, gin.H{"dx": 10, "dy": 5})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &moved))
	assert.Equal(t, []uint{1}, moved.Moved)
}

func TestMergeEndpoints(t *testing.T) {
	r := newTestRouter(t)
	token := registerUser(t, r)

	createMember(t, r, token, "/api/tree/members", gin.H{"name": "张三丰", "gender": "male"})
	createMember(t, r, token, "/api/tree/members", gin.H{"name": "张三丰", "gender": "male"})

	require.Equal(t, http.StatusOK,
		doJSON(t, r, http.MethodPost, "/api/merge/enter", token, nil).Code)
	require.Equal(t, http.StatusOK,
		doJSON(t, r, http.MethodPost, "/api/merge/select", token, gin.H{"id": 1}).Code)

	w := doJSON(t, r, http.MethodGet, "/api/merge/suggestions", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "姓名相同")

	// 只选一人时确认被拒绝
	w = doJSON(t, r, http.MethodPost, "/api/merge/confirm", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Equal(t, http.StatusOK,
		doJSON(t, r, http.MethodPost, "/api/merge/select", token, gin.H{"id": 2}).Code)
	require.Equal(t, http.StatusOK,
		doJSON(t, r, http.MethodPost, "/api/merge/confirm", token, nil).Code)

	w = doJSON(t, r, http.MethodGet, "/api/tree", token, nil)
	var tree struct {
		Members []json.RawMessage `json:"members"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tree))
	assert.Len(t, tree.Members, 1)
}

func TestAnswerUnknownCallReturns404(t *testing.T) {
	r := newTestRouter(t)
	token := registerUser(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/calls/nope/answer", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRingtonePreferenceEndpoints(t *testing.T) {
	r := newTestRouter(t)
	token := registerUser(t, r)

	w := doJSON(t, r, http.MethodGet, "/api/ringtones", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "classic")

	w = doJSON(t, r, http.MethodPut, "/api/ringtones/preference", token, gin.H{"ringtone_id": "chime"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/ringtones/preference", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chime")

	w = doJSON(t, r, http.MethodPut, "/api/ringtones/preference", token, gin.H{"ringtone_id": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteMemberCleansReferences(t *testing.T) {
	r := newTestRouter(t)
	token := registerUser(t, r)

	createMember(t, r, token, "/api/tree/members", gin.H{"name": "张伟", "gender": "male"})
	createMember(t, r, token, "/api/tree/members/1/spouse", gin.H{"name": "李娜", "gender": "female"})

	w := doJSON(t, r, http.MethodDelete, "/api/tree/members/2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/tree", token, nil)
	assert.NotContains(t, w.Body.String(), "李娜")
	assert.NotContains(t, w.Body.String(), `"spouse_id":2`)
}
