package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"habitbot/internal/auth"
	"habitbot/internal/habits"
	"habitbot/internal/storage"
	logx "habitbot/pkg/logx"
)

var testSecret = []byte("test-secret")

type apiFixture struct {
	srv    *httptest.Server
	api    *API
	owner  string
	other  string
	staff  string
	place  int64
	action int64
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	ctx := context.Background()
	st, err := storage.Open(ctx, storage.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "api.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	q := st.Q(ctx)
	token := func(email string, staff bool) string {
		id, err := q.CreateUser(ctx, storage.User{Email: email, IsStaff: staff})
		require.NoError(t, err)
		tok, err := auth.Issue(testSecret, id, time.Hour, time.Now())
		require.NoError(t, err)
		return tok
	}
	placeID, err := q.CreateCatalogItem(ctx, storage.Places, storage.CatalogItem{Name: "park"})
	require.NoError(t, err)
	actionID, err := q.CreateCatalogItem(ctx, storage.Actions, storage.CatalogItem{Name: "walk"})
	require.NoError(t, err)

	api := NewAPI(Deps{
		Habits:  habits.NewService(st, nil, nil, logx.Nop()),
		Places:  habits.NewCatalogService(st, storage.Places, logx.Nop()),
		Actions: habits.NewCatalogService(st, storage.Actions, logx.Nop()),
		Auth:    auth.NewAuthenticator(testSecret, st),
		Health: func(context.Context) map[string]any {
			return map[string]any{"scheduler": map[string]any{"running": true}}
		},
	})
	srv := httptest.NewServer(withRequestLog(logx.Nop(), api.Handler()))
	t.Cleanup(srv.Close)

	return apiFixture{
		srv:    srv,
		api:    api,
		owner:  token("owner@example.com", false),
		other:  token("other@example.com", false),
		staff:  token("staff@example.com", true),
		place:  placeID,
		action: actionID,
	}
}

func (fx apiFixture) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, fx.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp.StatusCode, out
}

func (fx apiFixture) habit(extra map[string]any) map[string]any {
	m := map[string]any{"place": fx.place, "action": fx.action}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func nonField(body map[string]any) []any {
	v, _ := body["non_field_errors"].([]any)
	return v
}

func TestRequiresToken(t *testing.T) {
	fx := newAPIFixture(t)
	status, body := fx.do(t, http.MethodGet, "/habits/", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Contains(t, body["detail"], "credentials")

	status, _ = fx.do(t, http.MethodGet, "/habits/", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, body = fx.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
	require.NotNil(t, body["scheduler"])
}

func TestCreateHabitValidation(t *testing.T) {
	fx := newAPIFixture(t)

	status, body := fx.do(t, http.MethodPost, "/habits/create/", fx.owner, fx.habit(nil))
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, []any{habits.MsgRewardOrLink}, nonField(body))

	status, useful := fx.do(t, http.MethodPost, "/habits/create/", fx.owner, fx.habit(map[string]any{"reward": "tea"}))
	require.Equal(t, http.StatusCreated, status)

	status, body = fx.do(t, http.MethodPost, "/habits/create/", fx.owner, fx.habit(map[string]any{
		"reward":         "yes",
		"pleasure_habit": useful["id"],
		"periodicity":    8,
		"execution_time": 130,
	}))
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, []any{
		habits.MsgRewardAndLink, habits.MsgExecutionTime, habits.MsgLinkNotPleasurable, habits.MsgPeriodicity,
	}, nonField(body))

	status, body = fx.do(t, http.MethodPost, "/habits/create/", fx.owner, map[string]any{"reward": "tea"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, []any{"This field is required."}, body["place"])

	status, body = fx.do(t, http.MethodPost, "/habits/create/", fx.owner, fx.habit(map[string]any{"periodicity": "often"}))
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body, "periodicity")
}

func TestHabitLifecycle(t *testing.T) {
	fx := newAPIFixture(t)

	status, pleasant := fx.do(t, http.MethodPost, "/habits/create/", fx.owner, fx.habit(map[string]any{"is_pleasure": true, "is_public": true}))
	require.Equal(t, http.StatusCreated, status)
	status, h := fx.do(t, http.MethodPost, "/habits/create/", fx.owner, fx.habit(map[string]any{
		"pleasure_habit": pleasant["id"], "periodicity": 7, "execution_time": 120,
	}))
	require.Equal(t, http.StatusCreated, status)
	require.Nil(t, h["reward"])
	path := fmt.Sprintf("/habits/%v/", h["id"])

	status, got := fx.do(t, http.MethodGet, path, fx.owner, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, h["id"], got["id"])

	status, _ = fx.do(t, http.MethodGet, path, fx.other, nil)
	require.Equal(t, http.StatusForbidden, status)
	status, _ = fx.do(t, http.MethodGet, path, fx.staff, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = fx.do(t, http.MethodGet, "/habits/9999/", fx.owner, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, body := fx.do(t, http.MethodPatch, path+"update/", fx.owner, map[string]any{"reward": "cake"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, []any{habits.MsgLinkBlocksReward, habits.MsgRewardAndLink}, nonField(body))

	status, body = fx.do(t, http.MethodPatch, path+"update/", fx.owner, map[string]any{"periodicity": 3})
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 3, body["periodicity"])

	status, _ = fx.do(t, http.MethodDelete, fmt.Sprintf("/habits/%v/delete/", pleasant["id"]), fx.owner, nil)
	require.Equal(t, http.StatusConflict, status)

	status, _ = fx.do(t, http.MethodGet, path+"delete/", fx.owner, nil)
	require.Equal(t, http.StatusMethodNotAllowed, status)

	status, _ = fx.do(t, http.MethodDelete, path+"delete/", fx.other, nil)
	require.Equal(t, http.StatusForbidden, status)
	status, _ = fx.do(t, http.MethodDelete, path+"delete/", fx.owner, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body = fx.do(t, http.MethodGet, "/habits/public/", fx.other, nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 1, body["count"])

	status, body = fx.do(t, http.MethodGet, "/habits/", fx.other, nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 0, body["count"])
	require.Equal(t, []any{}, body["results"])
}

func TestPlacesCRUDAndProtection(t *testing.T) {
	fx := newAPIFixture(t)

	status, body := fx.do(t, http.MethodPost, "/habits/places/", fx.owner, map[string]any{"name": ""})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body, "name")

	status, created := fx.do(t, http.MethodPost, "/habits/places/", fx.owner, map[string]any{"name": "library", "description": "quiet"})
	require.Equal(t, http.StatusCreated, status)
	path := fmt.Sprintf("/habits/places/%v/", created["id"])

	status, body = fx.do(t, http.MethodPatch, path, fx.owner, map[string]any{"name": "city library"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "quiet", body["description"])

	status, _ = fx.do(t, http.MethodPost, "/habits/create/", fx.owner, fx.habit(map[string]any{"reward": "tea"}))
	require.Equal(t, http.StatusCreated, status)
	status, body = fx.do(t, http.MethodDelete, fmt.Sprintf("/habits/places/%d/", fx.place), fx.owner, nil)
	require.Equal(t, http.StatusConflict, status)
	require.NotEmpty(t, body["detail"])

	status, _ = fx.do(t, http.MethodDelete, path, fx.owner, nil)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = fx.do(t, http.MethodGet, path, fx.owner, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, body = fx.do(t, http.MethodGet, fmt.Sprintf("/habits/actions/%d/", fx.action), fx.owner, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "walk", body["name"])
}

func TestPagination(t *testing.T) {
	fx := newAPIFixture(t)
	for i := 0; i < 11; i++ {
		status, _ := fx.do(t, http.MethodPost, "/habits/actions/", fx.owner, map[string]any{"name": fmt.Sprintf("a%d", i)})
		require.Equal(t, http.StatusCreated, status)
	}
	// 12 actions in total, default page size 5

	status, body := fx.do(t, http.MethodGet, "/habits/actions/", fx.owner, nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 12, body["count"])
	require.Len(t, body["results"], 5)
	require.Equal(t, fx.srv.URL+"/habits/actions/?page=2", body["next"])
	require.Nil(t, body["previous"])

	status, body = fx.do(t, http.MethodGet, "/habits/actions/?page=3", fx.owner, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["results"], 2)
	require.Nil(t, body["next"])
	require.Equal(t, fx.srv.URL+"/habits/actions/?page=2", body["previous"])

	status, body = fx.do(t, http.MethodGet, "/habits/actions/?page=4", fx.owner, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "Invalid page.", body["detail"])

	status, _ = fx.do(t, http.MethodGet, "/habits/actions/?page=zero", fx.owner, nil)
	require.Equal(t, http.StatusNotFound, status)

	// offsets that would overflow int are past the end, not server errors
	for _, page := range []string{"1000000", "3689348814741910324", "9223372036854775807"} {
		status, body = fx.do(t, http.MethodGet, "/habits/actions/?page="+page, fx.owner, nil)
		require.Equal(t, http.StatusNotFound, status, page)
		require.Equal(t, "Invalid page.", body["detail"], page)
	}

	status, body = fx.do(t, http.MethodGet, "/habits/actions/?page_size=100", fx.owner, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["results"], 12)

	fx.api.SetPagination(2, 3)
	status, body = fx.do(t, http.MethodGet, "/habits/actions/?page_size=100", fx.owner, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["results"], 3)
}

func TestUnknownRoutes(t *testing.T) {
	fx := newAPIFixture(t)
	for _, p := range []string{"/habits/abc/", "/habits/1/share/", "/habits/places/x/", "/habits/1/update/extra/"} {
		status, _ := fx.do(t, http.MethodGet, p, fx.owner, nil)
		require.Equal(t, http.StatusNotFound, status, p)
	}
}
