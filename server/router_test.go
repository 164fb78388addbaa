package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bj-trainer/server/gateway"
	"bj-trainer/server/trainer"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := trainer.NewService(trainer.Rules{Decks: 6, ReshoeAt: 52, Seed: 17}, nil)
	gw := gateway.New(svc)
	svc.OnChange(gw.Publish)
	return Router(svc, gw, nil)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) trainer.View {
	t.Helper()
	var v trainer.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok": true`)
}

func TestSessionFlow(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeView(t, rec).ID
	base := "/api/sessions/" + id

	rec = do(t, h, http.MethodPost, base+"/drill", drillRequest{Cards: []string{"7", "6", "9", "10", "5"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, base+"/deal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, trainer.PlayerTurn, v.Phase)
	assert.Equal(t, 16, v.Hands[0].Value)
	assert.True(t, v.HoleHidden)

	rec = do(t, h, http.MethodGet, base+"/advice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var adv struct {
		Advice []struct {
			Action string  `json:"action"`
			EV     float64 `json:"ev"`
		} `json:"advice"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &adv))
	assert.Len(t, adv.Advice, 4)

	rec = do(t, h, http.MethodPost, base+"/split", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/stand", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeView(t, rec)
	assert.Equal(t, trainer.Settled, v.Phase)
	assert.False(t, v.HoleHidden)
	assert.Equal(t, trainer.Lose, v.Hands[0].Outcome)
	require.NotNil(t, v.LastGrade)

	rec = do(t, h, http.MethodGet, base+"/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rep Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, 1, rep.Rounds)
	assert.Equal(t, -1.0, rep.NetPerRound)

	rec = do(t, h, http.MethodPost, base+"/new-hand", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorStatuses(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/api/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/sessions", nil)
	id := decodeView(t, rec).ID
	base := "/api/sessions/" + id

	rec = do(t, h, http.MethodPost, base+"/hit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"view"`)

	rec = do(t, h, http.MethodPost, base+"/fold", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/drill", drillRequest{Cards: []string{"X"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMistakesWithoutDB(t *testing.T) {
	h := newTestRouter(t)
	id := decodeView(t, do(t, h, http.MethodPost, "/api/sessions", nil)).ID
	rec := do(t, h, http.MethodGet, "/api/sessions/"+id+"/mistakes", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows": []`)
}

func TestStaticPage(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/web/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<html")
}
