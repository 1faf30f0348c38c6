package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dosada05/trust-tournament/repositories"
	"github.com/Dosada05/trust-tournament/services"
	"github.com/stretchr/testify/assert"
)

func TestReadJSON(t *testing.T) {
	type input struct {
		Name string `json:"name"`
	}
	cases := map[string]struct {
		body    string
		wantErr string
	}{
		"valid":         {`{"name":"x"}`, ""},
		"empty":         {``, "body must not be empty"},
		"syntax":        {`{"name":`, "badly-formed JSON"},
		"wrong type":    {`{"name":1}`, `incorrect JSON type for field "name"`},
		"unknown field": {`{"nick":"x"}`, "unknown key"},
		"two values":    {`{"name":"x"}{"name":"y"}`, "single JSON value"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst input
			err := readJSON(httptest.NewRecorder(), req, &dst)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				assert.Equal(t, "x", dst.Name)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestMapServiceErrorToHTTP(t *testing.T) {
	re := newResponder(slog.New(slog.NewTextHandler(io.Discard, nil)))
	cases := []struct {
		err    error
		status int
	}{
		{services.ErrTournamentNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", repositories.ErrPlayerNotFound), http.StatusNotFound},
		{services.ErrInvalidChoice, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: t1", services.ErrConcurrentUpdate), http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		re.mapServiceErrorToHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil), tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Contains(t, rec.Body.String(), `"error"`)
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=15&offset=-2&bad=x", nil)

	v, err := queryInt(req, "limit", 20)
	assert.NoError(t, err)
	assert.Equal(t, 15, v)

	v, err = queryInt(req, "missing", 20)
	assert.NoError(t, err)
	assert.Equal(t, 20, v)

	_, err = queryInt(req, "offset", 0)
	assert.Error(t, err)
	_, err = queryInt(req, "bad", 0)
	assert.Error(t, err)
}

func TestOriginChecker(t *testing.T) {
	allowAll := originChecker(nil)
	req := httptest.NewRequest(http.MethodGet, "/ws/lobby", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.True(t, allowAll(req))

	check := originChecker([]string{"https://app.example"})
	assert.False(t, check(req))
	req.Header.Set("Origin", "https://app.example")
	assert.True(t, check(req))
}
