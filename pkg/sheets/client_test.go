package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/talent-sync/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(),
		WithEndpoint(srv.URL+"/"),
		WithoutAuthentication(),
		WithHTTPClient(srv.Client()),
		WithTimeout(5*time.Second),
	)
	require.NoError(t, err)
	return c
}

func TestReadValues(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v4/spreadsheets/sheet-1/values/'Candidates'", r.URL.Path)
		assert.Equal(t, "FORMATTED_VALUE", r.URL.Query().Get("valueRenderOption"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"Candidates!A1:R3","values":[["id","","First"],["1",null,"Ann"],[42]]}`))
	})

	rows, err := c.ReadValues(context.Background(), "sheet-1", "'Candidates'")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "", "First"}, rows[0])
	assert.Equal(t, []string{"1", "", "Ann"}, rows[1])
	assert.Equal(t, []string{"42"}, rows[2])
}

func TestAppendValues(t *testing.T) {
	var got struct {
		Values [][]string `json:"values"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, ":append"), r.URL.Path)
		assert.Equal(t, "USER_ENTERED", r.URL.Query().Get("valueInputOption"))
		assert.Equal(t, "INSERT_ROWS", r.URL.Query().Get("insertDataOption"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"Candidates!A5:R6","updatedRows":2}}`))
	})

	resp, err := c.AppendValues(context.Background(), "sheet-1", "'Candidates'!A1",
		[][]string{{"", "", "Ann", "Lee"}, {"", "", "Bob"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.UpdatedRows)
	assert.Equal(t, "Candidates!A5:R6", resp.UpdatedRange)
	assert.Equal(t, [][]string{{"", "", "Ann", "Lee"}, {"", "", "Bob"}}, got.Values)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
		auth      bool
	}{
		{"rate limited", http.StatusTooManyRequests, true, false},
		{"server error", http.StatusServiceUnavailable, true, false},
		{"unauthorized", http.StatusUnauthorized, false, true},
		{"forbidden", http.StatusForbidden, false, true},
		{"bad request", http.StatusBadRequest, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"nope"}}`, tt.status)
			})
			_, err := c.ReadValues(context.Background(), "s", "A1")
			require.Error(t, err)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
			assert.Equal(t, tt.auth, resilience.IsAuth(err))
		})
	}
}
