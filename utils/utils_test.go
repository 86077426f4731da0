package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	prev := ""
	for i := 0; i < 1000; i++ {
		id := GenerateID()
		require.True(t, IsID(id), id)

		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}

		if prev != "" {
			require.Less(t, prev, id)
		}
		prev = id
	}

	require.False(t, IsID("not-an-id"))
	require.False(t, IsID(""))
}

func TestJSONEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		write    func(c *gin.Context)
		status   int
		expected string
		aborted  bool
	}{
		{
			name:     "data",
			write:    func(c *gin.Context) { JSONResponse(c, http.StatusOK, []int{1}, "ok") },
			status:   http.StatusOK,
			expected: `{"status":200,"message":"ok","data":[1]}`,
		},
		{
			name:     "empty_list_kept",
			write:    func(c *gin.Context) { JSONResponse(c, http.StatusOK, []int{}, "ok") },
			status:   http.StatusOK,
			expected: `{"status":200,"message":"ok","data":[]}`,
		},
		{
			name:     "error",
			write:    func(c *gin.Context) { JSONError(c, http.StatusConflict, errors.New("boom"), "bad") },
			status:   http.StatusConflict,
			expected: `{"status":409,"message":"bad","error":"boom"}`,
		},
		{
			name:     "abort",
			write:    func(c *gin.Context) { JSONAbort(c, http.StatusUnauthorized, errors.New("who"), "nope") },
			status:   http.StatusUnauthorized,
			expected: `{"status":401,"message":"nope","error":"who"}`,
			aborted:  true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tc.write(c)

			require.Equal(t, tc.status, w.Code)
			require.JSONEq(t, tc.expected, w.Body.String())
			require.Equal(t, tc.aborted, c.IsAborted())
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	t.Cleanup(func() {
		SetLogOutput(new(bytes.Buffer))
		require.NoError(t, SetLogLevel("info"))
	})

	require.Error(t, SetLogLevel("loud"))
	require.NoError(t, SetLogLevel("warn"))

	Info("hidden", nil)
	Warn("shown", map[string]any{"item_id": "item1"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "shown", entry["msg"])
	require.Equal(t, "warning", entry["level"])
	require.Equal(t, "item1", entry["item_id"])
}
