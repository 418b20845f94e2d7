package health

import (
	"context"
	"net/http"
	"testing"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context, bool) (int, string, error) {
	return http.StatusOK, "fine", nil
}

func failing(context.Context, bool) (int, string, error) {
	return http.StatusServiceUnavailable, `broken "badly"`, errors.NewServiceUnavailableError("down")
}

func nested(context.Context, bool) (int, string, error) {
	return http.StatusOK, `{"status":"200"}`, nil
}

func TestCheckAll(t *testing.T) {
	tests := []struct {
		name   string
		checks []Check
		want   int
	}{
		{"empty", nil, http.StatusOK},
		{"all ok", []Check{{"a", ok}, {"b", nested}}, http.StatusOK},
		{"one failing", []Check{{"a", ok}, {"b", failing}}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg, err := CheckAll(context.Background(), false, tt.checks)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)

			var parsed map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(msg), &parsed), msg)
		})
	}
}

func TestCheckAllReport(t *testing.T) {
	_, msg, err := CheckAll(context.Background(), true, []Check{{"Broadcast", nested}, {"Coordination", failing}})
	require.NoError(t, err)

	var parsed report
	require.NoError(t, json.Unmarshal([]byte(msg), &parsed), msg)

	assert.Equal(t, "503", parsed.Status)
	require.Len(t, parsed.Dependencies, 2)

	assert.Equal(t, "Broadcast", parsed.Dependencies[0].Resource)
	assert.JSONEq(t, `{"status":"200"}`, string(parsed.Dependencies[0].Dependencies))
	assert.Empty(t, parsed.Dependencies[0].Message)

	assert.Equal(t, `broken "badly"`, parsed.Dependencies[1].Message)
	assert.Contains(t, parsed.Dependencies[1].Error, "down")
}
