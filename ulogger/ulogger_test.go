package ulogger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected map[string]bool
	}{
		{"DEBUG", map[string]bool{"debug message": true, "info message": true, "warn message": true, "error message": true}},
		{"INFO", map[string]bool{"debug message": false, "info message": true, "warn message": true, "error message": true}},
		{"WARN", map[string]bool{"debug message": false, "info message": false, "warn message": true, "error message": true}},
		{"ERROR", map[string]bool{"debug message": false, "info message": false, "warn message": false, "error message": true}},
		{"warn", map[string]bool{"debug message": false, "info message": false, "warn message": true, "error message": true}},
		{"bogus", map[string]bool{"debug message": false, "info message": true, "warn message": true, "error message": true}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer

			logger := ulogger.New("test-service", ulogger.WithLevel(tt.level), ulogger.WithWriter(&buf))

			logger.Debugf("debug message")
			logger.Infof("info message")
			logger.Warnf("warn message")
			logger.Errorf("error message")

			output := buf.String()
			for msg, shouldAppear := range tt.expected {
				assert.Equal(t, shouldAppear, strings.Contains(output, msg), "level %s message %q", tt.level, msg)
			}
		})
	}
}

func TestNewChildKeepsWriter(t *testing.T) {
	var buf bytes.Buffer

	parent := ulogger.New("parent", ulogger.WithWriter(&buf), ulogger.WithLevel("INFO"))
	child := parent.New("child")

	child.Infof("[Sequencer] hello %d", 42)
	assert.Contains(t, buf.String(), "[Sequencer] hello 42")
}

func TestTestLoggerType(t *testing.T) {
	logger := ulogger.New("x", ulogger.WithLoggerType("test"))
	require.IsType(t, &ulogger.TestLogger{}, logger)

	// must not exit
	logger.Fatalf("fatal")
}
