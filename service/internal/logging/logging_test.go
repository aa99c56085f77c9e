package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/badluck/service/internal/config"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	require.Error(t, err)
}

func TestNewJSONWithFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(config.LogConfig{Level: "debug", Format: "json", Dir: dir, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger.Info("hello")
	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestRequestLoggerSkipsHealthyProbes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	r := gin.New()
	r.Use(RequestLogger(logger))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Contains(t, buf.String(), "path=/boom")
	assert.Contains(t, buf.String(), "status=500")
}
