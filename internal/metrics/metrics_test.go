package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequest("GET", "/", 200, 10*time.Millisecond)
	c.RecordRequest("GET", "/", 200, 20*time.Millisecond)
	c.RecordRequest("POST", "/users/signup/", 302, time.Millisecond)
	c.RecordSignup()
	c.RecordLogin(true)
	c.RecordLogin(false)
	c.RecordLogin(false)
	c.RecordRateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "/", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("POST", "/users/signup/", "302")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.signups))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.logins.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.logins.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimited))
}

func TestHandler_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSignup()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "newspaper_signups_total 1"))
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordRequest("GET", "/", 200, time.Second)
	r.RecordSignup()
	r.RecordLogin(true)
	r.RecordRateLimited()
}
