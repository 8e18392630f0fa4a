package viewer

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"embedview/internal/chart"
	"embedview/internal/metrics"
	"embedview/internal/sample"
)

func newTestServer(t *testing.T, m *metrics.Metrics) (*Server, *Session) {
	t.Helper()
	sess, err := OpenSession(sampleArchive(t), newDataDir(t), m, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })

	return NewServer(sess, Options{
		Chart:        chart.DefaultOptions(),
		Metrics:      m,
		MountMetrics: true,
	}), sess
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func parseChartData(t *testing.T, body string) chart.Charts {
	t.Helper()
	require.True(t, strings.HasPrefix(body, "var chartData = "), body)
	require.True(t, strings.HasSuffix(body, ";"), body)
	payload := strings.TrimSuffix(strings.TrimPrefix(body, "var chartData = "), ";")

	var charts chart.Charts
	require.NoError(t, json.Unmarshal([]byte(payload), &charts))
	return charts
}

func TestServer_Index(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := get(t, srv.Handler(), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find(`script[src="/data.js"]`).Length())
	for _, id := range []string{"#group", "#color", "#shape", "#chartContainer"} {
		assert.Equal(t, 1, doc.Find(id).Length(), id)
	}

	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/nope").Code)
}

func TestServer_DataJS(t *testing.T) {
	srv, sess := newTestServer(t, nil)

	rec := get(t, srv.Handler(), "/data.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/javascript", rec.Header().Get("Content-Type"))

	charts := parseChartData(t, rec.Body.String())
	require.Contains(t, charts, sample.GroupID)
	desc := charts[sample.GroupID]["Cluster"]["Modality"]
	require.NotNil(t, desc)
	require.Len(t, desc.Data, 4)
	require.NotNil(t, desc.Title)
	assert.Equal(t, "Sample", desc.Title.Text)

	// Image tooltips link through /static/ and the files are served there.
	var tooltip string
	for _, s := range desc.Data {
		if len(s.DataPoints) > 0 {
			tooltip = s.DataPoints[0].ToolTipContent
			break
		}
	}
	html, err := goquery.NewDocumentFromReader(strings.NewReader(tooltip))
	require.NoError(t, err)
	src, ok := html.Find("img").Attr("src")
	require.True(t, ok, tooltip)
	require.True(t, strings.HasPrefix(src, "/static/resources/"), src)

	img := get(t, srv.Handler(), src)
	require.Equal(t, http.StatusOK, img.Code)
	onDisk, err := os.ReadFile(sess.Dir + strings.TrimPrefix(src, "/static"))
	require.NoError(t, err)
	assert.Equal(t, onDisk, img.Body.Bytes())
}

func TestServer_DataJSRecomputedPerRequest(t *testing.T) {
	srv, sess := newTestServer(t, nil)

	first := parseChartData(t, get(t, srv.Handler(), "/data.js").Body.String())
	require.Contains(t, first, sample.GroupID)

	require.NoError(t, os.WriteFile(sess.MetaPath(), []byte(`{"embeddings-viewer-version": 1, "title": "Edited", "data": []}`), 0644))
	second := parseChartData(t, get(t, srv.Handler(), "/data.js").Body.String())
	assert.Empty(t, second)
}

func TestServer_DataJSErrors(t *testing.T) {
	m := metrics.New(metrics.Config{})
	srv, sess := newTestServer(t, m)

	require.NoError(t, os.WriteFile(sess.MetaPath(), []byte(`{"embeddings-viewer-version": 3, "data": []}`), 0644))
	rec := get(t, srv.Handler(), "/data.js")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to build chart data")

	require.NoError(t, os.Remove(sess.MetaPath()))
	assert.Equal(t, http.StatusInternalServerError, get(t, srv.Handler(), "/data.js").Code)

	text := metricsText(t, m)
	assert.Contains(t, text, `embedview_transform_errors_total{kind="format"} 1`)
	assert.Contains(t, text, `embedview_transform_errors_total{kind="missing"} 1`)
	assert.Contains(t, text, `embedview_http_requests_total{code="500",handler="data"} 2`)
}

func TestServer_Static(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := get(t, srv.Handler(), "/static/meta.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "embeddings-viewer-version")

	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/static/").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/static/resources/").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/static/missing.png").Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/data.js", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Health(t *testing.T) {
	srv, sess := newTestServer(t, nil)

	rec := get(t, srv.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, sess.ID, resp.Session)
	assert.Equal(t, 1, resp.Groups)
	assert.Equal(t, 2, resp.Points)

	require.NoError(t, os.Remove(sess.MetaPath()))
	rec = get(t, srv.Handler(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.New(metrics.Config{})
	srv, _ := newTestServer(t, m)

	get(t, srv.Handler(), "/")
	get(t, srv.Handler(), "/data.js")

	rec := get(t, srv.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `embedview_http_requests_total{code="200",handler="index"} 1`)
	assert.Contains(t, body, `embedview_http_requests_total{code="200",handler="data"} 1`)
	assert.Contains(t, body, "embedview_transform_duration_seconds_count 1")

	unmounted := NewServer(srv.session, Options{Metrics: m})
	assert.Equal(t, http.StatusNotFound, get(t, unmounted.Handler(), "/metrics").Code)
}

func TestServer_Serve(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, l) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + l.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"healthy"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", errorKind(nil))
	assert.Equal(t, "missing", errorKind(os.ErrNotExist))
	assert.Equal(t, "other", errorKind(io.ErrUnexpectedEOF))
}
