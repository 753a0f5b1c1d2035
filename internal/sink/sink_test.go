package sink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/dprs_gateway/internal/station"
)

var sampleReport = station.Report{
	ID:         "7M4MON",
	Latitude:   34.625667,
	Longitude:  135.569,
	Geohash:    "xn0kuzqm4",
	ReceivedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	Raw:        "$$CRC9396,7M4MON>API705,DSTAR*:/020304h3437.54N/13534.14Eb/",
}

func TestTraccar_SendsOsmAndQuery(t *testing.T) {
	var got url.Values
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		got = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, err := NewTraccar(srv.URL, time.Second)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Send(context.Background(), sampleReport))
	assert.Equal(t, http.MethodGet, method)
	assert.Equal(t, "7M4MON", got.Get("id"))
	assert.Equal(t, "34.625667", got.Get("lat"))
	assert.Equal(t, "135.569", got.Get("lon"))
}

func TestTraccar_URL(t *testing.T) {
	tr, err := NewTraccar("http://localhost:5055", time.Second)
	require.NoError(t, err)

	r := sampleReport
	r.Latitude, r.Longitude = -33.85, -151.21
	assert.Equal(t, "http://localhost:5055/?id=7M4MON&lat=-33.85&lon=-151.21", tr.URL(r))
}

func TestTraccar_URLKeepsExistingQuery(t *testing.T) {
	tr, err := NewTraccar("https://tracker.example/osmand?key=abc", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "https://tracker.example/osmand?id=7M4MON&key=abc&lat=34.625667&lon=135.569", tr.URL(sampleReport))
}

func TestTraccar_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	tr, err := NewTraccar(srv.URL, time.Second)
	require.NoError(t, err)

	err = tr.Send(context.Background(), sampleReport)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestTraccar_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	tr, err := NewTraccar(addr, time.Second)
	require.NoError(t, err)
	assert.Error(t, tr.Send(context.Background(), sampleReport))
}

func TestNewTraccar_RejectsBadURL(t *testing.T) {
	_, err := NewTraccar("ftp://localhost:5055", time.Second)
	assert.Error(t, err)

	_, err = NewTraccar("://", time.Second)
	assert.Error(t, err)
}

type fakeSink struct {
	name   string
	err    error
	sent   []station.Report
	closed bool
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Send(_ context.Context, r station.Report) error {
	f.sent = append(f.sent, r)
	return f.err
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func TestMulti_SendsToEverySinkOnce(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b", err: errors.New("broker down")}
	c := &fakeSink{name: "c"}
	m := NewMulti(a, b)
	m.Add(c)
	assert.Equal(t, 3, m.Len())

	err := m.Send(context.Background(), sampleReport)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b: broker down")
	assert.Equal(t, []string{"b"}, FailedSinks(err))

	for _, s := range []*fakeSink{a, b, c} {
		assert.Len(t, s.sent, 1, s.name)
	}

	require.NoError(t, m.Close())
	assert.True(t, a.closed && b.closed && c.closed)
}

func TestMulti_AllSucceed(t *testing.T) {
	m := NewMulti(&fakeSink{name: "a"}, &fakeSink{name: "b"})
	err := m.Send(context.Background(), sampleReport)
	assert.NoError(t, err)
	assert.Nil(t, FailedSinks(err))
}

func TestFailedSinks_PlainError(t *testing.T) {
	assert.Empty(t, FailedSinks(errors.New("x")))
	assert.Equal(t, []string{"traccar"}, FailedSinks(&SendError{Sink: "traccar", Err: errors.New("x")}))
}

func TestHTTPCallsCounted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	tr, err := NewTraccar(srv.URL, time.Second)
	require.NoError(t, err)
	m := NewMulti(tr)

	require.NoError(t, m.Send(context.Background(), sampleReport))
	assert.Equal(t, int32(1), calls.Load())
}
