package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrdesk/ovrly/internal/capture"
	"github.com/vrdesk/ovrly/internal/input"
	"github.com/vrdesk/ovrly/internal/overlay"
	"github.com/vrdesk/ovrly/internal/sharedmem"
)

func testServer(t *testing.T) (*Server, *sharedmem.Store) {
	t.Helper()
	name := fmt.Sprintf("ovrly-api-%d-%s", os.Getpid(), t.Name())
	store, err := sharedmem.Create(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		sharedmem.Remove(name)
	})

	engine := overlay.New(overlay.DefaultParams(), store, capture.NewStaticSource(), input.NewRecorder())
	return NewServer(engine, store, nil, nil), store
}

func TestServer_Health(t *testing.T) {
	s, _ := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["hasFocus"])
}

func TestServer_AssignAndClearSlot(t *testing.T) {
	s, store := testServer(t)

	body, _ := json.Marshal(SlotRequest{
		Handle:    0xabc,
		IsMonitor: true,
		Placement: strPtr("head"),
	})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("PUT", "/api/slots/2", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	d := store.Read(2)
	assert.Equal(t, uint64(0xabc), d.Handle)
	assert.True(t, d.IsMonitor)
	assert.Equal(t, sharedmem.HeadLocked, d.Placement)
	assert.True(t, d.Pose.IsNaN(), "fresh assignments start unplaced")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/slots/2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(0), store.Read(2).Handle)
}

func TestServer_AssignValidation(t *testing.T) {
	s, _ := testServer(t)

	cases := []struct {
		name string
		path string
		body string
	}{
		{"slot out of range", "/api/slots/4", `{"handle": 1}`},
		{"missing handle", "/api/slots/0", `{}`},
		{"bad placement", "/api/slots/0", `{"handle": 1, "placement": "ceiling"}`},
		{"bad opacity", "/api/slots/0", `{"handle": 1, "opacity": 150}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest("PUT", tc.path, bytes.NewReader([]byte(tc.body))))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestServer_GetSlots(t *testing.T) {
	s, store := testServer(t)
	store.WriteDescriptor(1, sharedmem.NewDescriptor(77, false))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/slots", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var slots []overlay.SlotInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	require.Len(t, slots, sharedmem.OverlayCount)
	// The engine has not opened the slot yet; the API reports engine state,
	// not raw store contents.
	assert.Equal(t, uint64(0), slots[1].Handle)
}

func TestServer_UnavailableDependencies(t *testing.T) {
	s, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/windows", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/preview", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func strPtr(s string) *string { return &s }
