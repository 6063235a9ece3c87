package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-sightline/internal/log"
	"github.com/teslashibe/go-sightline/pkg/announce"
	"github.com/teslashibe/go-sightline/pkg/frame"
	"github.com/teslashibe/go-sightline/pkg/guide"
	"github.com/teslashibe/go-sightline/pkg/hub"
	"github.com/teslashibe/go-sightline/pkg/peer"
	"github.com/teslashibe/go-sightline/pkg/pipeline"
	"github.com/teslashibe/go-sightline/pkg/prefs"
)

type fakeGuide struct {
	mu    sync.Mutex
	mode  guide.Mode
	scene guide.Scene
}

func (f *fakeGuide) Mode() guide.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func (f *fakeGuide) SetMode(m guide.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = m
	return nil
}

func (f *fakeGuide) Scene() guide.Scene { return f.scene }

type fakeLanes struct{}

func (fakeLanes) Status() []pipeline.LaneStatus {
	return []pipeline.LaneStatus{{Lane: pipeline.LaneDetection, State: pipeline.StateRunning}}
}
func (fakeLanes) Published() uint64 { return 7 }

type fakeSpeech struct{}

func (fakeSpeech) Stats() announce.Stats { return announce.Stats{Queued: 2} }

type fakePeers struct {
	err   error
	offer webrtc.SessionDescription
}

func (f *fakePeers) Offer(_ context.Context, offer webrtc.SessionDescription) (*peer.Session, webrtc.SessionDescription, error) {
	f.offer = offer
	if f.err != nil {
		return nil, webrtc.SessionDescription{}, f.err
	}
	return nil, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}
func (f *fakePeers) Count() int { return 2 }

type frameSink struct {
	mu     sync.Mutex
	frames []*frame.Frame
}

func (s *frameSink) Publish(f *frame.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

type fixture struct {
	srv    *Server
	guide  *fakeGuide
	prefs  *prefs.Store
	frames *frameSink
	peers  *fakePeers
}

func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
	t.Helper()
	fx := &fixture{
		guide:  &fakeGuide{mode: guide.ModeObjects, scene: guide.Scene{Mode: guide.ModeObjects, Summary: "person at 12 o'clock"}},
		prefs:  prefs.NewStore(prefs.Default()),
		frames: &frameSink{},
		peers:  &fakePeers{},
	}
	deps := Deps{
		Guide:  fx.guide,
		Lanes:  fakeLanes{},
		Speech: fakeSpeech{},
		Prefs:  fx.prefs,
		Frames: fx.frames,
		Peers:  fx.peers,
		Events: hub.New("events", log.Discard()),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "sightline_frames_published_total 7\n")
		}),
	}
	for _, m := range mutate {
		m(&deps)
	}
	fx.srv = NewServer(DefaultConfig(), deps, log.Discard())
	return fx
}

func (fx *fixture) do(t *testing.T, method, target string, body []byte, contentType string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := fx.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestStatus(t *testing.T) {
	fx := newFixture(t)
	code, body := fx.do(t, http.MethodGet, "/api/status", nil, "")
	require.Equal(t, http.StatusOK, code)

	var st struct {
		Mode            string `json:"mode"`
		FramesPublished uint64 `json:"frames_published"`
		Peers           int    `json:"peers"`
		Speech          struct {
			Queued int `json:"queued"`
		} `json:"speech"`
		Lanes []struct {
			Lane string `json:"lane"`
		} `json:"lanes"`
	}
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "objects", st.Mode)
	assert.Equal(t, uint64(7), st.FramesPublished)
	assert.Equal(t, 2, st.Peers)
	assert.Equal(t, 2, st.Speech.Queued)
	require.Len(t, st.Lanes, 1)
	assert.Equal(t, "detection", st.Lanes[0].Lane)
}

func TestScene(t *testing.T) {
	fx := newFixture(t)
	code, body := fx.do(t, http.MethodGet, "/api/scene", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "person at 12 o'clock")
}

func TestPostFrame(t *testing.T) {
	fx := newFixture(t)
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}

	code, body := fx.do(t, http.MethodPost, "/api/frames?width=640&height=480&rotation=90", jpeg, "image/jpeg")
	require.Equal(t, http.StatusAccepted, code, string(body))
	require.Len(t, fx.frames.frames, 1)

	f := fx.frames.frames[0]
	assert.Equal(t, jpeg, f.Data)
	assert.Equal(t, 640, f.Width)
	assert.Equal(t, 480, f.Height)
	assert.Equal(t, 90, f.Rotation)

	code, _ = fx.do(t, http.MethodPost, "/api/frames", nil, "image/jpeg")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Len(t, fx.frames.frames, 1)
}

func TestPostFrame_Disabled(t *testing.T) {
	fx := newFixture(t, func(d *Deps) { d.Frames = nil })
	code, body := fx.do(t, http.MethodPost, "/api/frames", []byte{1}, "image/jpeg")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, string(body), "frame upload disabled")
}

func TestSetMode(t *testing.T) {
	fx := newFixture(t)

	code, body := fx.do(t, http.MethodPut, "/api/mode", []byte(`{"mode":"navigation"}`), "application/json")
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, guide.ModeNavigation, fx.guide.Mode())
	assert.JSONEq(t, `{"mode":"navigation"}`, string(body))

	code, body = fx.do(t, http.MethodPut, "/api/mode", []byte(`{"mode":"dance"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(body), "dance")
	assert.Equal(t, guide.ModeNavigation, fx.guide.Mode())

	code, body = fx.do(t, http.MethodGet, "/api/mode", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"mode":"navigation"}`, string(body))
}

func TestSetPreferences(t *testing.T) {
	fx := newFixture(t)

	code, body := fx.do(t, http.MethodPut, "/api/preferences", []byte(`{"max_summary_items":5,"haptics_enabled":false}`), "application/json")
	require.Equal(t, http.StatusOK, code, string(body))

	p := fx.prefs.Current()
	assert.Equal(t, 5, p.MaxSummaryItems)
	assert.False(t, p.HapticsEnabled)
	assert.Equal(t, 0.5, p.ConfidenceThreshold, "omitted fields keep their value")
	assert.True(t, p.DebounceEnabled)

	code, body = fx.do(t, http.MethodPut, "/api/preferences", []byte(`{"confidence_threshold":1.5}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(body), "confidence_threshold")
	assert.Equal(t, 0.5, fx.prefs.Current().ConfidenceThreshold)

	code, _ = fx.do(t, http.MethodPut, "/api/preferences", []byte(`{not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOffer(t *testing.T) {
	fx := newFixture(t)

	code, body := fx.do(t, http.MethodPost, "/api/webrtc/offer", []byte(`{"type":"offer","sdp":"v=0 offer"}`), "application/json")
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, webrtc.SDPTypeOffer, fx.peers.offer.Type)
	assert.Equal(t, "v=0 offer", fx.peers.offer.SDP)

	var resp OfferResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, webrtc.SDPTypeAnswer, resp.Answer.Type)
	assert.Equal(t, "v=0 answer", resp.Answer.SDP)
}

func TestOffer_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad offer", peer.ErrBadOffer, http.StatusBadRequest},
		{"full", peer.ErrTooManyPeers, http.StatusServiceUnavailable},
		{"gather timeout", peer.ErrGatherTimeout, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.peers.err = tt.err
			code, body := fx.do(t, http.MethodPost, "/api/webrtc/offer", []byte(`{"type":"offer","sdp":"v=0"}`), "application/json")
			assert.Equal(t, tt.want, code)
			assert.Contains(t, string(body), `"error"`)
		})
	}

	fx := newFixture(t, func(d *Deps) { d.Peers = nil })
	code, _ := fx.do(t, http.MethodPost, "/api/webrtc/offer", []byte(`{"type":"offer","sdp":"v=0"}`), "application/json")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestMetrics(t *testing.T) {
	fx := newFixture(t)
	code, body := fx.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, strings.HasPrefix(string(body), "sightline_frames_published_total"))

	fx = newFixture(t, func(d *Deps) { d.Metrics = nil })
	code, _ = fx.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEventsRequiresUpgrade(t *testing.T) {
	fx := newFixture(t)
	code, _ := fx.do(t, http.MethodGet, "/ws/events", nil, "")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}
