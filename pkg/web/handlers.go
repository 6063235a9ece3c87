package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-sightline/pkg/announce"
	"github.com/teslashibe/go-sightline/pkg/frame"
	"github.com/teslashibe/go-sightline/pkg/guide"
	"github.com/teslashibe/go-sightline/pkg/hub"
	"github.com/teslashibe/go-sightline/pkg/peer"
	"github.com/teslashibe/go-sightline/pkg/pipeline"
	"github.com/teslashibe/go-sightline/pkg/prefs"
)

// Status is the body of GET /api/status.
type Status struct {
	Mode            guide.Mode            `json:"mode"`
	Lanes           []pipeline.LaneStatus `json:"lanes"`
	FramesPublished uint64                `json:"frames_published"`
	Speech          announce.Stats        `json:"speech"`
	Clients         int                   `json:"clients"`
	Peers           int                   `json:"peers"`
	Preferences     prefs.Preferences     `json:"preferences"`
}

// handleStatus reports lanes, speech and connected clients.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := Status{
		Mode:            s.deps.Guide.Mode(),
		Lanes:           s.deps.Lanes.Status(),
		FramesPublished: s.deps.Lanes.Published(),
		Speech:          s.deps.Speech.Stats(),
		Preferences:     s.deps.Prefs.Current(),
	}
	if s.deps.Events != nil {
		st.Clients = s.deps.Events.ClientCount()
	}
	if s.deps.Peers != nil {
		st.Peers = s.deps.Peers.Count()
	}
	return c.JSON(st)
}

// handleScene returns the latest understanding of the surroundings.
func (s *Server) handleScene(c *fiber.Ctx) error {
	return c.JSON(s.deps.Guide.Scene())
}

// FrameAccepted is the body of a successful POST /api/frames.
type FrameAccepted struct {
	Bytes int `json:"bytes"`
}

// handleFrame publishes a raw JPEG body. Geometry comes from the width,
// height and rotation query parameters.
func (s *Server) handleFrame(c *fiber.Ctx) error {
	if s.deps.Frames == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "frame upload disabled")
	}
	body := c.Body()
	if len(body) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "empty frame")
	}
	// fasthttp reuses the request buffer once the handler returns.
	data := append([]byte(nil), body...)
	f := frame.New(data, c.QueryInt("width"), c.QueryInt("height"), c.QueryInt("rotation"))
	s.deps.Frames.Publish(f)
	return c.Status(fiber.StatusAccepted).JSON(FrameAccepted{Bytes: len(data)})
}

// ModeRequest is the body of PUT /api/mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleGetMode(c *fiber.Ctx) error {
	return c.JSON(ModeRequest{Mode: s.deps.Guide.Mode().String()})
}

// handleSetMode switches guidance mode and tells event clients.
func (s *Server) handleSetMode(c *fiber.Ctx) error {
	var req ModeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	m, err := guide.ParseMode(req.Mode)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.deps.Guide.SetMode(m); err != nil {
		if errors.Is(err, guide.ErrUnknownMode) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}
	if s.deps.Events != nil {
		_ = s.deps.Events.BroadcastJSON(hub.Event{Type: hub.EventMode, Mode: m.String(), At: s.now()})
	}
	return c.JSON(ModeRequest{Mode: m.String()})
}

func (s *Server) handleGetPreferences(c *fiber.Ctx) error {
	return c.JSON(s.deps.Prefs.Current())
}

// handleSetPreferences merges the body over the current preferences, so
// omitted fields keep their values.
func (s *Server) handleSetPreferences(c *fiber.Ctx) error {
	p := s.deps.Prefs.Current()
	if err := c.BodyParser(&p); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := s.deps.Prefs.Set(p); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.logger.Info("preferences updated",
		"confidence_threshold", p.ConfidenceThreshold,
		"debounce", p.DebounceEnabled,
		"haptics", p.HapticsEnabled,
		"max_summary_items", p.MaxSummaryItems)
	return c.JSON(p)
}

// OfferResponse is the body of a successful POST /api/webrtc/offer.
type OfferResponse struct {
	SessionID string                    `json:"session_id"`
	Answer    webrtc.SessionDescription `json:"answer"`
}

// handleOffer answers a browser's SDP offer. The answer carries every
// gathered candidate.
func (s *Server) handleOffer(c *fiber.Ctx) error {
	if s.deps.Peers == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "webrtc disabled")
	}
	var offer webrtc.SessionDescription
	if err := c.BodyParser(&offer); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid offer")
	}

	sess, answer, err := s.deps.Peers.Offer(c.UserContext(), offer)
	switch {
	case errors.Is(err, peer.ErrBadOffer):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, peer.ErrTooManyPeers), errors.Is(err, peer.ErrClosed):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, peer.ErrGatherTimeout):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	case err != nil:
		return err
	}

	resp := OfferResponse{Answer: answer}
	if sess != nil {
		resp.SessionID = sess.ID
	}
	return c.JSON(resp)
}

// handleEventsWS attaches a websocket to the event hub until it closes.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	client := hub.NewClient(s.deps.Events, conn)
	if client == nil {
		return
	}
	client.Run()
}
