// Package app assembles the sightline service: frame sources, the inference
// pipeline, the guide, speech output and the control surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-sightline/internal/config"
	"github.com/teslashibe/go-sightline/internal/log"
	"github.com/teslashibe/go-sightline/internal/observe"
	"github.com/teslashibe/go-sightline/pkg/announce"
	"github.com/teslashibe/go-sightline/pkg/engine/cloudvision"
	"github.com/teslashibe/go-sightline/pkg/engine/cv"
	"github.com/teslashibe/go-sightline/pkg/frame"
	"github.com/teslashibe/go-sightline/pkg/guide"
	"github.com/teslashibe/go-sightline/pkg/haptic"
	"github.com/teslashibe/go-sightline/pkg/hub"
	"github.com/teslashibe/go-sightline/pkg/peer"
	"github.com/teslashibe/go-sightline/pkg/pipeline"
	"github.com/teslashibe/go-sightline/pkg/prefs"
	"github.com/teslashibe/go-sightline/pkg/source"
	"github.com/teslashibe/go-sightline/pkg/source/camera"
	"github.com/teslashibe/go-sightline/pkg/speech"
	"github.com/teslashibe/go-sightline/pkg/tts"
	"github.com/teslashibe/go-sightline/pkg/web"
)

// ShutdownTimeout bounds how long Shutdown waits for the HTTP server.
const ShutdownTimeout = 5 * time.Second

// App owns every long-lived component.
type App struct {
	cfg        *config.Config
	configPath string
	version    string
	logger     *slog.Logger

	provider  *observe.Provider
	store     *prefs.Store
	pipeline  *pipeline.Orchestrator
	speaker   announce.Speaker
	ttsClient tts.Provider
	scheduler *announce.Scheduler
	guide     *guide.Guide
	events    *hub.Hub
	peers     *peer.Manager
	source    source.Source
	server    *web.Server
	watcher   *config.Watcher

	wg sync.WaitGroup
}

// New validates cfg. configPath, if set, is watched for live preference
// changes.
func New(cfg *config.Config, configPath, version string) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return &App{
		cfg:        cfg,
		configPath: configPath,
		version:    version,
		logger:     log.Component("app"),
	}, nil
}

// Init builds every component. Call it after New and before Run.
func (a *App) Init(ctx context.Context) error {
	a.logger.Info("starting sightline", "version", a.version, "source", a.cfg.Source.Kind, "speech", a.cfg.Speech.Output)

	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: a.version})
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	a.provider = provider
	metrics, err := observe.NewMetrics(provider.MeterProvider())
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	a.store = prefs.NewStore(a.cfg.Preferences)
	a.store.Subscribe(func(p prefs.Preferences) {
		a.logger.Info("preferences changed",
			"confidence_threshold", p.ConfidenceThreshold,
			"debounce", p.DebounceEnabled,
			"haptics", p.HapticsEnabled,
			"max_summary_items", p.MaxSummaryItems)
	})

	a.pipeline = pipeline.New(
		pipeline.Config{DepthInterval: a.cfg.Pipeline.DepthInterval},
		a.engines(),
		pipeline.WithLogger(log.Component("pipeline")),
		pipeline.WithMetrics(metrics),
		pipeline.WithPrefs(a.store),
	)

	a.events = hub.New("events", log.Component("hub"))

	var track *webrtc.TrackLocalStaticRTP
	if a.cfg.WebRTC.Enabled {
		track, err = peer.NewAudioTrack()
		if err != nil {
			return fmt.Errorf("webrtc: %w", err)
		}
		a.peers, err = peer.NewManager(a.peerConfig(), track, a.pipeline, log.Component("peer"))
		if err != nil {
			return fmt.Errorf("webrtc: %w", err)
		}
	}

	if err := a.initSpeech(track); err != nil {
		return fmt.Errorf("speech: %w", err)
	}

	a.scheduler = announce.NewScheduler(a.speaker,
		announce.WithDebounce(a.cfg.Speech.Debounce),
		announce.WithLogger(log.Component("announce")),
		announce.WithMetrics(metrics),
		announce.WithListener(a.broadcastAnnouncement),
	)

	triggers := []haptic.Trigger{a.events}
	if a.peers != nil {
		triggers = append(triggers, a.peers)
	}
	a.guide = guide.New(a.pipeline, a.scheduler,
		guide.WithHaptics(haptic.Multi(triggers...)),
		guide.WithPrefs(a.store),
		guide.WithLogger(log.Component("guide")),
	)

	if err := a.initSource(); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	deps := web.Deps{
		Guide:   a.guide,
		Lanes:   a.pipeline,
		Speech:  a.scheduler,
		Prefs:   a.store,
		Frames:  frame.NewThrottle(a.pipeline, a.cfg.Source.Interval),
		Events:  a.events,
		Metrics: provider.Handler(),
	}
	if a.peers != nil {
		deps.Peers = a.peers
	}
	a.server = web.NewServer(web.Config{Addr: a.cfg.Server.Addr, StaticDir: a.cfg.Server.StaticDir}, deps, log.Component("web"))

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.reload, config.WithWatchLogger(log.Component("config")))
		if err != nil {
			return err
		}
		a.watcher = w
	}
	return nil
}

// engines builds one backend per lane. Lanes left nil fail at start and the
// guide speaks their fallback.
func (a *App) engines() pipeline.Engines {
	var e pipeline.Engines
	ec := a.cfg.Engines

	if ec.Detection.Model != "" {
		yc := cv.DefaultYOLOConfig()
		yc.ModelPath = ec.Detection.Model
		yc.ConfidenceThresh = ec.Detection.Confidence
		yc.NMSThresh = ec.Detection.NMSThreshold
		if ec.Detection.InputSize > 0 {
			yc.InputWidth, yc.InputHeight = ec.Detection.InputSize, ec.Detection.InputSize
		}
		e.Detection = cv.NewYOLO(yc)
	}
	if ec.Depth.Model != "" {
		mc := cv.DefaultMiDaSConfig()
		mc.ModelPath = ec.Depth.Model
		if ec.Depth.InputSize > 0 {
			mc.InputSize = ec.Depth.InputSize
		}
		e.Depth = cv.NewMiDaS(mc)
	}
	if ec.Text.Enabled {
		e.Text = cloudvision.New(cloudvision.Config{
			APIKey:        ec.Text.APIKey,
			Endpoint:      ec.Text.Endpoint,
			Feature:       ec.Text.Feature,
			LanguageHints: ec.Text.LanguageHints,
		})
	}
	return e
}

func (a *App) peerConfig() peer.Config {
	pc := peer.DefaultConfig()
	w := a.cfg.WebRTC
	pc.ICEServers = w.ICEServers
	pc.MaxSessions = w.MaxSessions
	pc.GatherTimeout = w.GatherTimeout
	pc.IncludeLoopback = w.IncludeLoopback
	if a.cfg.Source.Interval > 0 {
		pc.FrameInterval = a.cfg.Source.Interval
	}
	return pc
}

// initSpeech picks the speaker. WebRTC output streams into track, which every
// peer shares.
func (a *App) initSpeech(track *webrtc.TrackLocalStaticRTP) error {
	if a.cfg.Speech.Output != config.OutputWebRTC {
		a.speaker = speech.NewLogSpeaker(log.Component("speech"), speech.DefaultCharDuration)
		return nil
	}
	if track == nil {
		return errors.New("webrtc output needs webrtc enabled")
	}

	t := a.cfg.Speech.TTS
	opts := []tts.Option{
		tts.WithAPIKey(t.APIKey),
		tts.WithLogger(log.Component("tts")),
	}
	if t.BaseURL != "" {
		opts = append(opts, tts.WithBaseURL(t.BaseURL))
	}
	if t.Voice != "" {
		opts = append(opts, tts.WithVoice(t.Voice))
	}
	if t.Model != "" {
		opts = append(opts, tts.WithModel(t.Model))
	}
	if t.Speed != 0 {
		opts = append(opts, tts.WithSpeed(t.Speed))
	}
	if t.Instructions != "" {
		opts = append(opts, tts.WithInstructions(t.Instructions))
	}
	if t.Timeout > 0 {
		opts = append(opts, tts.WithTimeout(t.Timeout))
	}
	provider, err := tts.NewOpenAI(opts...)
	if err != nil {
		return err
	}
	sp, err := speech.NewRTPSpeaker(provider, track, speech.WithRTPLogger(log.Component("speech")))
	if err != nil {
		provider.Close()
		return err
	}
	a.ttsClient = provider
	a.speaker = sp
	return nil
}

func (a *App) initSource() error {
	s := a.cfg.Source
	switch s.Kind {
	case config.SourceCamera:
		cc := camera.DefaultConfig()
		cc.Device = s.Device
		cc.Width, cc.Height, cc.Quality = s.Width, s.Height, s.Quality
		if s.Interval > 0 {
			cc.Interval = s.Interval
		}
		cam, err := camera.New(cc, a.pipeline, log.Component("camera"))
		if err != nil {
			return err
		}
		a.source = cam
	case config.SourceWebSocket:
		wc := source.DefaultWebSocketConfig(s.URL)
		if s.Interval > 0 {
			wc.Interval = s.Interval
		}
		a.source = source.NewWebSocket(wc, a.pipeline, log.Component("source.websocket"))
	}
	return nil
}

// broadcastAnnouncement runs on the scheduler goroutine; both sinks are
// non-blocking.
func (a *App) broadcastAnnouncement(ann announce.Announcement) {
	ev := hub.AnnouncementEvent(ann)
	if err := a.events.BroadcastJSON(ev); err != nil {
		a.logger.Warn("broadcast announcement", "error", err)
	}
	if a.peers != nil {
		a.peers.Broadcast(ev)
	}
}

// reload applies live-safe changes from the watched file.
func (a *App) reload(old, next *config.Config) {
	d := config.Compare(old, next)
	if d.PreferencesChanged {
		if err := a.store.Set(next.Preferences); err != nil {
			a.logger.Warn("reloaded preferences rejected", "error", err)
		}
	}
	if d.LogLevelChanged {
		a.logger.Warn("log level changes take effect on restart", "log_level", next.Server.LogLevel)
	}
	if len(d.Restart) > 0 {
		a.logger.Warn("config sections changed; restart to apply", "sections", d.Restart)
	}
}

// Run starts every component and blocks until ctx is cancelled or the HTTP
// server fails.
func (a *App) Run(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.events.Run(ctx)
	}()

	if err := a.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	a.guide.Start()

	if a.source != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.source.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("frame source stopped", "source", a.source.Name(), "error", err)
			}
		}()
	}

	errc := make(chan error, 1)
	go func() { errc <- a.server.Start() }()

	a.logger.Info("sightline ready", "addr", a.cfg.Server.Addr, "mode", a.guide.Mode())

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		return fmt.Errorf("web: %w", err)
	}
}

// Shutdown stops components in reverse dependency order.
func (a *App) Shutdown() {
	a.logger.Info("shutting down")

	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("web shutdown", "error", err)
		}
		cancel()
	}
	if a.guide != nil {
		a.guide.Close()
	}
	if a.scheduler != nil {
		a.scheduler.Close()
	}
	if sp, ok := a.speaker.(*speech.RTPSpeaker); ok {
		if err := sp.Close(); err != nil {
			a.logger.Warn("speaker close", "error", err)
		}
	}
	if a.ttsClient != nil {
		a.ttsClient.Close()
	}
	if a.peers != nil {
		if err := a.peers.Close(); err != nil {
			a.logger.Warn("peer close", "error", err)
		}
	}
	if a.pipeline != nil {
		if err := a.pipeline.Stop(); err != nil {
			a.logger.Warn("pipeline stop", "error", err)
		}
	}
	a.wg.Wait()
	if a.provider != nil {
		if err := a.provider.Shutdown(context.Background()); err != nil {
			a.logger.Warn("metrics shutdown", "error", err)
		}
	}
}
