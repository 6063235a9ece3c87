package guide

import (
	"github.com/teslashibe/go-sightline/pkg/depth"
	"github.com/teslashibe/go-sightline/pkg/spatial"
)

// Scene is the current understanding of the surroundings, independent of
// what has been spoken.
type Scene struct {
	Mode       Mode                  `json:"mode"`
	Objects    []spatial.Description `json:"objects"`
	Summary    string                `json:"summary"`
	Text       string                `json:"text,omitempty"`
	Navigation *spatial.Navigation   `json:"navigation,omitempty"`
	DetectSeq  uint64                `json:"detection_seq,omitempty"`
	TextSeq    uint64                `json:"text_seq,omitempty"`
}

// Scene assembles the latest results of every lane.
func (g *Guide) Scene() Scene {
	sc := Scene{Mode: g.Mode(), Objects: []spatial.Description{}}
	surf := g.results.Depth()

	if snap, ok := g.results.Detections(); ok {
		sc.Objects = spatial.Describe(g.sampler.EnrichAll(snap.Result.Items, surf))
		sc.DetectSeq = snap.Seq
	}
	sc.Summary = spatial.Summary(sc.Objects, g.prefs.Current().MaxSummaryItems)

	if snap, ok := g.results.Text(); ok {
		sc.Text = snap.Result.Text
		sc.TextSeq = snap.Seq
	}
	if surf != nil {
		nav := spatial.AnalyzeNavigation(g.sampler.SampleZones(surf, depth.ModeMax))
		sc.Navigation = &nav
	}
	return sc
}
