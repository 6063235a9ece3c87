package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-sightline/pkg/perception"
)

// tensor builds an attribute-major [1, 4+classes, anchors] output.
func tensor(classes int, anchors [][]float32) ([]float32, int, int) {
	attrs := 4 + classes
	n := len(anchors)
	data := make([]float32, attrs*n)
	for i, a := range anchors {
		for c, v := range a {
			data[c*n+i] = v
		}
	}
	return data, attrs, n
}

func TestDecodeYOLOv8(t *testing.T) {
	data, attrs, n := tensor(3, [][]float32{
		{320, 320, 100, 200, 0.1, 0.9, 0.2},  // class 1
		{100, 100, 20, 20, 0.2, 0.1, 0.3},    // below threshold
		{500, 320, 40, 40, 0.05, 0.1, 0.75}, // class 2
	})

	got, err := DecodeYOLOv8(data, attrs, n, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].ClassID)
	assert.InDelta(t, 0.9, got[0].Score, 1e-6)
	assert.InDelta(t, 270, got[0].X1, 1e-6)
	assert.InDelta(t, 220, got[0].Y1, 1e-6)
	assert.InDelta(t, 370, got[0].X2, 1e-6)
	assert.InDelta(t, 420, got[0].Y2, 1e-6)
	assert.Equal(t, 2, got[1].ClassID)
}

func TestDecodeYOLOv8_BadShape(t *testing.T) {
	_, err := DecodeYOLOv8(make([]float32, 10), 84, 8400, 0.5)
	assert.ErrorIs(t, err, ErrBadOutput)

	_, err = DecodeYOLOv8(nil, 4, 10, 0.5)
	assert.ErrorIs(t, err, ErrBadOutput)
}

func TestToDetections_UndoesLetterbox(t *testing.T) {
	lb := perception.NewLetterbox(1280, 720, 640, 640)
	cands := []Candidate{
		{X1: 0, Y1: 140, X2: 640, Y2: 500, Score: 0.8, ClassID: 0},
		{X1: 10, Y1: 0, X2: 20, Y2: 100, Score: 0.9, ClassID: 2}, // entirely in the top padding
	}

	dets := ToDetections(cands, lb)
	require.Len(t, dets, 1)
	assert.Equal(t, "person", dets[0].Label)
	assert.InDelta(t, 0, dets[0].Box.Left, 1e-9)
	assert.InDelta(t, 0, dets[0].Box.Top, 1e-9)
	assert.InDelta(t, 1, dets[0].Box.Right, 1e-9)
	assert.InDelta(t, 1, dets[0].Box.Bottom, 1e-9)
	assert.Equal(t, perception.ProximityUnknown, dets[0].Proximity)
}

func TestNormalizeDepth(t *testing.T) {
	s, err := NormalizeDepth([]float32{2, 4, 6, 10}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 63, 127, 255}, s.Closeness)

	flat, err := NormalizeDepth([]float32{3, 3, 3, 3}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, flat.Closeness)

	_, err = NormalizeDepth([]float32{1}, 2, 2)
	assert.ErrorIs(t, err, ErrBadOutput)
}

func TestResultKinds(t *testing.T) {
	var results = []Result{DetectionList{}, RecognizedText{}, DepthMap{}}
	want := []Kind{KindDetections, KindText, KindDepth}
	for i, r := range results {
		assert.Equal(t, want[i], r.Kind())
	}
	assert.Equal(t, "depth", KindDepth.String())
	assert.True(t, RecognizedText{}.Empty())
}

func TestError_Unwrap(t *testing.T) {
	err := LoadError("yolo", ErrModelNotFound)
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.Equal(t, "yolo: load: engine: model file not found", err.Error())

	var e *Error
	require.True(t, errors.As(RunError("midas", ErrEmptyFrame), &e))
	assert.Equal(t, "run", e.Op)
	assert.NoError(t, RunError("x", nil))
}

func TestMock(t *testing.T) {
	m := NewMock("text", KindText)
	require.NoError(t, m.Load(context.Background()))

	res, err := m.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, KindText, res.Kind())

	closes := 0
	m.CloseFunc = func() error { closes++; return nil }
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, 1, closes)
	assert.Equal(t, 2, m.CallCount("Close"))
	assert.True(t, m.Closed())
}
