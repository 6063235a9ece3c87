package engine

import (
	"context"
	"sync"

	"github.com/teslashibe/go-sightline/pkg/frame"
)

// Mock implements Engine for testing. Nil Func fields fall back to defaults:
// Load succeeds, Run returns an empty result of the mock's Kind.
type Mock struct {
	MockName string
	MockKind Kind

	LoadFunc  func(ctx context.Context) error
	RunFunc   func(ctx context.Context, f *frame.Frame) (Result, error)
	CloseFunc func() error

	mu     sync.Mutex
	calls  []string
	loaded bool
	closed bool
}

// NewMock creates a mock engine producing results of kind k.
func NewMock(name string, k Kind) *Mock {
	return &Mock{MockName: name, MockKind: k}
}

func (m *Mock) Name() string {
	return m.MockName
}

func (m *Mock) Load(ctx context.Context) error {
	m.record("Load")
	var err error
	if m.LoadFunc != nil {
		err = m.LoadFunc(ctx)
	}
	m.mu.Lock()
	m.loaded = err == nil
	m.mu.Unlock()
	return err
}

func (m *Mock) Run(ctx context.Context, f *frame.Frame) (Result, error) {
	m.record("Run")
	if m.RunFunc != nil {
		return m.RunFunc(ctx, f)
	}
	switch m.MockKind {
	case KindText:
		return RecognizedText{}, nil
	case KindDepth:
		return DepthMap{}, nil
	default:
		return DetectionList{}, nil
	}
}

// Close records the call and is idempotent: CloseFunc runs at most once.
func (m *Mock) Close() error {
	m.record("Close")
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
}

// CallCount returns how many times method was invoked.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

// Closed reports whether Close has been called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Engine = (*Mock)(nil)
