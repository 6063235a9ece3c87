package frame

import (
	"sync/atomic"
)

// DropFunc is called when publishing overwrote a lane's unconsumed frame.
type DropFunc func(lane string)

// Distributor fans each published frame out to every lane buffer.
type Distributor struct {
	lanes  []*Buffer
	byName map[string]*Buffer

	seq    atomic.Uint64
	closed atomic.Bool
	onDrop DropFunc
}

// NewDistributor creates one buffer per lane name. Duplicate names share a
// buffer.
func NewDistributor(lanes ...string) *Distributor {
	d := &Distributor{byName: make(map[string]*Buffer, len(lanes))}
	for _, name := range lanes {
		if _, ok := d.byName[name]; ok {
			continue
		}
		b := NewBuffer(name)
		d.lanes = append(d.lanes, b)
		d.byName[name] = b
	}
	return d
}

// OnDrop registers a callback for overwritten frames. Must be set before the
// first Publish.
func (d *Distributor) OnDrop(fn DropFunc) {
	d.onDrop = fn
}

// Lane returns the buffer for name, or nil.
func (d *Distributor) Lane(name string) *Buffer {
	return d.byName[name]
}

// Publish writes f into every lane. It never blocks and is a no-op after
// Close.
func (d *Distributor) Publish(f *Frame) {
	if f == nil || d.closed.Load() {
		return
	}
	f.Seq = d.seq.Add(1)
	for _, b := range d.lanes {
		if b.TrySend(f) && d.onDrop != nil {
			d.onDrop(b.Name())
		}
	}
}

// Published returns the number of frames published so far.
func (d *Distributor) Published() uint64 {
	return d.seq.Load()
}

// Close closes every lane buffer.
func (d *Distributor) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	for _, b := range d.lanes {
		b.Close()
	}
}

// Closed reports whether Close has been called.
func (d *Distributor) Closed() bool {
	return d.closed.Load()
}

// Stats returns per-lane buffer stats.
func (d *Distributor) Stats() []BufferStats {
	out := make([]BufferStats, 0, len(d.lanes))
	for _, b := range d.lanes {
		out = append(out, b.Stats())
	}
	return out
}

var _ Publisher = (*Distributor)(nil)
