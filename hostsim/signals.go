package hostsim

// sigKey addresses one scalar signal or one element of a vector signal.
// Scalars use index 0.
type sigKey struct {
	sig Sig
	idx int
}

// signalBank holds committed signal values plus the writes staged during the
// current delta. Staged writes from one task are invisible to every task
// until the delta completes and commit runs, which gives the
// single-delta-cycle consistency rule: no task's same-edge write can be read
// by another task within that edge.
type signalBank struct {
	cur    map[sigKey]uint64
	staged map[sigKey]uint64
}

func newSignalBank() *signalBank {
	return &signalBank{
		cur:    map[sigKey]uint64{},
		staged: map[sigKey]uint64{},
	}
}

func (b *signalBank) read(k sigKey) uint64 {
	return b.cur[k]
}

func (b *signalBank) write(k sigKey, v uint64) {
	b.staged[k] = v
}

// commit applies all staged writes. Staged keys are distinct signals, so
// application order does not matter; the last write wins when two tasks
// staged the same signal in one delta.
func (b *signalBank) commit() {
	for k, v := range b.staged {
		b.cur[k] = v
	}
	clear(b.staged)
}
