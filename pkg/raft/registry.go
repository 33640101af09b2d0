package raft

// pendingRequest is a client callback waiting on a log index to be
// applied, truncated away, or orphaned by a leadership change.
type pendingRequest struct {
	index Index
	done  func(result any, err error)
}

// requestRegistry holds pending client callbacks keyed by the log index
// they are waiting on. Multiple requests may wait on the same index only
// in pathological cases; the common case is one request per index.
type requestRegistry struct {
	byIndex map[Index][]*pendingRequest
}

func newRequestRegistry() *requestRegistry {
	return &requestRegistry{byIndex: make(map[Index][]*pendingRequest)}
}

func (r *requestRegistry) register(index Index, done func(result any, err error)) {
	if done == nil {
		return
	}
	r.byIndex[index] = append(r.byIndex[index], &pendingRequest{index: index, done: done})
}

// fire invokes and removes every callback registered at index, passing
// result to each.
func (r *requestRegistry) fire(index Index, result any, err error) {
	reqs, ok := r.byIndex[index]
	if !ok {
		return
	}
	delete(r.byIndex, index)
	for _, req := range reqs {
		req.done(result, err)
	}
}

// failFrom fires ErrShutdown/err for every pending request at index >=
// from, e.g. when the durable log is truncated or leadership is lost.
func (r *requestRegistry) failFrom(from Index, err error) {
	for idx, reqs := range r.byIndex {
		if idx < from {
			continue
		}
		delete(r.byIndex, idx)
		for _, req := range reqs {
			req.done(nil, err)
		}
	}
}

// failAll fires err for every pending request, used on shutdown.
func (r *requestRegistry) failAll(err error) {
	r.failFrom(0, err)
}
