package engine

// EventSink receives session snapshots. Send must not block; implementations
// that cannot deliver drop the snapshot silently.
type EventSink interface {
	Send(Snapshot)
}

// NopSink discards every snapshot. Restored sessions use it until the host
// reattaches live sinks.
type NopSink struct{}

func (NopSink) Send(Snapshot) {}

// Participant is a player id bound to a notification sink and a role flag.
// Participants are never removed; a disconnect only detaches the sink.
type Participant struct {
	ID        string
	Spectator bool
	sink      EventSink
}

// Sink returns the participant's current notification sink.
func (p *Participant) Sink() EventSink { return p.sink }

// SetSink swaps the notification sink, e.g. on reconnect.
func (p *Participant) SetSink(sink EventSink) { p.sink = sink }

// Registry holds the participants of one session in join order. Iteration
// order is stable so score tables and snapshots serialize reproducibly.
type Registry struct {
	order []string
	byID  map[string]*Participant
}

// NewRegistry returns an empty participant registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Participant)}
}

// Upsert creates a new active participant for an unknown id, or swaps only
// the sink for a known one, preserving the spectator flag and history. This
// is how a reconnect is handled.
func (r *Registry) Upsert(playerID string, sink EventSink) *Participant {
	if p, ok := r.byID[playerID]; ok {
		p.sink = sink
		return p
	}
	p := &Participant{ID: playerID, sink: sink}
	r.byID[playerID] = p
	r.order = append(r.order, playerID)
	return p
}

// SetSpectator toggles the role flag. It returns false for an unknown id.
func (r *Registry) SetSpectator(playerID string, spectator bool) bool {
	p, ok := r.byID[playerID]
	if !ok {
		return false
	}
	p.Spectator = spectator
	return true
}

// Get looks up a participant by id.
func (r *Registry) Get(playerID string) (*Participant, bool) {
	p, ok := r.byID[playerID]
	return p, ok
}

// ActiveIDs returns the non-spectator player ids in join order.
func (r *Registry) ActiveIDs() []string {
	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if !r.byID[id].Spectator {
			ids = append(ids, id)
		}
	}
	return ids
}

// All returns every participant, spectators included, in join order.
func (r *Registry) All() []*Participant {
	out := make([]*Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// restore inserts a participant with an explicit role and a no-op sink,
// used when rebuilding a session from persisted state.
func (r *Registry) restore(playerID string, spectator bool) {
	p := r.Upsert(playerID, NopSink{})
	p.Spectator = spectator
}
