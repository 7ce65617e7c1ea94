package relay

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pairwire/telemetry"
)

// Relay owns the connection registry and the waiting queue and drives
// the pairing and routing state machine. All transport events for all
// connections funnel through one mutex, so every multi-step sequence
// (pairing, close handling, endChat) is observed atomically.
type Relay struct {
	mu        sync.Mutex
	registry  *registry
	queue     *waitQueue
	logger    zerolog.Logger
	collector telemetry.Collector
	clock     clock.Clock
}

// New builds a relay. A nil collector disables telemetry, a nil clock
// selects the wall clock.
func New(logger zerolog.Logger, collector telemetry.Collector, clk clock.Clock) *Relay {
	if collector == nil {
		collector = telemetry.Noop()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Relay{
		registry:  newRegistry(),
		queue:     newWaitQueue(),
		logger:    logger.With().Str("component", "relay").Logger(),
		collector: collector,
		clock:     clk,
	}
}

// HandleOpen registers a freshly opened connection, mints its
// identifier and greets it with a welcome message.
func (r *Relay) HandleOpen(conn Conn) string {
	id := uuid.NewString()

	r.mu.Lock()
	r.registry.register(id, conn)
	r.mu.Unlock()

	r.collector.ConnectionOpened()
	r.logger.Info().Str("id", id).Msg("connection opened")
	r.send(conn, id, welcomeMessage(id))
	return id
}

// HandleClose deregisters the connection, drops it from the waiting
// queue and dissolves its pairing, notifying the surviving partner.
// The three effects happen under one critical section so no message
// arriving concurrently can observe a half-removed connection.
func (r *Relay) HandleClose(id string) {
	r.mu.Lock()
	rec, ok := r.registry.remove(id)
	if !ok {
		r.mu.Unlock()
		return
	}
	r.queue.remove(id)
	depth := r.queue.len()

	var partner *record
	if rec.partnerID != "" {
		if p, ok := r.registry.lookup(rec.partnerID); ok {
			r.registry.setPartner(rec.partnerID, "")
			partner = p
		}
	}
	r.mu.Unlock()

	r.collector.ConnectionClosed()
	r.collector.SetWaitingDepth(depth)
	r.logger.Info().Str("id", id).Msg("connection closed")

	if partner != nil && partner.conn.IsOpen() {
		r.send(partner.conn, rec.partnerID, disconnectedMessage(id))
	}
}

// HandleMessage decodes one inbound frame from the named connection
// and dispatches it. Malformed frames earn an error reply; nothing
// else about them mutates relay state.
func (r *Relay) HandleMessage(id string, raw []byte) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		r.collector.IncRejected("malformed")
		r.logger.Debug().Str("id", id).Err(err).Msg("malformed message")
		r.reply(id, errorMessage("invalid message"))
		return
	}

	switch env.Type {
	case KindWaiting:
		r.pair(id)
	case KindOffer, KindAnswer, KindICECandidate:
		r.route(id, env, false)
	case KindMessage:
		r.route(id, env, true)
	case KindEndChat:
		r.endChat(id, env)
	case KindPong:
		r.logger.Debug().Str("id", id).Msg("pong received")
	default:
		r.collector.IncRejected("unknown_type")
		r.logger.Debug().Str("id", id).Str("type", env.Type).Msg("unknown message type")
		r.reply(id, errorMessage(fmt.Sprintf("unknown message type %q", env.Type)))
	}
}

// pair matches the requesting connection against the queue front, or
// enqueues it. When the front entry has gone stale the requester is
// enqueued without scanning further; the stale entry is simply
// discarded. A requester already queued is left in place.
func (r *Relay) pair(id string) {
	r.mu.Lock()
	self, ok := r.registry.lookup(id)
	if !ok {
		r.mu.Unlock()
		return
	}
	if r.queue.contains(id) {
		r.mu.Unlock()
		return
	}

	candidateID, popped := r.queue.dequeueFront()
	if popped {
		candidate, live := r.registry.lookup(candidateID)
		if live && candidate.conn.IsOpen() {
			self.partnerID = candidateID
			candidate.partnerID = id
			depth := r.queue.len()
			r.mu.Unlock()

			r.collector.IncPaired()
			r.collector.SetWaitingDepth(depth)
			r.logger.Info().Str("id", id).Str("partner", candidateID).Msg("paired")
			r.send(self.conn, id, pairedMessage(candidateID))
			r.send(candidate.conn, candidateID, pairedMessage(id))
			return
		}
		r.logger.Debug().Str("id", candidateID).Msg("dropping stale queue entry")
	}

	r.queue.enqueue(id)
	depth := r.queue.len()
	r.mu.Unlock()

	r.collector.SetWaitingDepth(depth)
	r.logger.Info().Str("id", id).Msg("waiting for partner")
}

// route validates a relay message and forwards it to its destination
// with the sender stamped on. Unreachable destinations are dropped
// silently: the partner may legitimately have just disconnected.
func (r *Relay) route(id string, env *Envelope, needsText bool) {
	if env.To == "" {
		r.reject(id, env.Type, fmt.Sprintf("%s requires a destination", env.Type))
		return
	}
	if !env.hasPayload() {
		r.reject(id, env.Type, fmt.Sprintf("%s requires a payload", env.Type))
		return
	}
	if needsText {
		text, err := env.chatText()
		if err != nil || text == "" {
			r.reject(id, env.Type, "message requires text")
			return
		}
	}

	r.mu.Lock()
	dest, ok := r.registry.lookup(env.To)
	open := ok && dest.conn.IsOpen()
	r.mu.Unlock()

	if !open {
		r.logger.Debug().Str("id", id).Str("to", env.To).Str("type", env.Type).
			Msg("destination gone, dropping relay")
		return
	}

	r.collector.IncRelayed(env.Type)
	r.send(dest.conn, env.To, &Envelope{Type: env.Type, From: id, Payload: env.Payload})
}

// endChat removes the sender from the waiting queue (covering a user
// cancelling their own search) and notifies the destination when it is
// still reachable. Partner references stay untouched; they are only
// cleared on close or overwritten by a later pairing.
func (r *Relay) endChat(id string, env *Envelope) {
	if env.To == "" {
		r.reject(id, env.Type, "endChat requires a destination")
		return
	}

	r.mu.Lock()
	r.queue.remove(id)
	depth := r.queue.len()
	dest, ok := r.registry.lookup(env.To)
	open := ok && dest.conn.IsOpen()
	r.mu.Unlock()

	r.collector.SetWaitingDepth(depth)
	r.logger.Info().Str("id", id).Str("to", env.To).Msg("chat ended")

	if open {
		r.collector.IncRelayed(env.Type)
		r.send(dest.conn, env.To, chatEndedMessage(id))
	}
}

// SweepStale prunes waiting queue entries whose connection is no
// longer registered or no longer open, returning the count removed.
func (r *Relay) SweepStale() int {
	r.mu.Lock()
	removed := r.queue.sweepStale(r.registry.isOpen)
	depth := r.queue.len()
	r.mu.Unlock()

	if removed > 0 {
		r.collector.IncSwept(removed)
		r.collector.SetWaitingDepth(depth)
		r.logger.Info().Int("removed", removed).Msg("swept stale queue entries")
	}
	return removed
}

// Stats reports the current registry and queue sizes.
func (r *Relay) Stats() (connections, waiting int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.size(), r.queue.len()
}

// reject sends an error reply for an invalid message. The offending
// message is dropped; no partner or queue state changes.
func (r *Relay) reject(id, kind, reason string) {
	r.collector.IncRejected(kind)
	r.logger.Debug().Str("id", id).Str("type", kind).Str("reason", reason).Msg("rejecting message")
	r.reply(id, errorMessage(reason))
}

// reply sends to a connection identified by id, if it still exists.
func (r *Relay) reply(id string, env *Envelope) {
	r.mu.Lock()
	rec, ok := r.registry.lookup(id)
	r.mu.Unlock()
	if !ok {
		return
	}
	r.send(rec.conn, id, env)
}

// send writes fire-and-forget: a failed write to a closing socket is
// logged and otherwise has no effect.
func (r *Relay) send(conn Conn, id string, env *Envelope) {
	if err := conn.Send(env); err != nil {
		r.logger.Debug().Str("id", id).Str("type", env.Type).Err(err).Msg("send failed")
	}
}
