package relay

// Conn is the transport capability the relay needs from a connection.
// The server package implements it on top of a websocket; tests use
// in-memory fakes. Send is fire-and-forget: callers tolerate errors
// from closing sockets and never retry.
type Conn interface {
	Send(v interface{}) error
	IsOpen() bool
}

// record is the per-connection state owned by the registry. partnerID
// is empty until the connection is paired; it is the only
// cross-connection relation in the system.
type record struct {
	conn      Conn
	partnerID string
}

// registry maps connection identifiers to live connection state. It is
// not safe for concurrent use on its own; the Relay serializes access.
type registry struct {
	records map[string]*record
}

func newRegistry() *registry {
	return &registry{records: make(map[string]*record)}
}

func (r *registry) register(id string, conn Conn) {
	r.records[id] = &record{conn: conn}
}

func (r *registry) lookup(id string) (*record, bool) {
	rec, ok := r.records[id]
	return rec, ok
}

// isOpen reports whether the identifier names a registered connection
// whose transport is still ready to send.
func (r *registry) isOpen(id string) bool {
	rec, ok := r.records[id]
	return ok && rec.conn.IsOpen()
}

func (r *registry) remove(id string) (*record, bool) {
	rec, ok := r.records[id]
	if !ok {
		return nil, false
	}
	delete(r.records, id)
	return rec, true
}

// setPartner updates the partner reference; an empty partner clears it.
func (r *registry) setPartner(id, partnerID string) {
	if rec, ok := r.records[id]; ok {
		rec.partnerID = partnerID
	}
}

func (r *registry) size() int {
	return len(r.records)
}
