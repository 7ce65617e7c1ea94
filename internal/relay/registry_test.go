package relay

import "testing"

func TestRegistryLifecycle(t *testing.T) {
	r := newRegistry()
	conn := &fakeConn{open: true}
	r.register("a", conn)

	rec, ok := r.lookup("a")
	if !ok || rec.conn != Conn(conn) {
		t.Fatalf("expected to find registered connection")
	}
	if !r.isOpen("a") {
		t.Fatalf("expected a to be open")
	}
	if r.isOpen("missing") {
		t.Fatalf("missing id must not be open")
	}

	conn.open = false
	if r.isOpen("a") {
		t.Fatalf("closed transport must not report open")
	}

	removed, ok := r.remove("a")
	if !ok || removed != rec {
		t.Fatalf("expected remove to return the record")
	}
	if _, ok := r.lookup("a"); ok {
		t.Fatalf("record must be gone after remove")
	}
	if _, ok := r.remove("a"); ok {
		t.Fatalf("second remove must report absence")
	}
}

func TestRegistrySetPartner(t *testing.T) {
	r := newRegistry()
	r.register("a", &fakeConn{open: true})
	r.register("b", &fakeConn{open: true})

	r.setPartner("a", "b")
	r.setPartner("b", "a")
	r.setPartner("missing", "a")

	recA, _ := r.lookup("a")
	recB, _ := r.lookup("b")
	if recA.partnerID != "b" || recB.partnerID != "a" {
		t.Fatalf("expected symmetric partner ids, got %q and %q", recA.partnerID, recB.partnerID)
	}

	r.setPartner("a", "")
	if recA.partnerID != "" {
		t.Fatalf("expected cleared partner id")
	}
}
