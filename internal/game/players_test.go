package game

import "testing"

func TestRegistryBindAndRebind(t *testing.T) {
	r := NewRegistry()

	p := r.Bind("Alice", "conn-1")
	if p.Score != 0 || p.ConnID != "conn-1" {
		t.Fatalf("unexpected fresh player %+v", p)
	}

	p.Score = 400
	rebound := r.Bind("Alice", "conn-2")
	if rebound != p {
		t.Fatalf("expected rebind to return the same record")
	}
	if rebound.Score != 400 || rebound.ConnID != "conn-2" {
		t.Fatalf("expected retained score with new connection, got %+v", rebound)
	}
	if r.Len() != 1 {
		t.Fatalf("expected a single record, got %d", r.Len())
	}
}

func TestRegistryUnbindRetainsRecord(t *testing.T) {
	r := NewRegistry()
	r.Bind("Alice", "conn-1").Score = 200

	r.Unbind("conn-1")
	if _, ok := r.ByConn("conn-1"); ok {
		t.Fatalf("expected connection association dropped")
	}
	p, ok := r.Get("Alice")
	if !ok || p.Score != 200 {
		t.Fatalf("expected record retained with score, got %+v (present=%v)", p, ok)
	}
}

func TestRegistryRankedOrdering(t *testing.T) {
	r := NewRegistry()
	r.Bind("Alice", "c1").Score = 100
	r.Bind("Bob", "c2").Score = 300
	r.Bind("Carol", "c3").Score = 100

	ranked := r.Ranked()
	if len(ranked) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(ranked))
	}
	if ranked[0].Name != "Bob" {
		t.Fatalf("expected Bob first, got %+v", ranked)
	}
	// Equal scores keep registration order.
	if ranked[1].Name != "Alice" || ranked[2].Name != "Carol" {
		t.Fatalf("expected stable tie order Alice before Carol, got %+v", ranked)
	}
}

func TestRegistryResetScores(t *testing.T) {
	r := NewRegistry()
	r.Bind("Alice", "c1").Score = -200
	r.Bind("Bob", "c2").Score = 500

	r.ResetScores()
	scores := r.Scores()
	if scores["Alice"] != 0 || scores["Bob"] != 0 {
		t.Fatalf("expected all scores zeroed, got %v", scores)
	}
	if r.Len() != 2 {
		t.Fatalf("expected registrations retained, got %d", r.Len())
	}
}
