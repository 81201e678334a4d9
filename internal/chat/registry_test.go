package chat

import (
	"context"
	"testing"
)

func TestRegistry_CreateGetDelete(t *testing.T) {
	r := NewRegistry(TransportFunc(func(_ context.Context, req Request) (Response, error) {
		return Response{Message: "about " + req.Subject}, nil
	}), 10)

	id, sess := r.Create("AAPL")
	if id == "" || sess == nil {
		t.Fatal("expected a session")
	}
	if sess.Subject() != "AAPL" {
		t.Fatalf("unexpected subject: %q", sess.Subject())
	}
	got, ok := r.Get(id)
	if !ok || got != sess {
		t.Fatal("expected to find the created session")
	}
	turn, ok := got.Submit(context.Background(), "hi")
	if !ok || turn.Text != "about AAPL" {
		t.Fatalf("unexpected turn: %#v", turn)
	}
	if !r.Delete(id) {
		t.Fatal("expected delete to succeed")
	}
	if _, ok := r.Get(id); ok {
		t.Fatal("expected session to be gone")
	}
	if r.Delete(id) {
		t.Fatal("expected second delete to report false")
	}
}

func TestRegistry_SessionsAreIndependent(t *testing.T) {
	r := NewRegistry(nil, 10)
	_, a := r.Create("AAPL")
	_, b := r.Create("MSFT")
	if _, ok := a.Begin("first"); !ok {
		t.Fatal("expected begin on a")
	}
	if b.Pending() {
		t.Fatal("pending state leaked across sessions")
	}
	if _, ok := b.Begin("second"); !ok {
		t.Fatal("expected begin on b")
	}
}

func TestRegistry_EvictsOldest(t *testing.T) {
	r := NewRegistry(nil, 2)
	first, _ := r.Create("AAPL")
	second, _ := r.Create("MSFT")
	third, _ := r.Create("")

	if r.Len() != 2 {
		t.Fatalf("unexpected size: %d", r.Len())
	}
	if _, ok := r.Get(first); ok {
		t.Fatal("expected oldest session to be evicted")
	}
	if _, ok := r.Get(second); !ok {
		t.Fatal("expected second session to remain")
	}
	sess, ok := r.Get(third)
	if !ok || sess.State() != StateIdle {
		t.Fatal("expected third session to be idle")
	}
}
