package surface

import (
	"testing"
	"time"
)

func TestPacerAtMostOneInFlight(t *testing.T) {
	p := NewPacer(time.Minute, nil, nil)
	id := sid(1)

	if !p.TrySend(id) {
		t.Fatal("first send gated")
	}
	if !p.InFlight(id) {
		t.Fatal("not marked in flight")
	}
	// three commits arrive while the frame is unacknowledged: all coalesce
	for i := 0; i < 3; i++ {
		if p.TrySend(id) {
			t.Fatalf("commit %d not coalesced", i)
		}
	}

	if !p.Ack(id) {
		t.Fatal("Ack did not report the coalesced commit")
	}
	if p.InFlight(id) {
		t.Fatal("still in flight after ack")
	}
	if !p.TrySend(id) {
		t.Fatal("send gated after ack")
	}
}

func TestPacerAckWithoutPending(t *testing.T) {
	p := NewPacer(time.Minute, nil, nil)
	id := sid(1)

	if !p.TrySend(id) {
		t.Fatal("first send gated")
	}
	if p.Ack(id) {
		t.Fatal("Ack reported a pending commit that does not exist")
	}
	if p.Ack(id) {
		t.Fatal("duplicate Ack reported a pending commit")
	}
}

func TestPacerDeadlineRelease(t *testing.T) {
	p := NewPacer(time.Millisecond, nil, nil)
	id := sid(1)

	if !p.TrySend(id) {
		t.Fatal("first send gated")
	}
	time.Sleep(5 * time.Millisecond)
	// no callback arrived within the deadline: the next commit goes through
	if !p.TrySend(id) {
		t.Fatal("pacing not released after the deadline")
	}
}

func TestPacerPerSurfaceIndependence(t *testing.T) {
	p := NewPacer(time.Minute, nil, nil)

	if !p.TrySend(sid(1)) {
		t.Fatal("surface 1 gated")
	}
	if !p.TrySend(sid(2)) {
		t.Fatal("surface 2 gated by surface 1's frame")
	}
}

func TestPacerReset(t *testing.T) {
	p := NewPacer(time.Minute, nil, nil)
	id := sid(1)

	p.TrySend(id)
	p.Reset()
	if p.InFlight(id) {
		t.Fatal("in flight survived reset")
	}
	if !p.TrySend(id) {
		t.Fatal("send gated after reset")
	}
}

func TestCallbackDeadline(t *testing.T) {
	if d := CallbackDeadline(60); d != MinCallbackDeadline {
		t.Fatalf("60 Hz deadline = %v, want floor %v", d, MinCallbackDeadline)
	}
	if d := CallbackDeadline(10); d != 200*time.Millisecond {
		t.Fatalf("10 Hz deadline = %v", d)
	}
}
