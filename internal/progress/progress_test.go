package progress

import "testing"

func TestDeltaEmptyForIdenticalProgress(t *testing.T) {
	p := Progress{Data: Variable{Current: 10, Total: 100}, Status: StatusRestoring}
	d := ComputeDelta(p, p)
	if !d.IsEmpty() {
		t.Fatalf("expected empty delta, got %+v", d)
	}
}

func TestDeltaCarriesAllSetFieldsAgainstDefault(t *testing.T) {
	files := Variable{Current: 1, Total: 3}
	p := Progress{Data: Variable{Current: 10, Total: 100}, Files: &files, Status: StatusRestoring}
	d := ComputeDelta(Progress{}, p)

	if d.IsEmpty() {
		t.Fatalf("expected non-empty delta")
	}
	if d.Data == nil || *d.Data != p.Data {
		t.Errorf("expected Data delta %+v, got %+v", p.Data, d.Data)
	}
	if d.Files == nil || *d.Files != files {
		t.Errorf("expected Files delta %+v, got %+v", files, d.Files)
	}
	if d.Status == nil || *d.Status != StatusRestoring {
		t.Errorf("expected Status delta %v, got %v", StatusRestoring, d.Status)
	}
}

func TestZeroCountIsNoOp(t *testing.T) {
	tr := NewTracker()
	before := tr.Handle().Current()
	tr.Add(Count{Unit: UnitData, Count: 0})
	after := tr.Handle().Current()
	if before != after {
		t.Fatalf("zero count mutated state: %+v -> %+v", before, after)
	}
}

func TestApplyFileBeforeInitPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic when incrementing uninitialized Files")
		}
	}()
	p := Progress{}
	p.Apply(Count{Unit: UnitFile, Count: 1})
}

func TestTrackerBroadcastsToSubscribers(t *testing.T) {
	tr := NewTracker()
	sub := tr.Handle().Subscribe()
	defer sub.Close()

	tr.SetStatus(StatusRestoring)

	select {
	case p := <-sub.C():
		if p.Status != StatusRestoring {
			t.Fatalf("expected status Restoring, got %v", p.Status)
		}
	default:
		t.Fatalf("expected a broadcast update to be available")
	}

	if cur := tr.Handle().Current(); cur.Status != StatusRestoring {
		t.Fatalf("Current() out of sync: %v", cur.Status)
	}
}
