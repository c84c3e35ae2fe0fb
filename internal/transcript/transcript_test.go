package transcript

import (
	"testing"
	"time"
)

func TestAppendOrderAndSnapshot(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	l := New(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	l.Append(RoleAgent, "This is the prosecutor's office.")
	l.Append(RoleUser, "Which office?")
	l.Append(RoleSystem, "server error")

	snap := l.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len=%d, want 3", len(snap))
	}
	for i := 1; i < len(snap); i++ {
		if !snap[i].At.After(snap[i-1].At) {
			t.Fatalf("entry %d out of order", i)
		}
	}
	if snap[1].Role != RoleUser || snap[1].Text != "Which office?" {
		t.Fatalf("entry 1=%+v", snap[1])
	}

	snap[0].Text = "mutated"
	if l.Snapshot()[0].Text == "mutated" {
		t.Fatal("snapshot aliases the log")
	}
	l.Append(RoleUser, "later")
	if len(snap) != 3 {
		t.Fatal("snapshot grew after append")
	}
}

func TestCount(t *testing.T) {
	l := New(nil)
	l.Append(RoleUser, "a")
	l.Append(RoleAgent, "b")
	l.Append(RoleUser, "c")
	if got := l.Count(RoleUser); got != 2 {
		t.Fatalf("user count=%d, want 2", got)
	}
	if l.Len() != 3 {
		t.Fatalf("Len=%d", l.Len())
	}
}
