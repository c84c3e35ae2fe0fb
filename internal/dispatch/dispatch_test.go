package dispatch

import (
	"slices"
	"testing"

	"github.com/hubenschmidt/vishing-trainer/internal/wire"
)

func text(s string) wire.Frame { return wire.Frame{Kind: wire.KindText, Text: s} }

func TestDispatchOrder(t *testing.T) {
	d := New()
	var got []string
	d.Subscribe("a", func(f wire.Frame) { got = append(got, "a:"+f.Text) })
	d.Subscribe("b", func(f wire.Frame) { got = append(got, "b:"+f.Text) })

	d.Dispatch(text("1"))
	d.Dispatch(text("2"))

	want := []string{"a:1", "b:1", "a:2", "b:2"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestUnsubscribeDuringDispatchAppliesNextFrame(t *testing.T) {
	d := New()
	var calls []string
	var second *Subscription
	d.Subscribe("first", func(wire.Frame) {
		calls = append(calls, "first")
		d.Unsubscribe(second)
	})
	second = d.Subscribe("second", func(wire.Frame) { calls = append(calls, "second") })

	d.Dispatch(text("x"))
	d.Dispatch(text("y"))

	want := []string{"first", "second", "first"}
	if !slices.Equal(calls, want) {
		t.Fatalf("calls=%v, want %v", calls, want)
	}
	if d.Len() != 1 {
		t.Fatalf("Len=%d, want 1", d.Len())
	}
}

func TestPanickingHandlerIsolated(t *testing.T) {
	d := New()
	var after int
	d.Subscribe("boom", func(wire.Frame) { panic("handler bug") })
	d.Subscribe("after", func(wire.Frame) { after++ })

	d.Dispatch(text("1"))
	d.Dispatch(text("2"))

	if after != 2 {
		t.Fatalf("later handler ran %d times, want 2", after)
	}
	if d.Len() != 2 {
		t.Fatalf("panicking handler was removed")
	}
}

func TestSameFunctionTwice(t *testing.T) {
	d := New()
	var n int
	h := func(wire.Frame) { n++ }
	s1 := d.Subscribe("h", h)
	d.Subscribe("h", h)

	d.Dispatch(text("x"))
	d.Unsubscribe(s1)
	d.Dispatch(text("y"))

	if n != 3 {
		t.Fatalf("calls=%d, want 3", n)
	}
}

func TestClear(t *testing.T) {
	d := New()
	var n int
	d.Subscribe("h", func(wire.Frame) { n++ })
	d.Clear()
	d.Dispatch(text("x"))
	d.Unsubscribe(nil)
	if n != 0 || d.Len() != 0 {
		t.Fatalf("n=%d len=%d after Clear", n, d.Len())
	}
}
