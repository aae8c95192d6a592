package locus

import "testing"

func TestLess(t *testing.T) {
	a := New(0, 100, 200)
	b := New(0, 150, 160)
	c := New(1, 1, 2)
	if !Less(a, b) {
		t.Error("same contig, earlier start should sort first")
	}
	if Less(b, a) {
		t.Error("Less should not be symmetric here")
	}
	if !Less(a, c) {
		t.Error("lower contig should sort first regardless of position")
	}
}

func TestOverlaps(t *testing.T) {
	a := New(0, 100, 200)
	if !a.Overlaps(New(0, 150, 160)) {
		t.Error("contained interval should overlap")
	}
	if !a.Overlaps(New(0, 200, 300)) {
		t.Error("touching at a single base should overlap")
	}
	if a.Overlaps(New(0, 201, 300)) {
		t.Error("adjacent non-touching interval should not overlap")
	}
	if a.Overlaps(New(1, 100, 200)) {
		t.Error("same coordinates on a different contig should not overlap")
	}
}

func TestDistance(t *testing.T) {
	a := New(0, 100, 200)
	b := New(0, 250, 260)
	if d := a.Distance(b); d != 150 {
		t.Errorf("expected distance 150, got %v", d)
	}
	if d := b.Distance(a); d != 150 {
		t.Errorf("Distance should be symmetric, got %v", d)
	}
}

func TestPad(t *testing.T) {
	a := New(0, 5, 10)
	p := a.Pad(30)
	if p.Start != 1 {
		t.Errorf("expected padded start to clamp at 1, got %v", p.Start)
	}
	if p.Stop != 40 {
		t.Errorf("expected padded stop 40, got %v", p.Stop)
	}
}
