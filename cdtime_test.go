// cdtime_test.go - CD-ROM time arithmetic round-trips

package main

import "testing"

func TestCdTimeSectorRoundTrip(t *testing.T) {
	for sector := uint32(0); sector <= CdTimeDiscEnd.ToSectorNumber(); sector += 977 {
		ct := CdTimeFromSectorNumber(sector)
		if got := ct.ToSectorNumber(); got != sector {
			t.Fatalf("sector %d -> %v -> %d, want round-trip", sector, ct, got)
		}
	}
	if got := CdTimeFromSectorNumber(CdTimeDiscEnd.ToSectorNumber()); got != CdTimeDiscEnd {
		t.Fatalf("disc end round-trip: got %v, want %v", got, CdTimeDiscEnd)
	}
}

func TestCdTimeAddSubCarryBorrow(t *testing.T) {
	base := CdTime{0, 0, 74}
	sum := base.Add(CdTime{0, 0, 1})
	if sum != (CdTime{0, 1, 0}) {
		t.Fatalf("74f + 1f = %v, want 00:01:00", sum)
	}

	diff := sum.Sub(CdTime{0, 0, 1})
	if diff != base {
		t.Fatalf("round-trip add then sub: got %v, want %v", diff, base)
	}

	borrow := CdTime{0, 1, 0}.Sub(CdTime{0, 0, 1})
	if borrow != (CdTime{0, 0, 74}) {
		t.Fatalf("00:01:00 - 1f = %v, want 00:00:74", borrow)
	}
}

func TestBcdRoundTrip(t *testing.T) {
	for v := uint8(0); v < 100; v++ {
		if got := bcdToBinary(binaryToBCD(v)); got != v {
			t.Fatalf("bcd round-trip of %d produced %d", v, got)
		}
	}
}
