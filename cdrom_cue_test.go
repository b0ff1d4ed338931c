// cdrom_cue_test.go - CUE/BIN parsing and track lookup

package main

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTestDisc creates a two-track CUE sheet with one BIN file per track
// (the layout OpenCueBin assumes), each holding sectorsPerTrack sectors of
// zeroed MODE1/2352 data, and returns the CUE file's path.
func writeTestDisc(t *testing.T, sectorsPerTrack int) string {
	t.Helper()
	dir := t.TempDir()

	for _, name := range []string{"track1.bin", "track2.bin"} {
		data := make([]byte, sectorsPerTrack*sectorBytes)
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	cue := `FILE "track1.bin" BINARY
  TRACK 01 MODE1/2352
    INDEX 01 00:00:00
FILE "track2.bin" BINARY
  TRACK 02 MODE1/2352
    INDEX 01 00:00:00
`
	cuePath := filepath.Join(dir, "disc.cue")
	if err := os.WriteFile(cuePath, []byte(cue), 0o644); err != nil {
		t.Fatalf("writing cue: %v", err)
	}
	return cuePath
}

func TestCueParseAndTrackLookup(t *testing.T) {
	cuePath := writeTestDisc(t, 100)

	disc, err := OpenCueBin(cuePath)
	if err != nil {
		t.Fatalf("OpenCueBin: %v", err)
	}
	cue := disc.Cue()

	if cue.NumTracks() != 2 {
		t.Fatalf("expected 2 tracks, got %d", cue.NumTracks())
	}

	t1, t2 := cue.Track(1), cue.Track(2)
	if t1.StartTime != CdTimeZero {
		t.Fatalf("track 1 must start at 0, got %v", t1.StartTime)
	}
	if t1.EndTime != t2.StartTime {
		t.Fatalf("track 2 must start where track 1 ends: track1.EndTime=%v track2.StartTime=%v", t1.EndTime, t2.StartTime)
	}

	mid1 := CdTimeFromSectorNumber(t1.StartTime.ToSectorNumber() + 10)
	if got := cue.FindTrackByTime(mid1); got == nil || got.Number != 1 {
		t.Fatalf("FindTrackByTime within track 1 returned %v, want track 1", got)
	}

	mid2 := CdTimeFromSectorNumber(t2.StartTime.ToSectorNumber() + 10)
	if got := cue.FindTrackByTime(mid2); got == nil || got.Number != 2 {
		t.Fatalf("FindTrackByTime within track 2 returned %v, want track 2", got)
	}

	if got := cue.FindTrackByTime(t2.EndTime.Add(CdTime{1, 0, 0})); got != nil {
		t.Fatalf("FindTrackByTime past the disc end should return nil, got %v", got)
	}
}

func TestCueReadSectorRoundTrip(t *testing.T) {
	cuePath := writeTestDisc(t, 10)

	disc, err := OpenCueBin(cuePath)
	if err != nil {
		t.Fatalf("OpenCueBin: %v", err)
	}

	var buf [sectorBytes]byte
	if err := disc.ReadSector(1, CdTime{0, 0, 0}, buf[:]); err != nil {
		t.Fatalf("ReadSector track 1: %v", err)
	}
	if err := disc.ReadSector(2, CdTime{0, 0, 0}, buf[:]); err != nil {
		t.Fatalf("ReadSector track 2: %v", err)
	}
}
