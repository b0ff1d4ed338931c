// cdrom_reader.go - CUE/BIN disc image reader

package main

import (
	"fmt"
	"os"
	"path/filepath"
)

const sectorBytes = 2352

type binFile struct {
	f        *os.File
	position int64
}

// CdBinFiles owns the open BIN file handles a CueSheet's tracks point to
// and turns (track, relative sector) lookups into raw sector reads.
type CdBinFiles struct {
	files map[string]*binFile
	cue   *CueSheet
}

// OpenCueBin parses cuePath, opens every referenced BIN file relative to
// the CUE's own directory, and finalizes each track's length from its
// file's size on disk (one BIN file per track is assumed, the layout
// produced by every common CUE/BIN ripper for PS-X discs).
func OpenCueBin(cuePath string) (*CdBinFiles, error) {
	parsed, err := ParseCueFile(cuePath)
	if err != nil {
		return nil, err
	}
	tracks := BuildCueSheet(parsed)

	dir := filepath.Dir(cuePath)
	files := make(map[string]*binFile, len(tracks))

	absoluteStart := CdTimeZero
	for i := range tracks {
		tr := &tracks[i]
		if _, ok := files[tr.FileName]; !ok {
			f, err := os.Open(filepath.Join(dir, tr.FileName))
			if err != nil {
				return nil, fmt.Errorf("cdrom: failed to open track file %q: %w", tr.FileName, err)
			}
			files[tr.FileName] = &binFile{f: f, position: -1}
		}
		bf := files[tr.FileName]
		info, err := bf.f.Stat()
		if err != nil {
			return nil, err
		}
		sectors := uint32(info.Size() / sectorBytes)
		contentLen := CdTimeFromSectorNumber(sectors)

		postgap := tr.Type.defaultPostgap()
		if i == len(tracks)-1 {
			postgap = CdTime{0, 2, 0}
		}

		tr.StartTime = absoluteStart
		tr.PostgapLen = postgap
		tr.EndTime = tr.StartTime.Add(tr.PregapLen).Add(tr.PauseLen).Add(contentLen).Add(postgap)

		absoluteStart = tr.EndTime
	}

	return &CdBinFiles{files: files, cue: NewCueSheet(tracks)}, nil
}

func (c *CdBinFiles) Cue() *CueSheet { return c.cue }

// ReadSector reads the 2352-byte raw sector at relativeTime (measured from
// the track's StartTime; the track's pregap is subtracted to get the
// sector offset into the track's own file) for trackNumber into out. Reads that fall within a track's pregap/postgap -
// which do not physically exist in the BIN file - synthesize a plausible
// sector instead of reading out of bounds.
func (c *CdBinFiles) ReadSector(trackNumber uint8, relativeTime CdTime, out []byte) error {
	tr := c.cue.Track(trackNumber)

	contentEnd := tr.EndTime.Sub(tr.PostgapLen).Sub(tr.StartTime)
	if relativeTime.Less(tr.PregapLen) || !relativeTime.Less(contentEnd) {
		writeFakePregapSector(tr, relativeTime, out)
		return nil
	}

	bf := c.files[tr.FileName]
	relSector := relativeTime.Sub(tr.PregapLen).ToSectorNumber()
	sectorAddr := int64(relSector) * sectorBytes

	if bf.position != sectorAddr {
		if _, err := bf.f.Seek(sectorAddr, 0); err != nil {
			return fmt.Errorf("cdrom: seek to sector %d in %q: %w", relSector, tr.FileName, err)
		}
	}
	n, err := bf.f.Read(out[:sectorBytes])
	if err != nil || n != sectorBytes {
		return fmt.Errorf("cdrom: short read of sector %d from %q", relSector, tr.FileName)
	}
	bf.position = sectorAddr + sectorBytes
	return nil
}

func writeFakePregapSector(tr *Track, t CdTime, out []byte) {
	if tr.Type == TrackTypeAudio {
		for i := range out[:sectorBytes] {
			out[i] = 0
		}
		return
	}
	header := [16]byte{
		0x00, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x00,
		binaryToBCD(t.Minutes), binaryToBCD(t.Seconds), binaryToBCD(t.Frames), 0x01,
	}
	copy(out, header[:])
	for i := 16; i < sectorBytes; i++ {
		out[i] = 0
	}
}
