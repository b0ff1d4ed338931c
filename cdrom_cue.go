// cdrom_cue.go - CUE sheet parsing and track model

package main

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type TrackType int

const (
	TrackTypeData TrackType = iota
	TrackTypeAudio
)

func (t TrackType) defaultPostgap() CdTime {
	if t == TrackTypeData {
		return CdTime{0, 2, 0}
	}
	return CdTimeZero
}

type TrackMode int

const (
	TrackModeMode1 TrackMode = iota
	TrackModeMode2
	TrackModeAudio
)

func (m TrackMode) Type() TrackType {
	if m == TrackModeAudio {
		return TrackTypeAudio
	}
	return TrackTypeData
}

func parseTrackMode(s string) (TrackMode, error) {
	switch s {
	case "MODE1/2352":
		return TrackModeMode1, nil
	case "MODE2/2352":
		return TrackModeMode2, nil
	case "AUDIO":
		return TrackModeAudio, nil
	default:
		return 0, fmt.Errorf("cdrom: unsupported CD track type %q", s)
	}
}

// Track is one entry of the parsed CUE sheet.
type Track struct {
	Number     uint8
	Mode       TrackMode
	Type       TrackType
	StartTime  CdTime
	EndTime    CdTime
	PregapLen  CdTime
	PauseLen   CdTime
	PostgapLen CdTime
	FileName   string
}

func (t Track) EffectiveStartTime() CdTime {
	return t.StartTime.Add(t.PregapLen).Add(t.PauseLen)
}

// CueSheet is an ordered, 1-indexed track list with fast time lookups.
type CueSheet struct {
	tracks          []Track
	trackStartTimes []CdTime
}

func NewCueSheet(tracks []Track) *CueSheet {
	starts := make([]CdTime, len(tracks))
	for i, tr := range tracks {
		starts[i] = tr.StartTime
	}
	return &CueSheet{tracks: tracks, trackStartTimes: starts}
}

func (c *CueSheet) Track(number uint8) *Track { return &c.tracks[number-1] }
func (c *CueSheet) LastTrack() *Track         { return &c.tracks[len(c.tracks)-1] }
func (c *CueSheet) NumTracks() int            { return len(c.tracks) }

// FindTrackByTime returns the track containing time, or nil if time is
// past the end of the disc.
func (c *CueSheet) FindTrackByTime(t CdTime) *Track {
	i := sort.Search(len(c.trackStartTimes), func(i int) bool {
		return !c.trackStartTimes[i].Less(t)
	})
	if i < len(c.trackStartTimes) && c.trackStartTimes[i].Equal(t) {
		return &c.tracks[i]
	}
	if i > 0 && i < len(c.tracks) {
		return &c.tracks[i-1]
	}
	last := c.LastTrack()
	if t.LessEq(last.EndTime) {
		return last
	}
	return nil
}

var fileLineRE = regexp.MustCompile(`FILE "(.*)" BINARY`)
var trackLineRE = regexp.MustCompile(`TRACK (\d+) (\S+)`)
var indexLineRE = regexp.MustCompile(`INDEX (\d+) (\d+):(\d+):(\d+)`)
var pregapLineRE = regexp.MustCompile(`PREGAP (\d+):(\d+):(\d+)`)

type parsedTrack struct {
	number     uint8
	mode       TrackMode
	fileName   string
	pregapLen  *CdTime
	pauseStart *CdTime
	trackStart CdTime
}

// ParseCueFile loads a .cue file and returns the track list plus per-track
// source (file, offset) metadata needed to find sector data on disk.
func ParseCueFile(path string) ([]parsedTrack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var parsed []parsedTrack
	var currentFile string
	var current *parsedTrack

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "FILE "):
			m := fileLineRE.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("cdrom: invalid FILE line: %s", line)
			}
			currentFile = m[1]

		case strings.HasPrefix(strings.TrimLeft(line, " "), "TRACK "):
			m := trackLineRE.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("cdrom: invalid TRACK line: %s", line)
			}
			num, _ := strconv.Atoi(m[1])
			mode, err := parseTrackMode(m[2])
			if err != nil {
				return nil, err
			}
			if current != nil {
				parsed = append(parsed, *current)
			}
			current = &parsedTrack{number: uint8(num), mode: mode, fileName: currentFile}

		case strings.HasPrefix(strings.TrimLeft(line, " "), "INDEX "):
			m := indexLineRE.FindStringSubmatch(line)
			if m == nil || current == nil {
				continue
			}
			idx, _ := strconv.Atoi(m[1])
			mm, _ := strconv.Atoi(m[2])
			ss, _ := strconv.Atoi(m[3])
			ff, _ := strconv.Atoi(m[4])
			t := CdTime{uint8(mm), uint8(ss), uint8(ff)}
			if idx == 0 {
				current.pauseStart = &t
			} else if idx == 1 {
				current.trackStart = t
			}

		case strings.HasPrefix(strings.TrimLeft(line, " "), "PREGAP "):
			m := pregapLineRE.FindStringSubmatch(line)
			if m == nil || current == nil {
				continue
			}
			mm, _ := strconv.Atoi(m[1])
			ss, _ := strconv.Atoi(m[2])
			ff, _ := strconv.Atoi(m[3])
			t := CdTime{uint8(mm), uint8(ss), uint8(ff)}
			current.pregapLen = &t
		}
	}
	if current != nil {
		parsed = append(parsed, *current)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("cdrom: no tracks found in CUE file %s", path)
	}
	return parsed, nil
}

// BuildCueSheet converts the raw parsed-track list into Track stubs with
// number, mode, type, pregap, pause and file name filled in; StartTime,
// PostgapLen and EndTime depend on each track's BIN file size and are
// completed by OpenCueBin once the files have been opened (see
// cdrom_reader.go).
func BuildCueSheet(parsed []parsedTrack) []Track {
	tracks := make([]Track, 0, len(parsed))
	for i, pt := range parsed {
		pregap := CdTimeZero
		if pt.pregapLen != nil {
			pregap = *pt.pregapLen
		} else if i > 0 && pt.mode.Type() == TrackTypeData {
			pregap = CdTime{0, 2, 0}
		}

		pause := CdTimeZero
		if pt.pauseStart != nil {
			pause = pt.trackStart.Sub(*pt.pauseStart)
		}

		tracks = append(tracks, Track{
			Number:    pt.number,
			Mode:      pt.mode,
			Type:      pt.mode.Type(),
			PregapLen: pregap,
			PauseLen:  pause,
			FileName:  pt.fileName,
		})
	}
	return tracks
}
