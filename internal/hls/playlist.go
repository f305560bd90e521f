package hls

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// MediaPlaylist is a parsed RFC 8216 media playlist: the sliding window of
// segments a live stream's playlist currently advertises.
type MediaPlaylist struct {
	Version        int
	TargetDuration time.Duration
	MediaSequence  int64
	Segments       []PlaylistSegment
	EndList        bool
}

// PlaylistSegment is one #EXTINF entry plus the tags that apply to it.
type PlaylistSegment struct {
	URI           string
	Duration      time.Duration
	Discontinuity bool
	Key           *KeyInfo
	IsAd          bool
	// MapURI is the most recent #EXT-X-MAP init segment URI in effect for
	// this segment, or "" for plain TS segments that carry no fMP4 init.
	MapURI string
}

// MasterPlaylist is a parsed RFC 8216 multivariant (master) playlist.
type MasterPlaylist struct {
	Variants []MasterVariant
}

// MasterVariant is one #EXT-X-STREAM-INF entry.
type MasterVariant struct {
	URI       string
	Bandwidth int
}

// IsMasterPlaylist reports whether data is a multivariant playlist (carries
// #EXT-X-STREAM-INF) rather than a media playlist (carries #EXTINF).
func IsMasterPlaylist(data []byte) bool {
	return bytes.Contains(data, []byte("#EXT-X-STREAM-INF"))
}

// ParseMediaPlaylist parses a media playlist per RFC 8216 §4. Unknown tags
// are ignored; #EXT-X-DISCONTINUITY applies to the next #EXTINF segment
// line encountered, and #EXT-X-KEY applies to that segment and every later
// one until the next #EXT-X-KEY. #EXT-X-DATERANGE with
// CLASS="twitch-stitched-ad" flags the following segment as an ad, per the
// pluggable classifier hook SPEC_FULL.md calls for.
func ParseMediaPlaylist(data []byte) (*MediaPlaylist, error) {
	pl := &MediaPlaylist{Version: 3}
	var pendingDuration time.Duration
	var pendingDiscontinuity bool
	var pendingAd bool
	var pendingKey *KeyInfo
	var currentKey *KeyInfo
	var currentMapURI string
	haveExtInf := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if line != "#EXTM3U" {
				return nil, &PlaylistParseError{Msg: "missing #EXTM3U"}
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-VERSION:"):
			if v, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-VERSION:")); err == nil {
				pl.Version = v
			}
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			if v, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:")); err == nil {
				pl.TargetDuration = time.Duration(v) * time.Second
			}
		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			if v, err := strconv.ParseInt(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"), 10, 64); err == nil {
				pl.MediaSequence = v
			}
		case line == "#EXT-X-DISCONTINUITY":
			pendingDiscontinuity = true
		case strings.HasPrefix(line, "#EXT-X-KEY:"):
			k, err := parseKeyAttributes(strings.TrimPrefix(line, "#EXT-X-KEY:"))
			if err != nil {
				return nil, err
			}
			currentKey = k
			pendingKey = k
		case strings.HasPrefix(line, "#EXT-X-DATERANGE:") && strings.Contains(line, "twitch-stitched-ad"):
			pendingAd = true
		case strings.HasPrefix(line, "#EXT-X-MAP:"):
			for key, val := range iterAttributes(strings.TrimPrefix(line, "#EXT-X-MAP:")) {
				if key == "URI" {
					currentMapURI = val
				}
			}
		case strings.HasPrefix(line, "#EXTINF:"):
			d, err := parseExtInfDuration(strings.TrimPrefix(line, "#EXTINF:"))
			if err != nil {
				return nil, err
			}
			pendingDuration = d
			haveExtInf = true
		case line == "#EXT-X-ENDLIST":
			pl.EndList = true
		case strings.HasPrefix(line, "#"):
			// unrecognized tag, ignored.
		default:
			if !haveExtInf {
				return nil, &PlaylistParseError{Msg: "segment URI without preceding #EXTINF: " + line}
			}
			seg := PlaylistSegment{
				URI:           line,
				Duration:      pendingDuration,
				Discontinuity: pendingDiscontinuity,
				IsAd:          pendingAd,
				MapURI:        currentMapURI,
			}
			if pendingKey != nil {
				seg.Key = pendingKey
			} else {
				seg.Key = currentKey
			}
			pl.Segments = append(pl.Segments, seg)
			pendingDiscontinuity = false
			pendingAd = false
			pendingKey = nil
			haveExtInf = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &PlaylistParseError{Msg: err.Error()}
	}
	return pl, nil
}

// ParseMasterPlaylist parses a multivariant playlist's #EXT-X-STREAM-INF
// entries and the URI line following each.
func ParseMasterPlaylist(data []byte) (*MasterPlaylist, error) {
	mp := &MasterPlaylist{}
	var pendingBandwidth int
	havePending := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if line != "#EXTM3U" {
				return nil, &PlaylistParseError{Msg: "missing #EXTM3U"}
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			pendingBandwidth = parseBandwidthAttribute(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			havePending = true
		case strings.HasPrefix(line, "#"):
			// ignored
		default:
			if !havePending {
				continue
			}
			mp.Variants = append(mp.Variants, MasterVariant{URI: line, Bandwidth: pendingBandwidth})
			havePending = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &PlaylistParseError{Msg: err.Error()}
	}
	return mp, nil
}

func parseExtInfDuration(rest string) (time.Duration, error) {
	// "<duration>,<title>"
	comma := strings.IndexByte(rest, ',')
	numPart := rest
	if comma >= 0 {
		numPart = rest[:comma]
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(numPart), 64)
	if err != nil {
		return 0, &PlaylistParseError{Msg: "invalid EXTINF duration: " + rest}
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func parseBandwidthAttribute(attrs string) int {
	for key, val := range iterAttributes(attrs) {
		if key == "BANDWIDTH" {
			if v, err := strconv.Atoi(val); err == nil {
				return v
			}
		}
	}
	return 0
}

func parseKeyAttributes(attrs string) (*KeyInfo, error) {
	k := &KeyInfo{Method: "NONE"}
	for key, val := range iterAttributes(attrs) {
		switch key {
		case "METHOD":
			k.Method = val
		case "URI":
			k.URI = val
		case "IV":
			iv, err := parseHexIV(val)
			if err != nil {
				return nil, err
			}
			k.IV = iv
		}
	}
	return k, nil
}

func parseHexIV(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, &PlaylistParseError{Msg: "invalid EXT-X-KEY IV: " + s}
	}
	return b, nil
}

// iterAttributes walks a comma-separated ATTR=VALUE list (values optionally
// double-quoted, commas inside quotes are not separators) and yields
// key/value pairs.
func iterAttributes(s string) map[string]string {
	out := make(map[string]string)
	var key strings.Builder
	var val strings.Builder
	inQuotes := false
	inValue := false
	flush := func() {
		if key.Len() > 0 {
			out[strings.TrimSpace(key.String())] = strings.Trim(val.String(), `"`)
		}
		key.Reset()
		val.Reset()
		inValue = false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			if inValue {
				val.WriteByte(c)
			}
		case c == ',' && !inQuotes:
			flush()
		case c == '=' && !inValue && !inQuotes:
			inValue = true
		case inValue:
			val.WriteByte(c)
		default:
			key.WriteByte(c)
		}
	}
	flush()
	// strip quotes we kept for balance above
	for k, v := range out {
		out[k] = strings.Trim(v, `"`)
	}
	return out
}
