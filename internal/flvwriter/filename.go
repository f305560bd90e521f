package flvwriter

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// illegalFilenameChars matches characters unsafe across common filesystems;
// any match in an expanded name is replaced with an underscore.
var illegalFilenameChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]`)

// ExpandName renders a writer.name_template for one output file.
// Supported placeholders: %Y %m %d %H %M %S (UTC clock fields), %i (1-based
// file sequence number within the run, zero-padded to 3 digits), %t (unix
// seconds at expansion time), %u (a caller-supplied stream identifier), %%
// (literal percent). Unknown placeholders pass through unchanged.
func ExpandName(template string, clock time.Time, seq int, streamID string) string {
	return ExpandNameExt(template, clock, seq, streamID, "flv")
}

// ExpandNameExt is ExpandName with a caller-chosen extension, used by
// internal/hlspipeline to produce .ts/.mp4 output names from the same
// template syntax.
func ExpandNameExt(template string, clock time.Time, seq int, streamID, ext string) string {
	var b strings.Builder
	runes := []rune(template)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '%' || i == len(runes)-1 {
			b.WriteRune(runes[i])
			continue
		}
		i++
		switch runes[i] {
		case 'Y':
			fmt.Fprintf(&b, "%04d", clock.UTC().Year())
		case 'm':
			fmt.Fprintf(&b, "%02d", clock.UTC().Month())
		case 'd':
			fmt.Fprintf(&b, "%02d", clock.UTC().Day())
		case 'H':
			fmt.Fprintf(&b, "%02d", clock.UTC().Hour())
		case 'M':
			fmt.Fprintf(&b, "%02d", clock.UTC().Minute())
		case 'S':
			fmt.Fprintf(&b, "%02d", clock.UTC().Second())
		case 'i':
			fmt.Fprintf(&b, "%03d", seq)
		case 't':
			fmt.Fprintf(&b, "%d", clock.Unix())
		case 'u':
			b.WriteString(streamID)
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteRune(runes[i])
		}
	}
	return sanitizeFilename(b.String()) + "." + ext
}

// maxSanitizedNameLen caps the expanded name (before the extension) at 200
// bytes, truncating with a "..." suffix when longer.
const maxSanitizedNameLen = 200

// sanitizeFilename replaces filesystem-unsafe characters, trims leading and
// trailing dots/spaces, and falls back to "output" for an empty result.
func sanitizeFilename(name string) string {
	name = illegalFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, ". ")
	if name == "" {
		return "output"
	}
	if len(name) > maxSanitizedNameLen {
		name = name[:maxSanitizedNameLen-3] + "..."
	}
	return name
}
