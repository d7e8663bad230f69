package dtx

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// ErrUndecodable means no candidate encoding produced a single command
// line. Charts ship without an encoding declaration, so decoding is
// scored rather than trusted; a file that scores zero everywhere is
// unreadable, never an empty chart.
var ErrUndecodable = errors.New("dtx: no candidate encoding produced a readable chart")

var encodingCandidates = []struct {
	name string
	enc  encoding.Encoding
}{
	{"shift-jis", japanese.ShiftJIS},
	{"utf-16le", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)},
	{"utf-8-bom", unicode.UTF8BOM},
	{"utf-8", unicode.UTF8},
}

// decodeChart picks the candidate whose decoding yields the most lines
// beginning with the '#' sentinel. The x/text decoders substitute U+FFFD
// for undecodable input instead of failing, so a replacement rune in the
// output disqualifies the candidate.
func decodeChart(data []byte) (lines []string, encodingName string, err error) {
	bestScore := 0
	for _, cand := range encodingCandidates {
		decoded, derr := cand.enc.NewDecoder().Bytes(data)
		if derr != nil || bytes.ContainsRune(decoded, utf8.RuneError) {
			continue
		}
		candidate := strings.Split(string(decoded), "\n")
		score := 0
		for _, line := range candidate {
			if strings.HasPrefix(strings.TrimSpace(line), "#") {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			lines = candidate
			encodingName = cand.name
		}
	}
	if bestScore == 0 {
		return nil, "", ErrUndecodable
	}
	return lines, encodingName, nil
}
