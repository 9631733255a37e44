package neom8

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// Frame locator errors. Neither is a failure of the receiver or the driver:
// errIncomplete means "feed more bytes", errChecksum means "discard this
// region and keep scanning".
var (
	errIncomplete = errors.New("neom8: incomplete sentence")
	errChecksum   = errors.New("neom8: checksum mismatch")
)

// nextSentence finds the first complete $...\n region in buf and verifies
// its checksum. On success it returns a view into buf (valid only until the
// buffer next mutates) and the number of bytes to consume through the
// terminator. On errChecksum the consume count is still returned so the bad
// region can be skipped; on errIncomplete nothing should be consumed.
func nextSentence(buf []byte) (view []byte, consume int, err error) {
	start := bytes.IndexByte(buf, '$')
	if start < 0 {
		return nil, 0, errIncomplete
	}
	nl := bytes.IndexByte(buf[start:], '\n')
	if nl < 0 {
		return nil, 0, errIncomplete
	}
	consume = start + nl + 1
	view = buf[start:consume]
	if !verifyChecksum(view) {
		return nil, consume, errChecksum
	}
	return view, consume, nil
}

// verifyChecksum checks the XOR checksum after '*': the XOR of every byte
// between '$' and '*' (both exclusive) must equal the two hex digits that
// follow the '*'.
func verifyChecksum(sentence []byte) bool {
	star := bytes.IndexByte(sentence, '*')
	if star < 0 || star+3 > len(sentence) {
		return false
	}
	var calc byte
	for _, b := range sentence[1:star] {
		calc ^= b
	}
	want, err := strconv.ParseUint(string(sentence[star+1:star+3]), 16, 8)
	if err != nil {
		return false
	}
	return byte(want) == calc
}

// sentenceType returns the three-letter type ("GGA", "RMC", ...) of a
// sentence, skipping the talker prefix, or "" if the sentence is too short.
func sentenceType(sentence string) string {
	if len(sentence) < 6 {
		return ""
	}
	return sentence[3:6]
}

// splitFields strips the checksum suffix and leading '$', then splits on
// commas. Field indices therefore match the raw sentence layout with the
// talker+type in field 0.
func splitFields(sentence string) []string {
	if idx := strings.Index(sentence, "*"); idx >= 0 {
		sentence = sentence[:idx]
	}
	sentence = strings.TrimPrefix(sentence, "$")
	return strings.Split(sentence, ",")
}

// formatClock reformats the first six digits of an NMEA time field
// (hhmmss, optionally with fractional seconds) as hh:mm:ss.
// Returns "" if the field is too short or not numeric.
func formatClock(field string) string {
	if len(field) < 6 {
		return ""
	}
	for i := 0; i < 6; i++ {
		if field[i] < '0' || field[i] > '9' {
			return ""
		}
	}
	return field[0:2] + ":" + field[2:4] + ":" + field[4:6]
}

// parseCoordinate converts an NMEA DDMM.MMMM (or DDDMM.MMMM) field plus
// hemisphere letter into signed decimal degrees. The two digits immediately
// before the decimal point are the whole minutes; everything before them is
// degrees. A field with no decimal point, or with the point too early to
// leave room for a degree digit, is rejected.
func parseCoordinate(field, hemi string) (float64, bool) {
	dot := strings.IndexByte(field, '.')
	if dot <= 1 {
		return 0, false
	}
	deg, err := strconv.Atoi(field[:dot-2])
	if err != nil {
		return 0, false
	}
	min, err := strconv.ParseFloat(field[dot-2:], 64)
	if err != nil {
		return 0, false
	}
	dec := float64(deg) + min/60
	if hemi == "S" || hemi == "W" {
		dec = -dec
	}
	return dec, true
}

// decodeGGAPosition extracts a horizontal fix from a GGA sentence.
// The fix-quality field must be "1"; anything else (including a malformed
// sentence) reports no fix. hNoiseM is the 1σ receiver noise floor the HDOP
// is scaled by.
func decodeGGAPosition(sentence string, hNoiseM float64) (Position, bool) {
	f := splitFields(sentence)
	if len(f) < 9 || f[6] != "1" {
		return Position{}, false
	}
	lat, ok := parseCoordinate(f[2], f[3])
	if !ok {
		return Position{}, false
	}
	lon, ok := parseCoordinate(f[4], f[5])
	if !ok {
		return Position{}, false
	}
	hdop, err := strconv.ParseFloat(f[8], 64)
	if err != nil {
		return Position{}, false
	}
	return Position{
		Latitude:  lat,
		Longitude: lon,
		ErrorM:    hdop * hNoiseM,
		Time:      formatClock(f[1]),
	}, true
}

// decodeGGAAltitude extracts altitude and geoid separation from a GGA
// sentence, under the same fix-quality gate as the position decode.
func decodeGGAAltitude(sentence string) (altM, geoSepM float64, clock string, ok bool) {
	f := splitFields(sentence)
	if len(f) < 12 || f[6] != "1" {
		return 0, 0, "", false
	}
	altM, err := strconv.ParseFloat(f[9], 64)
	if err != nil {
		return 0, 0, "", false
	}
	geoSepM, err = strconv.ParseFloat(f[11], 64)
	if err != nil {
		return 0, 0, "", false
	}
	return altM, geoSepM, formatClock(f[1]), true
}

// decodeGLLPosition extracts a horizontal fix from a GLL sentence.
// GLL carries no DOP of its own, so the error estimate is left to the
// caller (the driver supplies HDOP from the latest GSA).
func decodeGLLPosition(sentence string) (Position, bool) {
	f := splitFields(sentence)
	if len(f) < 7 || f[6] != "A" {
		return Position{}, false
	}
	lat, ok := parseCoordinate(f[1], f[2])
	if !ok {
		return Position{}, false
	}
	lon, ok := parseCoordinate(f[3], f[4])
	if !ok {
		return Position{}, false
	}
	return Position{
		Latitude:  lat,
		Longitude: lon,
		Time:      formatClock(f[5]),
	}, true
}

// decodeRMC extracts speed, course, magnetic variation and date from an RMC
// sentence. The status field must be "A".
//
// The NEO-M8 omits the course field when the ground speed is too low to
// compute one, which shifts the date into the course slot under the standard
// layout. A "course" above 360 is therefore the date: course is reported as
// unavailable and the date is read from the field that actually holds it.
func decodeRMC(sentence string) (Velocity, bool) {
	f := splitFields(sentence)
	if len(f) < 8 || f[2] != "A" {
		return Velocity{}, false
	}
	sog, err := strconv.ParseFloat(f[7], 64)
	if err != nil {
		return Velocity{}, false
	}
	v := Velocity{
		SpeedKnots: sog,
		Time:       formatClock(f[1]),
	}
	if len(f) > 8 && f[8] != "" {
		cog, err := strconv.ParseFloat(f[8], 64)
		switch {
		case err != nil:
			return Velocity{}, false
		case cog > 360:
			v.Date = f[8]
		default:
			v.CourseDeg = &cog
			if len(f) > 9 {
				v.Date = f[9]
			}
		}
	} else if len(f) > 9 {
		// An empty course field still leaves the date in its usual slot.
		v.Date = f[9]
	}
	if len(f) > 10 && f[10] != "" {
		if mv, err := strconv.ParseFloat(f[10], 64); err == nil {
			if len(f) > 11 && f[11] == "W" {
				mv = -mv
			}
			v.MagVarDeg = mv
		}
	}
	return v, true
}

// decodeGSA extracts the trailing dilution-of-precision triple from a GSA
// sentence: PDOP, HDOP, VDOP are always its last three fields regardless of
// how many satellite slots the receiver fills in. GSA has no fix-status
// gate of its own.
func decodeGSA(sentence string) (pdop, hdop, vdop float64, ok bool) {
	f := splitFields(sentence)
	if len(f) < 4 {
		return 0, 0, 0, false
	}
	var err error
	if vdop, err = strconv.ParseFloat(f[len(f)-1], 64); err != nil {
		return 0, 0, 0, false
	}
	if hdop, err = strconv.ParseFloat(f[len(f)-2], 64); err != nil {
		return 0, 0, 0, false
	}
	if pdop, err = strconv.ParseFloat(f[len(f)-3], 64); err != nil {
		return 0, 0, 0, false
	}
	return pdop, hdop, vdop, true
}
