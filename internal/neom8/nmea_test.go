package neom8

import (
	"fmt"
	"math"
	"testing"
)

// nmeaLine wraps a sentence body in the $...*hh\r\n framing with a correct
// checksum.
func nmeaLine(body string) string {
	var ck byte
	for i := 0; i < len(body); i++ {
		ck ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", body, ck)
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNextSentence(t *testing.T) {
	good := nmeaLine("GPGGA,123519.00,5130.0000,N,00007.0000,W,1,08,1.2,40.0,M,45.0,M,,")

	t.Run("skips leading garbage", func(t *testing.T) {
		buf := []byte("\x00\xFFxyz" + good)
		view, consume, err := nextSentence(buf)
		if err != nil {
			t.Fatalf("nextSentence: %v", err)
		}
		if consume != len(buf) {
			t.Fatalf("consume = %d, want %d", consume, len(buf))
		}
		if view[0] != '$' || view[len(view)-1] != '\n' {
			t.Fatalf("view not a full sentence: %q", view)
		}
	})

	t.Run("incomplete without terminator", func(t *testing.T) {
		if _, _, err := nextSentence([]byte("$GPGGA,123519")); err != errIncomplete {
			t.Fatalf("err = %v, want errIncomplete", err)
		}
	})

	t.Run("corrupt checksum is skippable", func(t *testing.T) {
		bad := []byte(good)
		bad[10] ^= 0x01
		_, consume, err := nextSentence(bad)
		if err != errChecksum {
			t.Fatalf("err = %v, want errChecksum", err)
		}
		if consume != len(bad) {
			t.Fatalf("consume = %d, want %d so the bad region can be dropped", consume, len(bad))
		}
	})
}

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		field, hemi string
		want        float64
		ok          bool
	}{
		{"5130.0000", "N", 51.5, true},
		{"00007.0000", "W", -7.0 / 60, true},
		{"4807.038", "N", 48 + 7.038/60, true},
		{"04807.038", "S", -(48 + 7.038/60), true},
		{"", "N", 0, false},
		{"5130", "N", 0, false},    // no decimal point
		{".5000", "N", 0, false},   // point too early for a degree digit
		{"51x0.00", "N", 0, false}, // non-numeric
	}
	for _, tt := range tests {
		got, ok := parseCoordinate(tt.field, tt.hemi)
		if ok != tt.ok {
			t.Errorf("parseCoordinate(%q, %q) ok = %v, want %v", tt.field, tt.hemi, ok, tt.ok)
			continue
		}
		if ok && !near(got, tt.want) {
			t.Errorf("parseCoordinate(%q, %q) = %v, want %v", tt.field, tt.hemi, got, tt.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"123519.00", "12:35:19"},
		{"123519", "12:35:19"},
		{"1235", ""},
		{"12a519", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := formatClock(tt.in); got != tt.want {
			t.Errorf("formatClock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeGGAPosition(t *testing.T) {
	s := nmeaLine("GPGGA,123519.00,5130.0000,N,00007.0000,W,1,08,1.2,40.0,M,45.0,M,,")
	p, ok := decodeGGAPosition(s, 2.5)
	if !ok {
		t.Fatal("decodeGGAPosition reported no fix")
	}
	if !near(p.Latitude, 51.5) || !near(p.Longitude, -7.0/60) {
		t.Errorf("position = %v, %v, want 51.5, %v", p.Latitude, p.Longitude, -7.0/60)
	}
	if !near(p.ErrorM, 1.2*2.5) {
		t.Errorf("ErrorM = %v, want %v", p.ErrorM, 1.2*2.5)
	}
	if p.Time != "12:35:19" {
		t.Errorf("Time = %q, want 12:35:19", p.Time)
	}
}

func TestDecodeGGANoFix(t *testing.T) {
	tests := []struct {
		name, body string
	}{
		{"fix quality zero", "GPGGA,123519.00,5130.0000,N,00007.0000,W,0,03,9.9,,,,,,"},
		{"empty coordinates", "GPGGA,123519.00,,,,,1,08,1.2,40.0,M,45.0,M,,"},
		{"truncated", "GPGGA,123519.00,5130.0000,N"},
	}
	for _, tt := range tests {
		if p, ok := decodeGGAPosition(nmeaLine(tt.body), 2.5); ok || p != (Position{}) {
			t.Errorf("%s: got %+v ok=%v, want zero value and no fix", tt.name, p, ok)
		}
	}
}

func TestDecodeGGAAltitude(t *testing.T) {
	s := nmeaLine("GPGGA,123519.00,5130.0000,N,00007.0000,W,1,08,1.2,40.0,M,45.0,M,,")
	altM, geoSepM, clock, ok := decodeGGAAltitude(s)
	if !ok {
		t.Fatal("decodeGGAAltitude reported no fix")
	}
	if !near(altM, 40.0) || !near(geoSepM, 45.0) {
		t.Errorf("altitude = %v geoid = %v, want 40 and 45", altM, geoSepM)
	}
	if clock != "12:35:19" {
		t.Errorf("clock = %q, want 12:35:19", clock)
	}
}

func TestDecodeGLLPosition(t *testing.T) {
	p, ok := decodeGLLPosition(nmeaLine("GPGLL,5130.0000,N,00007.0000,W,123519.00,A,A"))
	if !ok {
		t.Fatal("decodeGLLPosition reported no fix")
	}
	if !near(p.Latitude, 51.5) || !near(p.Longitude, -7.0/60) {
		t.Errorf("position = %v, %v, want 51.5, %v", p.Latitude, p.Longitude, -7.0/60)
	}
	if p.ErrorM != 0 {
		t.Errorf("ErrorM = %v, want 0 (no DOP in GLL)", p.ErrorM)
	}
	if _, ok := decodeGLLPosition(nmeaLine("GPGLL,5130.0000,N,00007.0000,W,123519.00,V,N")); ok {
		t.Error("status V decoded as a fix")
	}
}

func TestDecodeRMC(t *testing.T) {
	t.Run("full sentence", func(t *testing.T) {
		v, ok := decodeRMC(nmeaLine("GPRMC,123519.00,A,5130.0000,N,00007.0000,W,22.4,84.4,280826,3.1,W,A"))
		if !ok {
			t.Fatal("decodeRMC reported no fix")
		}
		if !near(v.SpeedKnots, 22.4) {
			t.Errorf("SpeedKnots = %v, want 22.4", v.SpeedKnots)
		}
		if v.CourseDeg == nil || !near(*v.CourseDeg, 84.4) {
			t.Errorf("CourseDeg = %v, want 84.4", v.CourseDeg)
		}
		if v.Date != "280826" {
			t.Errorf("Date = %q, want 280826", v.Date)
		}
		if !near(v.MagVarDeg, -3.1) {
			t.Errorf("MagVarDeg = %v, want -3.1 (west is negative)", v.MagVarDeg)
		}
	})

	t.Run("course omitted at low speed", func(t *testing.T) {
		// With no computable course the receiver drops the field, which
		// shifts the date into the course slot.
		v, ok := decodeRMC(nmeaLine("GPRMC,123519.00,A,5130.0000,N,00007.0000,W,0.1,280826,,,,A"))
		if !ok {
			t.Fatal("decodeRMC reported no fix")
		}
		if v.CourseDeg != nil {
			t.Errorf("CourseDeg = %v, want nil", *v.CourseDeg)
		}
		if v.Date != "280826" {
			t.Errorf("Date = %q, want 280826", v.Date)
		}
		if !near(v.SpeedKnots, 0.1) {
			t.Errorf("SpeedKnots = %v, want 0.1", v.SpeedKnots)
		}
	})

	t.Run("empty course field keeps the date", func(t *testing.T) {
		v, ok := decodeRMC(nmeaLine("GPRMC,123519.00,A,5130.0000,N,00007.0000,W,22.4,,280826,,,A"))
		if !ok {
			t.Fatal("decodeRMC reported no fix")
		}
		if v.CourseDeg != nil {
			t.Errorf("CourseDeg = %v, want nil", *v.CourseDeg)
		}
		if v.Date != "280826" {
			t.Errorf("Date = %q, want 280826", v.Date)
		}
	})

	t.Run("void status", func(t *testing.T) {
		if v, ok := decodeRMC(nmeaLine("GPRMC,123519.00,V,,,,,,,280826,,,N")); ok || v.SpeedKnots != 0 {
			t.Errorf("got %+v ok=%v, want zero value and no fix", v, ok)
		}
	})
}

func TestDecodeGSA(t *testing.T) {
	pdop, hdop, vdop, ok := decodeGSA(nmeaLine("GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1"))
	if !ok {
		t.Fatal("decodeGSA failed")
	}
	if !near(pdop, 2.5) || !near(hdop, 1.3) || !near(vdop, 2.1) {
		t.Errorf("DOPs = %v %v %v, want 2.5 1.3 2.1", pdop, hdop, vdop)
	}
	if _, _, _, ok := decodeGSA(nmeaLine("GPGSA,A,1,,,,,,,,,,,,,99.99,99.99,")); ok {
		t.Error("empty VDOP field decoded")
	}
}
