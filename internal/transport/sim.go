package transport

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Sim is a simulated receiver for development without hardware. It emits a
// GGA/GSA/RMC/GLL burst per navigation epoch, driving in a circle around a
// fixed point, and acknowledges every configuration frame it is sent.
type Sim struct {
	mu      sync.Mutex
	pending []byte
	t       float64
}

// NewSim returns a simulated receiver with a fix already acquired.
func NewSim() *Sim { return &Sim{} }

func (s *Sim) Connect() error { return nil }
func (s *Sim) Close() error   { return nil }

func (s *Sim) Available() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		s.epoch()
	}
	return len(s.pending), nil
}

func (s *Sim) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Write acknowledges configuration frames, echoing class and id back the way
// the receiver does. Anything else is swallowed.
func (s *Sim) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(p) >= 4 && p[0] == 0xB5 && p[1] == 0x62 {
		s.pending = append(s.pending, ackFrame(p[2], p[3])...)
	}
	return len(p), nil
}

// ackFrame builds a complete ACK-ACK response for the given message.
func ackFrame(class, id byte) []byte {
	frame := []byte{0xB5, 0x62, 0x05, 0x01, 0x02, 0x00, class, id, 0, 0}
	var ckA, ckB byte
	for _, b := range frame[2 : len(frame)-2] {
		ckA += b
		ckB += ckA
	}
	frame[len(frame)-2] = ckA
	frame[len(frame)-1] = ckB
	return frame
}

// epoch appends one navigation epoch's sentence burst to pending.
func (s *Sim) epoch() {
	s.t += 0.1

	// Drive in a circle around central London.
	lat := 51.5 + 0.01*math.Sin(s.t*0.1)
	lon := -0.1166 + 0.01*math.Cos(s.t*0.1)
	course := math.Mod(90-s.t*0.1*180/math.Pi+360, 360)
	speed := 18 + 4*math.Sin(s.t*0.3) + rand.Float64()
	alt := 40 + 5*math.Sin(s.t*0.05)
	hdop := 0.8 + 0.3*rand.Float64()
	vdop := 1.2 + 0.4*rand.Float64()
	pdop := math.Sqrt(hdop*hdop + vdop*vdop)

	now := time.Now().UTC()
	clock := now.Format("150405") + ".00"
	date := now.Format("020106")

	latF, latH := nmeaCoord(lat, true)
	lonF, lonH := nmeaCoord(lon, false)

	s.pending = append(s.pending, sentence(fmt.Sprintf(
		"GPGGA,%s,%s,%s,%s,%s,1,08,%.1f,%.1f,M,45.4,M,,",
		clock, latF, latH, lonF, lonH, hdop, alt))...)
	s.pending = append(s.pending, sentence(fmt.Sprintf(
		"GPGSA,A,3,04,05,,09,12,,,24,,,,,%.1f,%.1f,%.1f",
		pdop, hdop, vdop))...)
	s.pending = append(s.pending, sentence(fmt.Sprintf(
		"GPRMC,%s,A,%s,%s,%s,%s,%.1f,%.1f,%s,0.3,W,A",
		clock, latF, latH, lonF, lonH, speed, course, date))...)
	s.pending = append(s.pending, sentence(fmt.Sprintf(
		"GPGLL,%s,%s,%s,%s,%s,A,A",
		latF, latH, lonF, lonH, clock))...)
}

// sentence wraps a body in the $...*hh framing with its checksum.
func sentence(body string) []byte {
	var ck byte
	for i := 0; i < len(body); i++ {
		ck ^= body[i]
	}
	return []byte(fmt.Sprintf("$%s*%02X\r\n", body, ck))
}

// nmeaCoord renders decimal degrees as the DDMM.MMMM field plus hemisphere.
func nmeaCoord(deg float64, latitude bool) (field, hemi string) {
	hemi = "N"
	if latitude && deg < 0 {
		hemi = "S"
	}
	if !latitude {
		hemi = "E"
		if deg < 0 {
			hemi = "W"
		}
	}
	abs := math.Abs(deg)
	d := int(abs)
	min := (abs - float64(d)) * 60
	if latitude {
		return fmt.Sprintf("%02d%07.4f", d, min), hemi
	}
	return fmt.Sprintf("%03d%07.4f", d, min), hemi
}
