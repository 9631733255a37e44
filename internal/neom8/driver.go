package neom8

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Transport is the minimal serial capability the driver needs. Any byte
// transport that delivers the receiver's stream in FIFO order works: a real
// UART, a socket, or a simulated receiver. None of the methods may block
// indefinitely; a Read with nothing pending returns 0.
type Transport interface {
	// Available returns the number of bytes that can be read immediately.
	Available() (int, error)
	// Read fills p with up to len(p) pending bytes.
	Read(p []byte) (int, error)
	// Write sends p to the receiver, returning the bytes actually written.
	Write(p []byte) (int, error)
}

// Config tunes the driver. Zero fields take the defaults below.
type Config struct {
	// AcquireTimeout bounds one sentence-acquisition cycle.
	AcquireTimeout time.Duration
	// AckTimeout bounds the wait for a command acknowledgement.
	AckTimeout time.Duration
	// HorizontalNoiseM is the assumed 1σ receiver noise floor in meters;
	// HDOP scales it into the horizontal error estimate. The NEO-M8
	// datasheet CEP is ~2.5 m.
	HorizontalNoiseM float64
	// VerticalNoiseM is the vertical equivalent, scaled by VDOP. Vertical
	// error on this receiver runs about twice the horizontal.
	VerticalNoiseM float64
}

const (
	defaultAcquireTimeout = time.Second
	defaultAckTimeout     = time.Second

	// Calibration choices, not protocol constants: override via Config if
	// the antenna or environment warrants it.
	defaultHorizontalNoiseM = 2.5
	defaultVerticalNoiseM   = 5.0

	// One acquisition cycle reads this many sentences (valid or rejected)
	// so a full GGA/GLL/GSA/RMC burst is captured in one pass.
	sentencesPerCycle = 5
)

// Driver decodes the NEO-M8's NMEA stream and drives its UBX configuration
// protocol over a single Transport. All methods may block up to the
// configured timeout while polling the transport; they are serialized by an
// internal mutex, so one instance is safe to share.
type Driver struct {
	mu        sync.Mutex
	port      Transport
	cfg       Config
	win       *window
	sentences map[string]string // latest checksum-valid sentence per type
	scratch   [256]byte
}

// New returns a Driver reading from and writing to port.
func New(port Transport, cfg Config) *Driver {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = defaultAcquireTimeout
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	if cfg.HorizontalNoiseM <= 0 {
		cfg.HorizontalNoiseM = defaultHorizontalNoiseM
	}
	if cfg.VerticalNoiseM <= 0 {
		cfg.VerticalNoiseM = defaultVerticalNoiseM
	}
	return &Driver{
		port:      port,
		cfg:       cfg,
		win:       newWindow(bufferCapacity),
		sentences: make(map[string]string),
	}
}

// fill moves whatever the transport has pending into the window.
func (d *Driver) fill() error {
	avail, err := d.port.Available()
	if err != nil {
		return fmt.Errorf("neom8: transport: %w", err)
	}
	if avail == 0 {
		return nil
	}
	n, err := d.port.Read(d.scratch[:])
	if err != nil {
		return fmt.Errorf("neom8: transport read: %w", err)
	}
	d.win.feed(d.scratch[:n])
	return nil
}

// refresh runs one acquisition cycle: feed the window from the transport and
// extract sentences until sentencesPerCycle have been seen or the deadline
// passes. Checksum rejects count toward the cycle so a noisy line cannot
// stall it. Returns false on deadline, which callers degrade to "no fix".
func (d *Driver) refresh() (bool, error) {
	deadline := time.Now().Add(d.cfg.AcquireTimeout)
	seen := 0
	for seen < sentencesPerCycle {
		if time.Now().After(deadline) {
			return false, nil
		}
		if err := d.fill(); err != nil {
			return false, err
		}
		view, consume, err := nextSentence(d.win.bytes())
		switch err {
		case errIncomplete:
			continue
		case errChecksum:
			d.win.consume(consume)
			seen++
			continue
		}
		// Copy out before consuming: the view aliases the window.
		s := string(view)
		d.win.consume(consume)
		if t := sentenceType(s); t != "" {
			d.sentences[t] = s
		}
		seen++
	}
	return true, nil
}

// position decodes the cached sentences into a horizontal fix. GGA is
// preferred; older firmware bursts carry GLL instead, which has no DOP, so
// the error estimate then comes from the latest GSA.
func (d *Driver) position() (Position, bool) {
	if s, ok := d.sentences["GGA"]; ok {
		return decodeGGAPosition(s, d.cfg.HorizontalNoiseM)
	}
	s, ok := d.sentences["GLL"]
	if !ok {
		return Position{}, false
	}
	p, ok := decodeGLLPosition(s)
	if !ok {
		return Position{}, false
	}
	if gsa, ok := d.sentences["GSA"]; ok {
		if _, hdop, _, ok := decodeGSA(gsa); ok {
			p.ErrorM = hdop * d.cfg.HorizontalNoiseM
		}
	}
	return p, true
}

func (d *Driver) velocity() (Velocity, bool) {
	s, ok := d.sentences["RMC"]
	if !ok {
		return Velocity{}, false
	}
	return decodeRMC(s)
}

func (d *Driver) altitude() (Altitude, bool) {
	gga, ok := d.sentences["GGA"]
	if !ok {
		return Altitude{}, false
	}
	altM, geoSepM, clock, ok := decodeGGAAltitude(gga)
	if !ok {
		return Altitude{}, false
	}
	gsa, ok := d.sentences["GSA"]
	if !ok {
		return Altitude{}, false
	}
	_, _, vdop, ok := decodeGSA(gsa)
	if !ok {
		return Altitude{}, false
	}
	return Altitude{
		AltitudeM: altM,
		GeoidSepM: geoSepM,
		ErrorM:    vdop * d.cfg.VerticalNoiseM,
		Time:      clock,
	}, true
}

// Position acquires fresh sentences and returns the current horizontal fix.
// The zero value (no error) means no fix was available within the timeout.
func (d *Driver) Position() (Position, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ok, err := d.refresh()
	if err != nil || !ok {
		return Position{}, err
	}
	p, _ := d.position()
	return p, nil
}

// Velocity acquires fresh sentences and returns speed and course over
// ground. The zero value (no error) means no fix.
func (d *Driver) Velocity() (Velocity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ok, err := d.refresh()
	if err != nil || !ok {
		return Velocity{}, err
	}
	v, _ := d.velocity()
	return v, nil
}

// Altitude acquires fresh sentences and returns the vertical fix.
// The zero value (no error) means no fix.
func (d *Driver) Altitude() (Altitude, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ok, err := d.refresh()
	if err != nil || !ok {
		return Altitude{}, err
	}
	a, _ := d.altitude()
	return a, nil
}

// Fix acquires one sentence cycle and decodes position, velocity and
// altitude from that same cycle, so the combined result cannot straddle two
// navigation epochs. If any component has no fix the whole result is the
// no-fix zero value; fields are never mixed. The combined error is the 2σ
// 3D bound 2·sqrt(he²+ve²) over the two 1σ components.
func (d *Driver) Fix() (Fix, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ok, err := d.refresh()
	if err != nil || !ok {
		return Fix{}, err
	}
	p, pok := d.position()
	v, vok := d.velocity()
	a, aok := d.altitude()
	if !pok || !vok || !aok {
		return Fix{}, nil
	}
	clock := p.Time
	if clock == "" {
		clock = v.Time
	}
	if clock == "" {
		clock = a.Time
	}
	return Fix{
		Valid:      true,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		AltitudeM:  a.AltitudeM,
		GeoidSepM:  a.GeoidSepM,
		ErrorM:     2 * math.Sqrt(p.ErrorM*p.ErrorM+a.ErrorM*a.ErrorM),
		SpeedKnots: v.SpeedKnots,
		CourseDeg:  v.CourseDeg,
		MagVarDeg:  v.MagVarDeg,
		Date:       v.Date,
		Time:       clock,
	}, nil
}

// sendAwaitAck writes pkt and polls the stream for the receiver's ACK or
// NACK until the ack timeout. A short write is a fatal transport error; a
// missing acknowledgement is the AckTimeout result, not an error.
func (d *Driver) sendAwaitAck(pkt []byte) (AckResult, error) {
	n, err := d.port.Write(pkt)
	if err != nil {
		return AckTimeout, fmt.Errorf("neom8: transport write: %w", err)
	}
	if n < len(pkt) {
		return AckTimeout, fmt.Errorf("neom8: short write: %d of %d bytes", n, len(pkt))
	}
	deadline := time.Now().Add(d.cfg.AckTimeout)
	for !time.Now().After(deadline) {
		if err := d.fill(); err != nil {
			return AckTimeout, err
		}
		if res, consume, found := findAck(d.win.bytes()); found {
			d.win.consume(consume)
			return res, nil
		}
	}
	return AckTimeout, nil
}

// SetRate changes the receiver's navigation output rate. rateHz must be in
// (0, 10] and coarse enough that the millisecond interval fits the
// receiver's 8-bit rate field (about 3.9 Hz and up); anything else is a
// caller error, surfaced immediately.
func (d *Driver) SetRate(rateHz float64, measurementsPerFix uint8) (AckResult, error) {
	if rateHz <= 0 || rateHz > 10 {
		return AckTimeout, fmt.Errorf("neom8: output rate %g Hz outside (0, 10]", rateHz)
	}
	interval := int(1000 / rateHz)
	if interval > 0xFF {
		return AckTimeout, fmt.Errorf("neom8: interval %d ms exceeds the receiver's 8-bit rate field", interval)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendAwaitAck(rateConfigPacket(byte(interval), measurementsPerFix))
}

// SetBaud reconfigures UART1 to the given baud rate. On an ACK the receiver
// switches immediately, so the caller must reopen its side of the port at
// the new rate before further traffic.
func (d *Driver) SetBaud(baud uint32) (AckResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendAwaitAck(portConfigPacket(baud))
}

// Setup applies the fixed configuration sequence and saves it to flash.
// Each packet must be acknowledged before the next is sent; the first NACK
// or timeout aborts the sequence and is returned as the overall result. On
// success a hardware reset is issued and its acknowledgement awaited, so the
// saved settings take effect.
func (d *Driver) Setup() (AckResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, pkt := range setupPackets {
		res, err := d.sendAwaitAck(pkt)
		if err != nil {
			return res, err
		}
		if res != Ack {
			return res, fmt.Errorf("neom8: setup step %d of %d: %s", i+1, len(setupPackets), res)
		}
	}
	return d.sendAwaitAck(hardResetPacket)
}

// Stop shuts the GNSS subsystem down softly, e.g. for power saving.
func (d *Driver) Stop() (AckResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendAwaitAck(gnssStopPacket)
}

// Start brings the GNSS subsystem back up after a Stop.
func (d *Driver) Start() (AckResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendAwaitAck(gnssStartPacket)
}
