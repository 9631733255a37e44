package neom8

import "encoding/binary"

// UBX framing and the CFG-class message IDs this driver sends.
const (
	ubxSync1 byte = 0xB5
	ubxSync2 byte = 0x62

	ubxClassAck byte = 0x05
	ubxClassCfg byte = 0x06

	ubxIDNack byte = 0x00
	ubxIDAck  byte = 0x01

	ubxIDCfgPrt   byte = 0x00
	ubxIDCfgMsg   byte = 0x01
	ubxIDCfgRst   byte = 0x04
	ubxIDCfgRate  byte = 0x08
	ubxIDCfgCfg   byte = 0x09
	ubxIDCfgNavX5 byte = 0x23
	ubxIDCfgNav5  byte = 0x24
	ubxIDCfgItfm  byte = 0x39
	ubxIDCfgGnss  byte = 0x3E
)

// ubxChecksum runs the 8-bit Fletcher sums over body, which must span class
// through the end of the payload.
func ubxChecksum(body []byte) (ckA, ckB byte) {
	for _, b := range body {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

// ubxPacket builds a complete frame: sync, class, id, little-endian length,
// payload, checksum.
func ubxPacket(class, id byte, payload []byte) []byte {
	pkt := make([]byte, 8+len(payload))
	pkt[0] = ubxSync1
	pkt[1] = ubxSync2
	pkt[2] = class
	pkt[3] = id
	binary.LittleEndian.PutUint16(pkt[4:6], uint16(len(payload)))
	copy(pkt[6:], payload)
	ckA, ckB := ubxChecksum(pkt[2 : 6+len(payload)])
	pkt[6+len(payload)] = ckA
	pkt[7+len(payload)] = ckB
	return pkt
}

// rateConfigPacket builds a CFG-RATE packet. The NEO-M8's documented payload
// is three u16 fields, but this receiver line accepts (and the saved
// configuration expects) the single-byte interval with the declared length
// still 6 — kept bit-exact rather than corrected.
func rateConfigPacket(intervalMs, measurementsPerFix byte) []byte {
	body := []byte{ubxClassCfg, ubxIDCfgRate, 0x06, 0x00, intervalMs, measurementsPerFix, 0x00, 0x00}
	ckA, ckB := ubxChecksum(body)
	pkt := append([]byte{ubxSync1, ubxSync2}, body...)
	return append(pkt, ckA, ckB)
}

// portConfigPacket builds a CFG-PRT packet for UART1: 8N1, UBX+NMEA on both
// the input and output protocol masks, at the given baud rate.
func portConfigPacket(baud uint32) []byte {
	payload := make([]byte, 20)
	payload[0] = 0x00 // port ID: UART1
	binary.LittleEndian.PutUint32(payload[4:8], 0x000008D0)
	binary.LittleEndian.PutUint32(payload[8:12], baud)
	binary.LittleEndian.PutUint16(payload[12:14], 0x0003)
	binary.LittleEndian.PutUint16(payload[14:16], 0x0003)
	return ubxPacket(ubxClassCfg, ubxIDCfgPrt, payload)
}

// The fixed configuration sequence applied by Setup, in send order. Each
// packet must be acknowledged before the next is sent.
var setupPackets = [][]byte{
	// CFG-MSG: disable the VTG sentence (its data duplicates RMC).
	ubxPacket(ubxClassCfg, ubxIDCfgMsg, []byte{0xF0, 0x05, 0x00}),
	// CFG-NAV5: airborne <4g dynamics, 3D fixes only, 20° elevation mask,
	// static hold below 0.2 m/s within 1 m, automatic UTC standard.
	ubxPacket(ubxClassCfg, ubxIDCfgNav5, []byte{
		0x47, 0x08, // parameter mask
		0x08,                   // dynamics model: airborne <4g
		0x02,                   // fix mode: 3D only
		0x00, 0x00, 0x00, 0x00, // fixed altitude
		0x00, 0x00, 0x00, 0x00, // fixed altitude variance
		0x14,       // minimum elevation, degrees
		0x00,       // reserved
		0x00, 0x00, // position DOP mask
		0x00, 0x00, // time DOP mask
		0x00, 0x00, // position accuracy mask
		0x00, 0x00, // time accuracy mask
		0x14,       // static hold threshold, cm/s
		0x00,       // DGNSS timeout
		0x00,       // C/N0 threshold satellite count
		0x00,       // C/N0 threshold
		0x00, 0x01, // reserved, static hold max distance
		0x00,                                     // UTC standard: automatic
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // reserved
	}),
	// CFG-NAVX5: min 4 / max 60 satellites, initial fix must be 3D,
	// AssistNow Autonomous on with a 20 m maximum orbit error.
	ubxPacket(ubxClassCfg, ubxIDCfgNavX5, []byte{
		0x00, 0x00, // version
		0x44, 0x40, // parameter mask 1
		0x00, 0x00, 0x00, 0x00, // parameter mask 2
		0x00, 0x00, // reserved
		0x04,       // minimum satellites
		0x3C,       // maximum satellites
		0x00, 0x00, // reserved
		0x01,       // initial fix must be 3D
		0x00, 0x00, // reserved
		0x00, 0x00, // wknRollover
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // reserved
		0x00,       // usePPP
		0x01,       // AssistNow Autonomous enabled
		0x00, 0x00, // reserved
		0x14, 0x00, // AssistNow Autonomous max orbit error, meters
		0x00, 0x00, 0x00, 0x00, // reserved
		0x00, 0x00, 0x00, 0x00, // reserved
		0x00, // reserved
	}),
	// CFG-GNSS: enable Galileo alongside the default GPS/GLONASS/SBAS.
	ubxPacket(ubxClassCfg, ubxIDCfgGnss, []byte{
		0x00, 0x00, 0xFF, 0x01, // version, channels, one config block
		0x02, 0x02, 0x08, 0x00, // Galileo, 2-8 channels
		0x01, 0x00, 0x10, 0x00, // enabled, E1 signals
	}),
	// CFG-ITFM: interference detection on, broadband threshold 7 dB,
	// continuous wave threshold 20 dB, active antenna.
	ubxPacket(ubxClassCfg, ubxIDCfgItfm, []byte{
		0xAD, 0x62, 0xAD, 0x47,
		0x00, 0x00, 0x23, 0x1E,
	}),
	// CFG-CFG: save the configured settings to flash. NEO-M8M/M8Q have no
	// flash; change the device mask byte 0x02 to 0x01 for battery-backed RAM.
	ubxPacket(ubxClassCfg, ubxIDCfgCfg, []byte{
		0x00, 0x00, 0x00, 0x00, // clear mask
		0x00, 0x00, 0x00, 0x1A, // save mask
		0x00, 0x00, 0x00, 0x00, // load mask
		0x02, // device: flash
	}),
}

// CFG-RST variants. Start and stop are the GNSS soft start/stop commands;
// reset is the full hardware reset sent after a completed Setup so the saved
// configuration takes effect.
var (
	gnssStopPacket  = ubxPacket(ubxClassCfg, ubxIDCfgRst, []byte{0x00, 0x00, 0x08, 0x00})
	gnssStartPacket = ubxPacket(ubxClassCfg, ubxIDCfgRst, []byte{0x00, 0x00, 0x09, 0x00})
	hardResetPacket = ubxPacket(ubxClassCfg, ubxIDCfgRst, []byte{0x00, 0x00, 0x00, 0x00})
)

// findAck scans buf byte-by-byte for the ACK-class sync pattern
// 0xB5 0x62 0x05. The following byte resolves it: 0x01 is an ACK, 0x00 a
// NACK, anything else a false match and the scan continues. Returns the
// number of bytes to consume through the match.
func findAck(buf []byte) (res AckResult, consume int, found bool) {
	for i := 0; i+3 < len(buf); i++ {
		if buf[i] != ubxSync1 || buf[i+1] != ubxSync2 || buf[i+2] != ubxClassAck {
			continue
		}
		switch buf[i+3] {
		case ubxIDAck:
			return Ack, i + 4, true
		case ubxIDNack:
			return Nack, i + 4, true
		}
	}
	return AckTimeout, 0, false
}
