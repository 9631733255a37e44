package neom8

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestUbxChecksum(t *testing.T) {
	// Known-good frame body for a 250 ms CFG-RATE write.
	ckA, ckB := ubxChecksum([]byte{0x06, 0x08, 0x06, 0x00, 0xFA, 0x01, 0x00, 0x00})
	if ckA != 0x0F || ckB != 0x77 {
		t.Fatalf("checksum = %02X %02X, want 0F 77", ckA, ckB)
	}
}

func TestRateConfigPacket(t *testing.T) {
	got := rateConfigPacket(0xFA, 0x01)
	want := []byte{0xB5, 0x62, 0x06, 0x08, 0x06, 0x00, 0xFA, 0x01, 0x00, 0x00, 0x0F, 0x77}
	if !bytes.Equal(got, want) {
		t.Fatalf("packet = % X, want % X", got, want)
	}
}

func TestPortConfigPacket(t *testing.T) {
	pkt := portConfigPacket(115200)
	if len(pkt) != 28 {
		t.Fatalf("len = %d, want 28", len(pkt))
	}
	if pkt[2] != ubxClassCfg || pkt[3] != ubxIDCfgPrt {
		t.Fatalf("class/id = %02X %02X, want 06 00", pkt[2], pkt[3])
	}
	if got := binary.LittleEndian.Uint16(pkt[4:6]); got != 20 {
		t.Fatalf("declared length = %d, want 20", got)
	}
	if got := binary.LittleEndian.Uint32(pkt[10:14]); got != 0x000008D0 {
		t.Fatalf("UART mode = %#08x, want 0x000008d0", got)
	}
	if got := binary.LittleEndian.Uint32(pkt[14:18]); got != 115200 {
		t.Fatalf("baud = %d, want 115200", got)
	}
}

// Every packet in the fixed setup sequence must carry a valid frame
// checksum, the right declared length, and the CFG class.
func TestSetupPacketsWellFormed(t *testing.T) {
	wantIDs := []byte{ubxIDCfgMsg, ubxIDCfgNav5, ubxIDCfgNavX5, ubxIDCfgGnss, ubxIDCfgItfm, ubxIDCfgCfg}
	if len(setupPackets) != len(wantIDs) {
		t.Fatalf("setup sequence has %d packets, want %d", len(setupPackets), len(wantIDs))
	}
	for i, pkt := range setupPackets {
		if pkt[0] != ubxSync1 || pkt[1] != ubxSync2 {
			t.Errorf("packet %d: bad sync % X", i, pkt[:2])
		}
		if pkt[2] != ubxClassCfg || pkt[3] != wantIDs[i] {
			t.Errorf("packet %d: class/id = %02X %02X, want 06 %02X", i, pkt[2], pkt[3], wantIDs[i])
		}
		if got := int(binary.LittleEndian.Uint16(pkt[4:6])); got != len(pkt)-8 {
			t.Errorf("packet %d: declared length %d, payload length %d", i, got, len(pkt)-8)
		}
		ckA, ckB := ubxChecksum(pkt[2 : len(pkt)-2])
		if ckA != pkt[len(pkt)-2] || ckB != pkt[len(pkt)-1] {
			t.Errorf("packet %d: checksum %02X %02X, frame carries %02X %02X",
				i, ckA, ckB, pkt[len(pkt)-2], pkt[len(pkt)-1])
		}
	}
}

func TestResetPackets(t *testing.T) {
	wantStop := []byte{0xB5, 0x62, 0x06, 0x04, 0x04, 0x00, 0x00, 0x00, 0x08, 0x00, 0x16, 0x74}
	wantStart := []byte{0xB5, 0x62, 0x06, 0x04, 0x04, 0x00, 0x00, 0x00, 0x09, 0x00, 0x17, 0x76}
	if !bytes.Equal(gnssStopPacket, wantStop) {
		t.Errorf("stop packet = % X, want % X", gnssStopPacket, wantStop)
	}
	if !bytes.Equal(gnssStartPacket, wantStart) {
		t.Errorf("start packet = % X, want % X", gnssStartPacket, wantStart)
	}
}

func TestFindAck(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		res     AckResult
		consume int
		found   bool
	}{
		{
			name:    "ack amid sentence traffic",
			buf:     append([]byte("$GPGGA,..*00\r\n"), 0xB5, 0x62, 0x05, 0x01, 0x02, 0x00, 0x06, 0x08, 0x16, 0x3F),
			res:     Ack,
			consume: 18,
			found:   true,
		},
		{
			name:    "nack",
			buf:     []byte{0xB5, 0x62, 0x05, 0x00, 0x02, 0x00, 0x06, 0x08, 0x15, 0x3A},
			res:     Nack,
			consume: 4,
			found:   true,
		},
		{
			name:  "false match keeps scanning",
			buf:   []byte{0xB5, 0x62, 0x05, 0x07, 0xB5, 0x62},
			found: false,
		},
		{
			name:  "empty",
			buf:   nil,
			found: false,
		},
	}
	for _, tt := range tests {
		res, consume, found := findAck(tt.buf)
		if found != tt.found {
			t.Errorf("%s: found = %v, want %v", tt.name, found, tt.found)
			continue
		}
		if found && (res != tt.res || consume != tt.consume) {
			t.Errorf("%s: res=%v consume=%d, want res=%v consume=%d", tt.name, res, consume, tt.res, tt.consume)
		}
	}
}
