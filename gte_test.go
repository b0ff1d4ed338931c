// gte_test.go - COP2 geometry engine arithmetic

package main

import "testing"

func TestGteAvsz3WeightedAverage(t *testing.T) {
	g := NewGte()
	g.WriteData(17, 100) // zFifo[1]
	g.WriteData(18, 200) // zFifo[2]
	g.WriteData(19, 300) // zFifo[3]
	g.WriteControl(29, 4096) // zsf3 = 1.0 in 4.12 fixed point

	g.Execute(gteAVSZ3)

	if got := g.ReadData(7); got != 600 {
		t.Fatalf("OTZ = %d, want 600", got)
	}
	if flags := g.ReadControl(31); flags != 0 {
		t.Fatalf("FLAGS = %#08x, want 0 (no saturation)", flags)
	}
}

func TestGteAvsz3SaturatesAndSetsStickyErrorBit(t *testing.T) {
	g := NewGte()
	g.WriteData(17, 65535)
	g.WriteData(18, 1)
	g.WriteData(19, 0)
	g.WriteControl(29, 4096)

	g.Execute(gteAVSZ3)

	if got := g.ReadData(7); got != 0xFFFF {
		t.Fatalf("OTZ = %#04x, want 0xFFFF (saturated)", got)
	}
	flags := g.ReadControl(31)
	if flags&flagSZ3OtzSat == 0 {
		t.Fatalf("FLAGS = %#08x, want SZ3/OTZ saturation bit set", flags)
	}
	if flags&flagError == 0 {
		t.Fatalf("FLAGS = %#08x, want the sticky error bit set alongside it", flags)
	}
}

func TestGteControlRegisterMaskTruncatesToHalfword(t *testing.T) {
	g := NewGte()
	g.WriteControl(4, 0xFFFF_1234) // rotation[2][2] is a 16-bit register

	if got := g.ReadControl(4); got != 0x1234 {
		t.Fatalf("control register 4 = %#08x, want 0x1234 (high half masked off)", got)
	}
}

func TestGteDataRegisterRoundTrip(t *testing.T) {
	g := NewGte()
	g.WriteData(9, 0x7FFF) // IR1
	if got := g.ReadData(9); got != 0x7FFF {
		t.Fatalf("IR1 round trip: got %#04x, want 0x7FFF", got)
	}
}

// TestGteRtpsPerspectiveTransform drives the worked RTPS example: identity
// rotation, T=0, V0=(100,200,300), H=400, OFX=OFY=DQA=DQB=0. SZ3 comes out
// of the matrix multiply as the raw Z (300), h_div_sz = H<<16/SZ3 via the
// UNR table (~87381), and SX/SY follow from IR1/IR2 scaled by h_div_sz.
func TestGteRtpsPerspectiveTransform(t *testing.T) {
	g := NewGte()

	// Identity rotation matrix, 4.12 fixed point (4096 = 1.0).
	g.WriteControl(0, 4096)      // rotation[0][0]=4096, rotation[0][1]=0
	g.WriteControl(1, 0)         // rotation[0][2]=0,    rotation[1][0]=0
	g.WriteControl(2, 4096)      // rotation[1][1]=4096, rotation[1][2]=0
	g.WriteControl(3, 0)         // rotation[2][0]=0,    rotation[2][1]=0
	g.WriteControl(4, 4096)      // rotation[2][2]=4096
	// Translation vector T stays zero (default).

	g.WriteData(0, uint32(uint16(100))|uint32(uint16(200))<<16) // V0 = (100, 200, ...)
	g.WriteData(1, 300)                                         // V0.z = 300

	g.WriteControl(26, 400) // H

	g.Execute(0x80000 | gteRTPS) // sf=1 (bit 19), no lm clamp

	if sz3 := g.ReadData(19); sz3 != 300 {
		t.Fatalf("SZ3 = %d, want 300 (identity transform passes V0.z through)", sz3)
	}

	xy := g.ReadData(14)
	sx := int16(xy)
	sy := int16(xy >> 16)

	if sx < 131 || sx > 135 {
		t.Fatalf("SX = %d, want ~133", sx)
	}
	if sy < 264 || sy > 268 {
		t.Fatalf("SY = %d, want ~266", sy)
	}
}
