package observerip

import (
	"errors"
	"strings"
	"testing"
)

// testInfoPacket builds a probe reply with known values at every offset.
func testInfoPacket(version string) InfoPacket {
	p := make(InfoPacket, offsetVersion+len(version)+1+8)
	p[offsetFlags] = 0x40 | 0x01
	copy(p[offsetIPAddr:], []byte{192, 168, 1, 50})
	copy(p[offsetStaticIP:], []byte{10, 0, 0, 9})
	copy(p[offsetPortUnknown:], []byte{0x01, 0x02})
	copy(p[offsetPortA:], []byte{0x00, 0x50})
	copy(p[offsetPortB:], []byte{0x62, 0x22})
	copy(p[offsetListenPort:], []byte{0x1f, 0x90})
	copy(p[offsetNetmask:], []byte{255, 255, 255, 0})
	copy(p[offsetGateway:], []byte{192, 168, 1, 1})
	copy(p[offsetDNS:], []byte{8, 8, 4, 4})
	copy(p[offsetUpdateHost:], "rtupdate.wunderground.com\x00")
	copy(p[offsetIPUnknown:], []byte{172, 16, 0, 3})
	copy(p[offsetVersion:], version+"\x00")
	return p
}

func TestInfoPacketFields(t *testing.T) {
	p := testInfoPacket("wh2600USA_v2.2.0")

	ips := []struct {
		name string
		get  func() (string, error)
		want string
	}{
		{"current ip", p.IPAddr, "192.168.1.50"},
		{"static ip", p.StaticIPAddr, "10.0.0.9"},
		{"netmask", p.Netmask, "255.255.255.0"},
		{"gateway", p.Gateway, "192.168.1.1"},
		{"dns", p.DNS, "8.8.4.4"},
		{"unknown ip", p.IPAddrUnknown, "172.16.0.3"},
		{"update host", p.UpdateHost, "rtupdate.wunderground.com"},
		{"version", p.Version, "wh2600USA_v2.2.0"},
	}
	for _, tt := range ips {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.get()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	ports := []struct {
		name string
		get  func() (int, error)
		want int
	}{
		{"unknown port", p.PortUnknown, 0x0102},
		{"port a", p.PortA, 80},
		{"probe port", p.PortB, 25122},
		{"listen port", p.ListenPort, 8080},
	}
	for _, tt := range ports {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.get()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}

	dhcp, err := p.DHCP()
	if err != nil || !dhcp {
		t.Errorf("DHCP() = %v, %v; want true, nil", dhcp, err)
	}
	p2 := testInfoPacket("x")
	p2[offsetFlags] = 0x01
	if dhcp, _ := p2.DHCP(); dhcp {
		t.Error("DHCP() = true with flag bit clear")
	}
}

func TestInfoPacketTruncated(t *testing.T) {
	full := testInfoPacket("wh2600USA_v2.2.0")

	tests := []struct {
		name   string
		length int
		decode func(InfoPacket) error
	}{
		{"flags", offsetFlags, func(p InfoPacket) error { _, err := p.DHCP(); return err }},
		{"ip cut mid-address", offsetIPAddr + 3, func(p InfoPacket) error { _, err := p.IPAddr(); return err }},
		{"port cut mid-value", offsetListenPort + 1, func(p InfoPacket) error { _, err := p.ListenPort(); return err }},
		{"version missing", offsetVersion, func(p InfoPacket) error { _, err := p.Version(); return err }},
		{"version without terminator", offsetVersion + 4, func(p InfoPacket) error { _, err := p.Version(); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode(full[:tt.length])
			var spe *ShortPacketError
			if !errors.As(err, &spe) {
				t.Fatalf("got error %v, want *ShortPacketError", err)
			}
		})
	}
}

func TestInfoPacketDecode(t *testing.T) {
	info, err := testInfoPacket("wh2600USA_v2.2.0").Decode()
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if info.IPAddr != "192.168.1.50" || info.ProbePort != ProbePort || info.Version != "wh2600USA_v2.2.0" {
		t.Errorf("Decode() = %+v", info)
	}

	summary := info.Summary("")
	for _, want := range []string{
		"Network Initialization:  DHCP",
		"Hostname:                Unknown Hostname",
		"Firmware Version String: wh2600USA_v2.2.0",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() missing %q:\n%s", want, summary)
		}
	}

	if _, err := InfoPacket(make([]byte, 40)).Decode(); err == nil {
		t.Error("Decode() of a 40 byte packet succeeded")
	}
}

func TestInfoEncode(t *testing.T) {
	info, err := testInfoPacket(ProfileWH2600USA).Decode()
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	again, err := info.Encode().Decode()
	if err != nil {
		t.Fatalf("Decode(Encode()) error: %v", err)
	}
	if *again != *info {
		t.Errorf("Decode(Encode()) = %+v, want %+v", again, info)
	}

	long := *info
	long.UpdateHost = strings.Repeat("x", 60)
	got, err := long.Encode().UpdateHost()
	if err != nil || len(got) != maxUpdateHost {
		t.Errorf("long update host decoded to %d bytes (%v), want %d", len(got), err, maxUpdateHost)
	}
}
