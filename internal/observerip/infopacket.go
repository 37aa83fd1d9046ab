package observerip

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// Offsets into the probe reply. The layout is the vendor's and carries no
// checksum or version marker.
const (
	offsetFlags       = 0x20
	offsetIPAddr      = 0x22
	offsetStaticIP    = 0x26
	offsetPortUnknown = 0x2a
	offsetPortA       = 0x2c
	offsetPortB       = 0x2e
	offsetListenPort  = 0x34
	offsetNetmask     = 0x36
	offsetGateway     = 0x3a
	offsetDNS         = 0x3e
	offsetUpdateHost  = 0x4b
	offsetIPUnknown   = 0x6f
	offsetVersion     = 0x73

	dhcpFlag = 0x40

	// MinInfoPacketLen is the shortest reply that reaches the firmware string.
	MinInfoPacketLen = 116
)

// InfoPacket is one raw reply to a discovery probe. It is never modified
// after it is received; a re-probe produces a new InfoPacket.
type InfoPacket []byte

func (p InfoPacket) need(offset, n int) error {
	if offset < 0 || offset+n > len(p) {
		return &ShortPacketError{Offset: offset, Need: n, Len: len(p)}
	}
	return nil
}

// IP decodes the dotted-quad address stored at offset.
func (p InfoPacket) IP(offset int) (string, error) {
	if err := p.need(offset, 4); err != nil {
		return "", err
	}
	return net.IPv4(p[offset], p[offset+1], p[offset+2], p[offset+3]).String(), nil
}

// Port decodes the big-endian 16-bit value stored at offset.
func (p InfoPacket) Port(offset int) (int, error) {
	if err := p.need(offset, 2); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(p[offset : offset+2])), nil
}

// CString returns the bytes from offset up to the first NUL. A string that
// runs off the end of the packet is an error, not a truncated value.
func (p InfoPacket) CString(offset int) (string, error) {
	if err := p.need(offset, 1); err != nil {
		return "", err
	}
	end := bytes.IndexByte(p[offset:], 0)
	if end < 0 {
		return "", &ShortPacketError{Offset: offset, Need: len(p) - offset + 1, Len: len(p)}
	}
	return string(p[offset : offset+end]), nil
}

// DHCP reports whether the device obtained its address via DHCP.
func (p InfoPacket) DHCP() (bool, error) {
	if err := p.need(offsetFlags, 1); err != nil {
		return false, err
	}
	return p[offsetFlags]&dhcpFlag != 0, nil
}

func (p InfoPacket) IPAddr() (string, error)        { return p.IP(offsetIPAddr) }
func (p InfoPacket) StaticIPAddr() (string, error)  { return p.IP(offsetStaticIP) }
func (p InfoPacket) PortUnknown() (int, error)      { return p.Port(offsetPortUnknown) }
func (p InfoPacket) PortA() (int, error)            { return p.Port(offsetPortA) }
func (p InfoPacket) PortB() (int, error)            { return p.Port(offsetPortB) }
func (p InfoPacket) ListenPort() (int, error)       { return p.Port(offsetListenPort) }
func (p InfoPacket) Netmask() (string, error)       { return p.IP(offsetNetmask) }
func (p InfoPacket) Gateway() (string, error)       { return p.IP(offsetGateway) }
func (p InfoPacket) DNS() (string, error)           { return p.IP(offsetDNS) }
func (p InfoPacket) UpdateHost() (string, error)    { return p.CString(offsetUpdateHost) }
func (p InfoPacket) IPAddrUnknown() (string, error) { return p.IP(offsetIPUnknown) }
func (p InfoPacket) Version() (string, error)       { return p.CString(offsetVersion) }

// Info is the decoded form of an InfoPacket.
type Info struct {
	DHCP          bool   `json:"dhcp"`
	IPAddr        string `json:"ip_addr"`
	StaticIPAddr  string `json:"static_ip_addr"`
	PortUnknown   int    `json:"port_unknown"`
	PortA         int    `json:"port_a"`
	ProbePort     int    `json:"probe_port"`
	ListenPort    int    `json:"listen_port"`
	Netmask       string `json:"netmask"`
	Gateway       string `json:"gateway"`
	DNS           string `json:"dns"`
	UpdateHost    string `json:"update_host"`
	IPAddrUnknown string `json:"ip_addr_unknown"`
	Version       string `json:"firmware_version"`
}

// Decode decodes every documented field, failing on the first field that
// lies outside the packet.
func (p InfoPacket) Decode() (*Info, error) {
	var (
		info Info
		err  error
	)
	if info.DHCP, err = p.DHCP(); err != nil {
		return nil, err
	}

	ips := []struct {
		dst    *string
		offset int
	}{
		{&info.IPAddr, offsetIPAddr},
		{&info.StaticIPAddr, offsetStaticIP},
		{&info.Netmask, offsetNetmask},
		{&info.Gateway, offsetGateway},
		{&info.DNS, offsetDNS},
		{&info.IPAddrUnknown, offsetIPUnknown},
	}
	for _, f := range ips {
		if *f.dst, err = p.IP(f.offset); err != nil {
			return nil, err
		}
	}

	ports := []struct {
		dst    *int
		offset int
	}{
		{&info.PortUnknown, offsetPortUnknown},
		{&info.PortA, offsetPortA},
		{&info.ProbePort, offsetPortB},
		{&info.ListenPort, offsetListenPort},
	}
	for _, f := range ports {
		if *f.dst, err = p.Port(f.offset); err != nil {
			return nil, err
		}
	}

	if info.UpdateHost, err = p.UpdateHost(); err != nil {
		return nil, err
	}
	if info.Version, err = p.Version(); err != nil {
		return nil, err
	}
	return &info, nil
}

// Summary renders the decoded fields in the layout printed by the scan command.
func (i *Info) Summary(hostname string) string {
	mode := "STATIC"
	if i.DHCP {
		mode = "DHCP"
	}
	if hostname == "" {
		hostname = "Unknown Hostname"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Network Initialization:  %s\n", mode)
	fmt.Fprintf(&b, "Hostname:                %s\n", hostname)
	fmt.Fprintf(&b, "Current IP:              %s\n", i.IPAddr)
	fmt.Fprintf(&b, "Static IP:               %s\n", i.StaticIPAddr)
	fmt.Fprintf(&b, "Unknown Port:            %d\n", i.PortUnknown)
	fmt.Fprintf(&b, "Unknown Port:            %d\n", i.PortA)
	fmt.Fprintf(&b, "Probe Port:              %d\n", i.ProbePort)
	fmt.Fprintf(&b, "Server Listening Port:   %d\n", i.ListenPort)
	fmt.Fprintf(&b, "Netmask:                 %s\n", i.Netmask)
	fmt.Fprintf(&b, "Gateway:                 %s\n", i.Gateway)
	fmt.Fprintf(&b, "DNS Server:              %s\n", i.DNS)
	fmt.Fprintf(&b, "Update Host:             %s\n", i.UpdateHost)
	fmt.Fprintf(&b, "Unknown IP:              %s\n", i.IPAddrUnknown)
	fmt.Fprintf(&b, "Firmware Version String: %s\n", i.Version)
	return b.String()
}

// maxUpdateHost is the room between the update host and the next field,
// less the terminating NUL.
const maxUpdateHost = offsetIPUnknown - offsetUpdateHost - 1

// Encode lays i out as a probe reply. Addresses that are not IPv4 encode as
// 0.0.0.0 and an over-long update host is truncated.
func (i *Info) Encode() InfoPacket {
	p := make(InfoPacket, offsetVersion+len(i.Version)+1)
	if i.DHCP {
		p[offsetFlags] = dhcpFlag
	}

	for offset, s := range map[int]string{
		offsetIPAddr:    i.IPAddr,
		offsetStaticIP:  i.StaticIPAddr,
		offsetNetmask:   i.Netmask,
		offsetGateway:   i.Gateway,
		offsetDNS:       i.DNS,
		offsetIPUnknown: i.IPAddrUnknown,
	} {
		if ip := net.ParseIP(s).To4(); ip != nil {
			copy(p[offset:], ip)
		}
	}

	binary.BigEndian.PutUint16(p[offsetPortUnknown:], uint16(i.PortUnknown))
	binary.BigEndian.PutUint16(p[offsetPortA:], uint16(i.PortA))
	binary.BigEndian.PutUint16(p[offsetPortB:], uint16(i.ProbePort))
	binary.BigEndian.PutUint16(p[offsetListenPort:], uint16(i.ListenPort))

	host := i.UpdateHost
	if len(host) > maxUpdateHost {
		host = host[:maxUpdateHost]
	}
	copy(p[offsetUpdateHost:], host)
	copy(p[offsetVersion:], i.Version)
	return p
}
