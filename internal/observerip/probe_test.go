package observerip

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// udpResponder answers every probe with reply after ignoring the first skip requests.
func udpResponder(t *testing.T, reply []byte, skip int) (port int, requests <-chan []byte) {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	got := make(chan []byte, 16)
	go func() {
		buf := make([]byte, 64)
		for n := 0; ; n++ {
			size, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			got <- append([]byte(nil), buf[:size]...)
			if n < skip || reply == nil {
				continue
			}
			conn.WriteToUDP(reply, addr)
		}
	}()

	return conn.LocalAddr().(*net.UDPAddr).Port, got
}

func TestProbe(t *testing.T) {
	want := testInfoPacket("wh2600USA_v2.2.0")
	port, requests := udpResponder(t, want, 1)

	p := NewProber(RetryPolicy{MaxTries: 3, RetryWait: 200 * time.Millisecond}, zaptest.NewLogger(t).Sugar())
	p.Port = port

	got, err := p.Probe(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Probe() returned %d bytes, want the %d byte reply", len(got), len(want))
	}

	first := <-requests
	if !bytes.Equal(first, ProbeSignature) {
		t.Errorf("probe payload = %q, want %q", first, ProbeSignature)
	}
	if len(first) != 9 {
		t.Errorf("probe payload is %d bytes, want 9", len(first))
	}
}

func TestProbeExhausted(t *testing.T) {
	port, requests := udpResponder(t, nil, 0)

	p := NewProber(RetryPolicy{MaxTries: 2, RetryWait: 50 * time.Millisecond}, zaptest.NewLogger(t).Sugar())
	p.Port = port

	_, err := p.Probe(context.Background(), "127.0.0.1")
	if !errors.Is(err, ErrProbeFailed) {
		t.Fatalf("Probe() error = %v, want ErrProbeFailed", err)
	}
	if n := len(requests); n != 2 {
		t.Errorf("sent %d probes, want 2", n)
	}
}

func TestProbeBadHost(t *testing.T) {
	p := NewProber(RetryPolicy{MaxTries: 5, RetryWait: time.Second}, zaptest.NewLogger(t).Sugar())

	_, err := p.Probe(context.Background(), "no-such-observerip.invalid")

	var re *ResolveError
	if !errors.As(err, &re) {
		t.Fatalf("Probe() error = %v, want *ResolveError", err)
	}
}
