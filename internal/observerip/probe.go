package observerip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

const (
	// ProbePort is the UDP port the base unit answers discovery requests on.
	ProbePort = 25122

	broadcastAddr = "255.255.255.255"
)

// ProbeSignature is the fixed discovery request payload.
var ProbeSignature = []byte("ASIXXISA\x00")

// Prober locates the base unit with the UDP discovery handshake.
type Prober struct {
	Policy RetryPolicy
	// Port overrides ProbePort; tests point it at a loopback responder.
	Port   int
	logger *zap.SugaredLogger
}

// NewProber creates a Prober using the given retry policy.
func NewProber(policy RetryPolicy, logger *zap.SugaredLogger) *Prober {
	return &Prober{
		Policy: policy,
		Port:   ProbePort,
		logger: logger,
	}
}

// Probe sends the discovery signature to host, or broadcasts it when host is
// empty, and returns the first reply of any size. Each attempt waits up to
// the policy's RetryWait for a reply. A host that does not resolve fails
// immediately with a *ResolveError; running out of attempts yields ErrProbeFailed.
func (p *Prober) Probe(ctx context.Context, host string) (InfoPacket, error) {
	target := host
	if target == "" {
		target = broadcastAddr
	}

	raddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(target, strconv.Itoa(p.Port)))
	if err != nil {
		return nil, &ResolveError{Host: target, Err: err}
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return nil, fmt.Errorf("failed to open probe socket: %w", err)
	}
	defer conn.Close()

	if host == "" {
		if err := enableBroadcast(conn); err != nil {
			return nil, err
		}
	}

	var reply InfoPacket
	buf := make([]byte, 1024)

	err = p.Policy.do(ctx, 0, func(attempt int) error {
		if _, err := conn.WriteToUDP(ProbeSignature, raddr); err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) {
				return backoff.Permanent(&ResolveError{Host: target, Err: err})
			}
			return err
		}

		if err := conn.SetReadDeadline(time.Now().Add(p.Policy.RetryWait)); err != nil {
			return err
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}

		reply = make(InfoPacket, n)
		copy(reply, buf[:n])
		return nil
	}, func(attempt int, err error) {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			p.logger.Infof("probe timeout %d of %d", attempt, p.Policy.tries())
			return
		}
		p.logger.Errorf("probe attempt %d of %d failed: %v", attempt, p.Policy.tries(), err)
	})

	if err != nil {
		var re *ResolveError
		if errors.As(err, &re) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %d tries: %v", ErrProbeFailed, p.Policy.tries(), err)
	}

	p.logger.Debugf("probe reply of %d bytes from %s", len(reply), target)
	return reply, nil
}
