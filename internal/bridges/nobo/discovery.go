package nobo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Discovery constants.
const (
	// discoveryMagic starts every hub broadcast, followed by 9 serial digits.
	discoveryMagic = "__NOBOHUB__"

	// broadcastSerialDigits is how much of the serial the hub broadcasts.
	broadcastSerialDigits = 9

	// userSerialDigits is what the user reads off the hub's label.
	userSerialDigits = serialNumberLength - broadcastSerialDigits

	// discoveryPollInterval bounds each UDP read so ctx is honoured.
	discoveryPollInterval = 500 * time.Millisecond

	// discoveryBufferSize is larger than any broadcast packet.
	discoveryBufferSize = 64
)

// DiscoveredHub is a hub seen on the local network.
type DiscoveredHub struct {
	// Address is the IP the broadcast came from.
	Address string

	// SerialPrefix is the first 9 digits of the hub serial.
	SerialPrefix string
}

// ParseDiscoveryPacket extracts the 9 digit serial prefix from a broadcast.
func ParseDiscoveryPacket(packet []byte) (string, bool) {
	s := strings.TrimSpace(string(packet))
	prefix, ok := strings.CutPrefix(s, discoveryMagic)
	if !ok || len(prefix) != broadcastSerialDigits || !isDigits(prefix) {
		return "", false
	}
	return prefix, true
}

// ResolveSerial combines a broadcast prefix with the digits the user knows.
//
// configured may be the full 12 digit serial (prefix is then ignored) or
// the last 3 digits printed on the hub label.
func ResolveSerial(prefix, configured string) (SerialNumber, error) {
	if s := SerialNumber(configured); s.IsWellFormed() {
		return s, nil
	}
	if len(configured) != userSerialDigits || !isDigits(configured) {
		return "", fmt.Errorf("%w: serial must be 12 digits or the last %d", ErrInvalidData, userSerialDigits)
	}
	s := SerialNumber(prefix + configured)
	if !s.IsWellFormed() {
		return "", fmt.Errorf("%w: no 9 digit prefix for serial suffix %s", ErrDiscoveryFailed, configured)
	}
	return s, nil
}

// Discover listens for hub broadcasts until ctx is done or a hub whose
// serial starts with want (may be empty) is seen.
//
// Parameters:
//   - ctx: Bounds the search; use a timeout
//   - listenAddr: UDP listen address, empty for ":10000"
//   - want: optional serial prefix filter (any length up to 9 digits)
//
// Returns:
//   - DiscoveredHub: first matching hub
//   - error: ErrDiscoveryFailed when ctx ends first
func Discover(ctx context.Context, listenAddr, want string) (DiscoveredHub, error) {
	if listenAddr == "" {
		listenAddr = ":" + strconv.Itoa(DiscoveryPort)
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp4", listenAddr)
	if err != nil {
		return DiscoveredHub{}, fmt.Errorf("%w: listen %s: %w", ErrDiscoveryFailed, listenAddr, err)
	}
	defer pc.Close()

	buf := make([]byte, discoveryBufferSize)
	for {
		select {
		case <-ctx.Done():
			return DiscoveredHub{}, fmt.Errorf("%w: %w", ErrDiscoveryFailed, ctx.Err())
		default:
		}

		if err := pc.SetReadDeadline(time.Now().Add(discoveryPollInterval)); err != nil {
			return DiscoveredHub{}, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
		}
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return DiscoveredHub{}, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
		}

		prefix, ok := ParseDiscoveryPacket(buf[:n])
		if !ok || !strings.HasPrefix(prefix, want) {
			continue
		}
		host := from.String()
		if udp, ok := from.(*net.UDPAddr); ok {
			host = udp.IP.String()
		}
		return DiscoveredHub{Address: host, SerialPrefix: prefix}, nil
	}
}
