package nobo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

const testHubSerial = "102000012345"

// fakeHub is a scripted hub on a loopback listener.
type fakeHub struct {
	t        *testing.T
	ln       net.Listener
	reject   bool
	dump     []string
	received chan string
	conns    chan net.Conn
}

func newFakeHub(t *testing.T, dump ...string) *fakeHub {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	h := &fakeHub{
		t:        t,
		ln:       ln,
		dump:     dump,
		received: make(chan string, 64),
		conns:    make(chan net.Conn, 4),
	}
	t.Cleanup(func() { ln.Close() })
	go h.serve()
	return h
}

func (h *fakeHub) addr() string { return h.ln.Addr().String() }

func (h *fakeHub) serve() {
	for {
		conn, err := h.ln.Accept()
		if err != nil {
			return
		}
		h.conns <- conn
		go h.session(conn)
	}
}

func (h *fakeHub) session(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	write := func(line string) { conn.Write([]byte(line + "\r")) } //nolint:errcheck // test hub

	for {
		line, err := r.ReadString('\r')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r")
		h.received <- line

		switch LinePrefix(line) {
		case PrefixHello:
			if h.reject {
				write("REJECT 2")
				return
			}
			write("HELLO 1.1")
		case PrefixHandshake:
			write("HANDSHAKE")
		case PrefixGetAll:
			write(PrefixSendingAll)
			for _, l := range h.dump {
				write(l)
			}
		case PrefixKeepAlive:
			write(PrefixKeepAlive)
		}
	}
}

// expect waits for the hub to receive a line with the given prefix.
func (h *fakeHub) expect(prefix string) string {
	h.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line := <-h.received:
			if LinePrefix(line) == prefix {
				return line
			}
		case <-timeout:
			h.t.Fatalf("hub never received %s", prefix)
			return ""
		}
	}
}

// lineCollector records callback lines.
type lineCollector struct {
	mu    sync.Mutex
	lines []string
	got   chan struct{}
}

func newLineCollector() *lineCollector {
	return &lineCollector{got: make(chan struct{}, 256)}
}

func (l *lineCollector) add(line string) {
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
	l.got <- struct{}{}
}

func (l *lineCollector) waitFor(t *testing.T, n int) []string {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		l.mu.Lock()
		if len(l.lines) >= n {
			out := append([]string(nil), l.lines...)
			l.mu.Unlock()
			return out
		}
		l.mu.Unlock()
		select {
		case <-l.got:
		case <-timeout:
			t.Fatalf("received %d lines, want %d", len(l.lines), n)
		}
	}
}

func TestClientConnectHandshakeAndDump(t *testing.T) {
	hub := newFakeHub(t, "H01 1 Stue 1 22 16 1 -1", "H05 102000012345 Hub 1440 -1 sw hw 20190805")

	client, err := Connect(context.Background(), ClientConfig{Address: hub.addr(), Serial: testHubSerial})
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer client.Close()

	hello := hub.expect(PrefixHello)
	fields := strings.Split(hello, " ")
	if len(fields) != 4 || fields[1] != ProtocolVersion || fields[2] != testHubSerial || len(fields[3]) != 14 {
		t.Errorf("HELLO line = %q", hello)
	}
	hub.expect(PrefixGetAll)

	lines := newLineCollector()
	client.SetOnLine(lines.add)
	got := lines.waitFor(t, 3)

	want := []string{"H00", "H01 1 Stue 1 22 16 1 -1", "H05 102000012345 Hub 1440 -1 sw hw 20190805"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false")
	}
	if s := client.Stats(); s.LinesRx < 3 {
		t.Errorf("Stats().LinesRx = %d, want >= 3", s.LinesRx)
	}
}

func TestClientSend(t *testing.T) {
	hub := newFakeHub(t)
	client, err := Connect(context.Background(), ClientConfig{Address: hub.addr(), Serial: testHubSerial})
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer client.Close()
	hub.expect(PrefixGetAll)

	if err := client.Send(context.Background(), "U00 1 Stue 1 23 16 1 -1"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got := hub.expect(PrefixUpdateZone); got != "U00 1 Stue 1 23 16 1 -1" {
		t.Errorf("hub received %q", got)
	}
	if s := client.Stats(); s.LinesTx != 1 {
		t.Errorf("Stats().LinesTx = %d, want 1", s.LinesTx)
	}
}

func TestClientConcurrentSendsWithKeepAlive(t *testing.T) {
	hub := newFakeHub(t)
	client, err := Connect(context.Background(), ClientConfig{
		Address:           hub.addr(),
		Serial:            testHubSerial,
		KeepAliveInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer client.Close()
	hub.expect(PrefixGetAll)

	const senders = 20
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			line := fmt.Sprintf("U00 %d Zone%d 1 22 16 1 -1", i, i)
			if err := client.Send(context.Background(), line); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Send() error: %v", err)
	}

	want := make(map[string]bool, senders)
	for i := range senders {
		want[fmt.Sprintf("U00 %d Zone%d 1 22 16 1 -1", i, i)] = true
	}
	for range senders {
		line := hub.expect(PrefixUpdateZone)
		if !want[line] {
			t.Errorf("hub received mangled or duplicate line %q", line)
		}
		delete(want, line)
	}
}

func TestClientRejected(t *testing.T) {
	hub := newFakeHub(t)
	hub.reject = true

	_, err := Connect(context.Background(), ClientConfig{Address: hub.addr(), Serial: testHubSerial})
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Errorf("Connect() error = %v, want ErrHandshakeFailed", err)
	}
}

func TestClientConnectValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
	}{
		{name: "bad serial", cfg: ClientConfig{Address: "127.0.0.1", Serial: "123"}},
		{name: "empty address", cfg: ClientConfig{Serial: testHubSerial}},
		{name: "nothing listening", cfg: ClientConfig{Address: "127.0.0.1:1", Serial: testHubSerial, ConnectTimeout: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Connect(context.Background(), tt.cfg); !errors.Is(err, ErrConnectionFailed) {
				t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
			}
		})
	}
}

func TestClientKeepAlive(t *testing.T) {
	hub := newFakeHub(t)
	client, err := Connect(context.Background(), ClientConfig{
		Address:           hub.addr(),
		Serial:            testHubSerial,
		KeepAliveInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer client.Close()

	hub.expect(PrefixKeepAlive)
}

func TestClientReconnects(t *testing.T) {
	hub := newFakeHub(t)
	client, err := Connect(context.Background(), ClientConfig{
		Address:           hub.addr(),
		Serial:            testHubSerial,
		ReconnectInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer client.Close()
	client.SetOnLine(func(string) {})

	first := <-hub.conns
	hub.expect(PrefixGetAll)
	first.Close()

	hub.expect(PrefixHello)
	hub.expect(PrefixGetAll)

	deadline := time.Now().Add(2 * time.Second)
	for client.Stats().ReconnectsTotal == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if client.Stats().ReconnectsTotal != 1 {
		t.Errorf("ReconnectsTotal = %d, want 1", client.Stats().ReconnectsTotal)
	}
}

func TestClientSendAfterClose(t *testing.T) {
	hub := newFakeHub(t)
	client, err := Connect(context.Background(), ClientConfig{Address: hub.addr(), Serial: testHubSerial})
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}

	if err := client.Send(context.Background(), PrefixKeepAlive); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() after Close error = %v, want ErrNotConnected", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestHubAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "192.168.1.50", want: "192.168.1.50:27779"},
		{in: "192.168.1.50:1234", want: "192.168.1.50:1234"},
		{in: "nobohub.local", want: "nobohub.local:27779"},
	}

	for _, tt := range tests {
		got, err := hubAddress(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("hubAddress(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
