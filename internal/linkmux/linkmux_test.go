package linkmux

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.bug.st/serial"
)

func TestNewLinkMux(t *testing.T) {
	port := NewTestableLinkPort()
	mux := NewLinkMux(port)

	if mux == nil {
		t.Fatal("NewLinkMux returned nil")
	}
	if mux.subscribers == nil {
		t.Error("subscribers map not initialized")
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	mux := NewLinkMux(NewTestableLinkPort())

	id1, ch1 := mux.Subscribe()
	id2, ch2 := mux.Subscribe()
	if id1 == "" || id2 == "" {
		t.Fatal("empty subscriber id")
	}
	if id1 == id2 {
		t.Error("subscriber ids not unique")
	}
	if ch1 == nil || ch2 == nil {
		t.Fatal("nil subscriber channel")
	}

	mux.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Error("channel still open after Unsubscribe")
	}

	// Unsubscribing an unknown id is a no-op.
	mux.Unsubscribe("nope")

	mux.subscriberMu.Lock()
	n := len(mux.subscribers)
	mux.subscriberMu.Unlock()
	if n != 1 {
		t.Errorf("subscriber count = %d, want 1", n)
	}
}

func TestSendLineAppendsNewline(t *testing.T) {
	port := NewTestableLinkPort()
	mux := NewLinkMux(port)

	if err := mux.SendLine(`{"type":"goal"}`); err != nil {
		t.Fatalf("SendLine: %v", err)
	}
	if err := mux.SendLine("already terminated\n"); err != nil {
		t.Fatalf("SendLine: %v", err)
	}

	got := string(port.Written())
	want := "{\"type\":\"goal\"}\nalready terminated\n"
	if got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
}

func TestSendLineWriteError(t *testing.T) {
	port := NewTestableLinkPort()
	port.WriteError = errors.New("link gone")
	mux := NewLinkMux(port)

	if err := mux.SendLine("x"); err == nil {
		t.Error("SendLine succeeded despite write error")
	}
}

func TestMonitorFansOutToSubscribers(t *testing.T) {
	port := NewTestableLinkPort()
	port.BlockReads = true
	mux := NewLinkMux(port)

	_, ch1 := mux.Subscribe()
	_, ch2 := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitorDone := make(chan error, 1)
	go func() { monitorDone <- mux.Monitor(ctx) }()

	port.AddReadData([]byte("pose-line-1\npose-line-2\n"))

	for _, ch := range []chan string{ch1, ch2} {
		for _, want := range []string{"pose-line-1", "pose-line-2"} {
			select {
			case got := <-ch:
				if got != want {
					t.Errorf("subscriber got %q, want %q", got, want)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("timeout waiting for fan-out line")
			}
		}
	}

	cancel()
	select {
	case err := <-monitorDone:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestMonitorSkipsSlowSubscribers(t *testing.T) {
	port := NewTestableLinkPort()
	port.BlockReads = true
	mux := NewLinkMux(port)

	// This subscriber never drains; once its buffer is full the mux must
	// drop its lines rather than stall the fan-out loop.
	mux.Subscribe()
	_, active := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	// Enough lines to overflow the stalled subscriber's buffer twice over.
	for i := 0; i < subscriberBuffer*3; i++ {
		port.AddReadData([]byte("line\n"))
	}

	var received int
	quiet := time.After(2 * time.Second)
loop:
	for {
		select {
		case <-active:
			received++
			if received >= subscriberBuffer+1 {
				break loop
			}
		case <-quiet:
			break loop
		}
	}
	// The active subscriber must keep receiving even though the stalled
	// one stopped accepting long ago.
	if received == 0 {
		t.Fatal("active subscriber received nothing")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Monitor did not exit after cancel")
	}
}

func TestMonitorReturnsOnEOF(t *testing.T) {
	port := NewTestableLinkPort()
	port.AddReadData([]byte("only-line\n"))
	mux := NewLinkMux(port)

	// Non-blocking port: after the buffered line the scanner hits EOF.
	err := mux.Monitor(context.Background())
	if err != nil {
		t.Errorf("Monitor returned %v, want nil on EOF", err)
	}
}

func TestCloseClosesSubscribersAndPort(t *testing.T) {
	port := NewTestableLinkPort()
	mux := NewLinkMux(port)

	_, ch := mux.Subscribe()
	if err := mux.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel open after Close")
	}
	if !port.Closed {
		t.Error("underlying port not closed")
	}
}

func TestPortOptionsNormalize(t *testing.T) {
	cases := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{
			name: "defaults",
			in:   PortOptions{},
			want: PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"},
		},
		{
			name: "explicit values kept",
			in:   PortOptions{BaudRate: 57600, DataBits: 7, StopBits: 2, Parity: "even"},
			want: PortOptions{BaudRate: 57600, DataBits: 7, StopBits: 2, Parity: "E"},
		},
		{
			name: "odd parity short form",
			in:   PortOptions{Parity: "o"},
			want: PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "O"},
		},
		{name: "invalid data bits", in: PortOptions{DataBits: 9}, wantErr: true},
		{name: "invalid stop bits", in: PortOptions{StopBits: 3}, wantErr: true},
		{name: "invalid parity", in: PortOptions{Parity: "X"}, wantErr: true},
	}
	for _, c := range cases {
		got, err := c.in.Normalize()
		if c.wantErr {
			if err == nil {
				t.Errorf("%s: Normalize() error = nil, want error", c.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: Normalize() error = %v", c.name, err)
			continue
		}
		if got != c.want {
			t.Errorf("%s: Normalize() = %+v, want %+v", c.name, got, c.want)
		}
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 9600, StopBits: 2, Parity: "E"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode: %v", err)
	}
	if mode.BaudRate != 9600 {
		t.Errorf("BaudRate = %d, want 9600", mode.BaudRate)
	}
	if mode.StopBits != serial.TwoStopBits {
		t.Errorf("StopBits = %v, want TwoStopBits", mode.StopBits)
	}
	if mode.Parity != serial.EvenParity {
		t.Errorf("Parity = %v, want EvenParity", mode.Parity)
	}

	mode, err = PortOptions{}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode: %v", err)
	}
	if mode.StopBits != serial.OneStopBit {
		t.Errorf("default StopBits = %v, want OneStopBit", mode.StopBits)
	}
	if mode.Parity != serial.NoParity {
		t.Errorf("default Parity = %v, want NoParity", mode.Parity)
	}
}

func TestDisabledLinkMux(t *testing.T) {
	d := NewDisabledLinkMux()

	if err := d.SendLine("dropped"); err != nil {
		t.Errorf("SendLine: %v", err)
	}

	id, ch := d.Subscribe()
	d.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("channel open after Unsubscribe")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Monitor(ctx) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}

	_, open := d.Subscribe()
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-open; ok {
		t.Error("subscriber channel open after Close")
	}

	// Subscribing after Close hands back a closed channel.
	_, late := d.Subscribe()
	if _, ok := <-late; ok {
		t.Error("post-Close Subscribe returned an open channel")
	}
}

func TestMockLinkMuxEmitsLines(t *testing.T) {
	mux := NewMockLinkMux([]byte(`{"type":"pose","stamp":1}`), 10*time.Millisecond)
	defer mux.Close()

	_, ch := mux.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	select {
	case line := <-ch:
		if !strings.Contains(line, `"pose"`) {
			t.Errorf("mock line = %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no line from mock link")
	}
}
