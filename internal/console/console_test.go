package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lawnchairsociety/tlcsview/internal/client"
	"github.com/lawnchairsociety/tlcsview/internal/game"
	"github.com/lawnchairsociety/tlcsview/internal/protocol"
	"github.com/lawnchairsociety/tlcsview/internal/relaytest"
)

type fakeController struct {
	status    client.Status
	auto      bool
	connected client.ConnectionConfig
	sent      []protocol.Action
	sendErr   error
	calls     []string
}

func (f *fakeController) Status() (client.Status, string) { return f.status, "" }
func (f *fakeController) GameState() game.GameState { return game.NewState() }
func (f *fakeController) AutoReconnect() bool { return f.auto }

func (f *fakeController) Connect(ctx context.Context, cfg client.ConnectionConfig) error {
	f.calls = append(f.calls, "connect")
	f.connected = cfg
	return nil
}

func (f *fakeController) Disconnect() error {
	f.calls = append(f.calls, "disconnect")
	return nil
}

func (f *fakeController) Reconnect(ctx context.Context) error {
	f.calls = append(f.calls, "reconnect")
	return nil
}

func (f *fakeController) SendAction(action protocol.Action) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, action)
	return nil
}

func (f *fakeController) SetAutoReconnect(enabled bool) { f.auto = enabled }

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input    string
		wantName string
		wantArgs int
	}{
		{"", "", 0},
		{"   ", "", 0},
		{"RESIGN", "resign", 0},
		{"auto off", "auto", 1},
		{"  connect  10.0.0.2:1965 ", "connect", 1},
	}

	for _, tt := range tests {
		cmd := ParseCommand(tt.input)
		if cmd.Name != tt.wantName || len(cmd.Args) != tt.wantArgs {
			t.Errorf("ParseCommand(%q) = %q %v, want %q with %d args", tt.input, cmd.Name, cmd.Args, tt.wantName, tt.wantArgs)
		}
	}
}

func TestExecuteActions(t *testing.T) {
	tests := []struct {
		input string
		want  protocol.Action
	}{
		{"resign", protocol.ActionResign},
		{"draw", protocol.ActionOfferDraw},
		{"offer", protocol.ActionOfferDraw},
		{"accept", protocol.ActionAcceptOffer},
		{"decline", protocol.ActionDeclineDraw},
	}

	for _, tt := range tests {
		ctl := &fakeController{}
		reply, err := ParseCommand(tt.input).Execute(context.Background(), ctl, client.ConnectionConfig{})
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.input, err)
			continue
		}
		if len(ctl.sent) != 1 || ctl.sent[0] != tt.want {
			t.Errorf("%s: sent %v, want [%v]", tt.input, ctl.sent, tt.want)
		}
		if reply != "Sent "+tt.want.String() {
			t.Errorf("%s: reply = %q", tt.input, reply)
		}
	}
}

func TestExecuteActionError(t *testing.T) {
	ctl := &fakeController{sendErr: errors.New("not connected to relay")}
	_, err := ParseCommand("resign").Execute(context.Background(), ctl, client.ConnectionConfig{})
	if err == nil || !strings.Contains(err.Error(), "not connected") {
		t.Errorf("expected not connected error, got %v", err)
	}
}

func TestExecuteConnectEndpoint(t *testing.T) {
	defaults := client.ConnectionConfig{Host: "relay.local", Port: 1965, Username: "user"}

	tests := []struct {
		input    string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"connect", "relay.local", 1965, false},
		{"connect 10.0.0.2", "10.0.0.2", 1965, false},
		{"connect 10.0.0.2:1966", "10.0.0.2", 1966, false},
		{"connect [::1]:1967", "::1", 1967, false},
		{"connect host:abc", "", 0, true},
		{"connect a b", "", 0, true},
	}

	for _, tt := range tests {
		ctl := &fakeController{}
		_, err := ParseCommand(tt.input).Execute(context.Background(), ctl, defaults)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tt.input, err)
			continue
		}
		if ctl.connected.Host != tt.wantHost || ctl.connected.Port != tt.wantPort {
			t.Errorf("%q: connected to %s:%d, want %s:%d", tt.input, ctl.connected.Host, ctl.connected.Port, tt.wantHost, tt.wantPort)
		}
		if ctl.connected.Username != "user" {
			t.Errorf("%q: username = %q, want defaults kept", tt.input, ctl.connected.Username)
		}
	}
}

func TestExecuteAuto(t *testing.T) {
	ctl := &fakeController{}
	ctx := context.Background()

	if reply, _ := ParseCommand("auto on").Execute(ctx, ctl, client.ConnectionConfig{}); !ctl.auto || reply != "Auto-reconnect is on" {
		t.Errorf("auto on: auto=%v reply=%q", ctl.auto, reply)
	}
	if reply, _ := ParseCommand("auto").Execute(ctx, ctl, client.ConnectionConfig{}); reply != "Auto-reconnect is on" {
		t.Errorf("auto: reply = %q", reply)
	}
	if _, err := ParseCommand("auto OFF").Execute(ctx, ctl, client.ConnectionConfig{}); err != nil || ctl.auto {
		t.Errorf("auto OFF: auto=%v err=%v", ctl.auto, err)
	}
	if _, err := ParseCommand("auto sometimes").Execute(ctx, ctl, client.ConnectionConfig{}); err == nil {
		t.Error("expected usage error for auto sometimes")
	}
}

func TestExecuteMisc(t *testing.T) {
	ctl := &fakeController{status: client.StatusConnected}
	ctx := context.Background()

	if _, err := ParseCommand("quit").Execute(ctx, ctl, client.ConnectionConfig{}); !errors.Is(err, ErrQuit) {
		t.Errorf("quit: err = %v, want ErrQuit", err)
	}
	if _, err := ParseCommand("castle").Execute(ctx, ctl, client.ConnectionConfig{}); err == nil {
		t.Error("expected error for unknown command")
	}
	reply, err := ParseCommand("state").Execute(ctx, ctl, client.ConnectionConfig{})
	if err != nil || !strings.HasPrefix(reply, "[status] connected") || !strings.Contains(reply, "white to move") {
		t.Errorf("state: reply = %q err = %v", reply, err)
	}
	ParseCommand("dc").Execute(ctx, ctl, client.ConnectionConfig{})
	ParseCommand("reconnect").Execute(ctx, ctl, client.ConnectionConfig{})
	if strings.Join(ctl.calls, ",") != "disconnect,reconnect" {
		t.Errorf("calls = %v", ctl.calls)
	}
}

func TestFormatClock(t *testing.T) {
	d := func(v time.Duration) *time.Duration { return &v }

	tests := []struct {
		in   *time.Duration
		want string
	}{
		{nil, "--:--"},
		{d(0), "0:00"},
		{d(59*time.Second + 900*time.Millisecond), "0:59"},
		{d(3 * time.Minute), "3:00"},
		{d(time.Hour + 2*time.Minute + 3*time.Second), "1:02:03"},
		{d(-time.Second), "0:00"},
	}

	for _, tt := range tests {
		if got := FormatClock(tt.in); got != tt.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatEvent(t *testing.T) {
	state := game.NewState()
	twelve := 12 * time.Second
	state.WhiteClock = &twelve

	tests := []struct {
		ev   client.Event
		want string
	}{
		{client.StatusEvent{Status: client.StatusConnecting}, "[status] connecting"},
		{client.StatusEvent{Status: client.StatusError, Message: "refused"}, "[status] error: refused"},
		{client.RawLineEvent{Line: "INFO hi"}, "[relay] INFO hi"},
		{client.GameStateEvent{State: state, Raw: "CLOCK 12000 -"}, "[game] In progress | white to move | W 0:12 B --:-- (CLOCK 12000 -)"},
	}

	for _, tt := range tests {
		got := strings.Join(strings.Fields(FormatEvent(tt.ev)), " ")
		if got != tt.want {
			t.Errorf("FormatEvent(%T) = %q, want %q", tt.ev, got, tt.want)
		}
	}
}

// waitForOutput polls out until it contains want.
func waitForOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(out.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("output never contained %q:\n%s", want, out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunAgainstRelay(t *testing.T) {
	relay, err := relaytest.Start(relaytest.Options{Username: "user", Password: "pw"})
	if err != nil {
		t.Fatalf("failed to start relay: %v", err)
	}
	defer relay.Shutdown()

	manager := client.New()
	defer manager.Close()

	defaults := client.ConnectionConfig{
		Host:     relay.Host(),
		Port:     relay.Port(),
		Username: "user",
		Password: "pw",
	}
	out := &syncBuffer{}
	c := New(manager, defaults, out)

	in, w := io.Pipe()
	defer w.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, in) }()

	io.WriteString(w, "connect\n")
	waitForOutput(t, out, "Connected to ")
	io.WriteString(w, "resign\nbogus\nquit\nstate\n")

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !relay.WaitForLine("RESIGN", time.Second) {
		t.Errorf("relay did not receive RESIGN, got %v", relay.Received())
	}
	text := out.String()
	for _, want := range []string{"Sent Resign", `Error: unknown command "bogus"`} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "[status]") {
		t.Errorf("commands after quit ran:\n%s", text)
	}
}

func TestRunEndOfInput(t *testing.T) {
	out := &syncBuffer{}
	c := New(&fakeController{}, client.ConnectionConfig{}, out)

	err := c.Run(context.Background(), strings.NewReader("auto on\n"))
	if !errors.Is(err, ErrInputClosed) {
		t.Errorf("Run at end of input = %v, want ErrInputClosed", err)
	}
	if !strings.Contains(out.String(), "Auto-reconnect is on") {
		t.Errorf("output = %q", out.String())
	}
}

type stallingDialer struct {
	dialing chan struct{}
}

func (d *stallingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	close(d.dialing)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestDisconnectWhileConnectPending(t *testing.T) {
	dialer := &stallingDialer{dialing: make(chan struct{})}
	manager := client.New(client.WithDialer(dialer))
	defer manager.Close()

	out := &syncBuffer{}
	c := New(manager, client.ConnectionConfig{Host: "10.0.0.2", Port: 1965}, out)

	in, w := io.Pipe()
	defer w.Close()
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), in) }()

	io.WriteString(w, "connect\n")
	select {
	case <-dialer.dialing:
	case <-time.After(3 * time.Second):
		t.Fatal("connect never started dialing")
	}

	io.WriteString(w, "disconnect\n")
	waitForOutput(t, out, "Error: ")
	if !strings.Contains(out.String(), client.ErrAttemptCancelled.Error()) {
		t.Errorf("connect error = %q, want cancelled", out.String())
	}
	if status, _ := manager.Status(); status != client.StatusDisconnected {
		t.Errorf("status = %v, want disconnected", status)
	}

	io.WriteString(w, "quit\n")
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after quit")
	}
}

func TestQuitCancelsPendingConnect(t *testing.T) {
	dialer := &stallingDialer{dialing: make(chan struct{})}
	manager := client.New(client.WithDialer(dialer))
	defer manager.Close()

	c := New(manager, client.ConnectionConfig{Host: "10.0.0.2", Port: 1965}, &syncBuffer{})

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), strings.NewReader("connect\nquit\n")) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run waited on a pending connect after quit")
	}
}

// syncBuffer is a bytes.Buffer safe for a concurrent writer and reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPrintEvents(t *testing.T) {
	manager := client.New()
	defer manager.Close()

	out := &syncBuffer{}
	c := New(manager, client.ConnectionConfig{}, out)
	sub := manager.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.PrintEvents(ctx, sub) }()

	manager.Connect(context.Background(), client.ConnectionConfig{Host: "127.0.0.1", Port: 1})

	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(out.String(), "[status] error") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("PrintEvents: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("PrintEvents did not return after cancel")
	}

	text := out.String()
	if !strings.Contains(text, "[status] connecting") || !strings.Contains(text, "[status] error") {
		t.Errorf("missing status lines:\n%s", text)
	}
}

func TestPrintEventsEndsWithManager(t *testing.T) {
	manager := client.New()
	c := New(manager, client.ConnectionConfig{}, &syncBuffer{})
	sub := manager.Subscribe()

	done := make(chan error, 1)
	go func() { done <- c.PrintEvents(context.Background(), sub) }()
	manager.Close()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("PrintEvents did not return after Close")
	}
}
