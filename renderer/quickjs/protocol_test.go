package quickjs

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/collider/bridge"
	"github.com/caffeineduck/collider/ipc"
)

func TestNextFrame(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantText    string
		wantPayload string
		wantRest    string
		wantOK      bool
	}{
		{"no frame", "hello world", "hello world", "", "", false},
		{"empty content", "", "", "", "", false},
		{
			name:        "complete frame",
			content:     "before\x00COLLIDER:{\"id\":1}\x00after",
			wantText:    "before",
			wantPayload: `{"id":1}`,
			wantRest:    "after",
			wantOK:      true,
		},
		{
			name:     "incomplete frame",
			content:  "before\x00COLLIDER:{\"id\"",
			wantText: "before",
			wantRest: "\x00COLLIDER:{\"id\"",
		},
		{
			name:     "partial prefix held back",
			content:  "log line\x00COLL",
			wantText: "log line",
			wantRest: "\x00COLL",
		},
		{
			name:        "first of two frames",
			content:     "\x00COLLIDER:{\"id\":1}\x00\x00COLLIDER:{\"id\":2}\x00",
			wantPayload: `{"id":1}`,
			wantRest:    "\x00COLLIDER:{\"id\":2}\x00",
			wantOK:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, payload, rest, ok := nextFrame(tt.content)
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			if payload != tt.wantPayload {
				t.Errorf("payload = %q, want %q", payload, tt.wantPayload)
			}
			if rest != tt.wantRest {
				t.Errorf("rest = %q, want %q", rest, tt.wantRest)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestPartialPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"abc", 0},
		{"abc\x00", 1},
		{"abc\x00COLLIDER", 9},
		{"\x00COLLIDER:", 0},
	}

	for _, tt := range tests {
		if got := partialPrefix(tt.input); got != tt.want {
			t.Errorf("partialPrefix(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

type recordingAPI struct {
	flags chan bool
	err   error
}

func (r *recordingAPI) SetFullscreen(ctx context.Context, flag bool) error {
	r.flags <- flag
	return r.err
}

func newTestHandler(t *testing.T, impl bridge.API) (*protocolHandler, *bufio.Reader) {
	t.Helper()
	reg := ipc.NewRegistry()
	if impl != nil {
		if err := bridge.Register(reg, impl); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	d := ipc.NewDispatcher(reg)
	t.Cleanup(func() { d.Close() })

	inv := bridge.InvokerFunc(func(channel string, args json.RawMessage) *ipc.Call {
		return d.Invoke(nil, channel, args)
	})

	in := newInbox()
	t.Cleanup(func() { in.Close() })
	return newProtocolHandler(inv, in, slog.New(slog.NewTextHandler(io.Discard, nil))), bufio.NewReader(in)
}

const pollFrame = protocolPrefix + pollPayload + protocolSuffix

func (in *inbox) buffered() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.stdin.Len()
}

// poll sends one poll frame and reads its answer. The answer must already be
// buffered when Write returns.
func poll(t *testing.T, p *protocolHandler, r *bufio.Reader) ipc.Response {
	t.Helper()
	if _, err := p.Write([]byte(pollFrame)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if r.Buffered() == 0 && p.inbox.buffered() == 0 {
		t.Fatal("poll was not answered before Write returned")
	}
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	var resp ipc.Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("bad reply %q: %v", line, err)
	}
	return resp
}

// awaitReply polls until a reply arrives.
func awaitReply(t *testing.T, p *protocolHandler, r *bufio.Reader) ipc.Response {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if resp := poll(t, p, r); resp.ID != 0 {
			return resp
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for reply")
	return ipc.Response{}
}

func TestProtocolHandlerDispatchesSplitFrame(t *testing.T) {
	impl := &recordingAPI{flags: make(chan bool, 1)}
	p, replies := newTestHandler(t, impl)

	frame := "page says hi\n\x00COLLIDER:{\"id\":7,\"channel\":\"setFullscreen\",\"args\":{\"flag\":true}}\x00"
	for _, chunk := range []string{frame[:15], frame[15:20], frame[20:]} {
		if _, err := p.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	resp := awaitReply(t, p, replies)
	if resp.ID != 7 || resp.Error != "" {
		t.Errorf("unexpected reply %+v", resp)
	}
	if flag := <-impl.flags; !flag {
		t.Error("handler received flag=false")
	}
	if got := p.Stderr(); got != "page says hi\n" {
		t.Errorf("stderr = %q", got)
	}
}

func TestProtocolHandlerRepliesWithError(t *testing.T) {
	p, replies := newTestHandler(t, nil)

	p.Write([]byte("\x00COLLIDER:{\"id\":3,\"channel\":\"setFullscreen\",\"args\":{\"flag\":false}}\x00"))

	resp := awaitReply(t, p, replies)
	if resp.ID != 3 {
		t.Errorf("reply id = %d, want 3", resp.ID)
	}
	if !strings.Contains(resp.Error, "no handler") {
		t.Errorf("expected no handler error, got %q", resp.Error)
	}
}

type gatedAPI struct {
	release chan struct{}
}

func (g *gatedAPI) SetFullscreen(ctx context.Context, flag bool) error {
	<-g.release
	return nil
}

func TestPollAnswersIdleWhileCallOutstanding(t *testing.T) {
	impl := &gatedAPI{release: make(chan struct{})}
	p, replies := newTestHandler(t, impl)

	p.Write([]byte("\x00COLLIDER:{\"id\":1,\"channel\":\"setFullscreen\",\"args\":{\"flag\":true}}\x00"))

	for i := 0; i < 3; i++ {
		if resp := poll(t, p, replies); resp.ID != 0 {
			t.Fatalf("poll %d returned reply %+v before the handler finished", i, resp)
		}
	}

	close(impl.release)
	if resp := awaitReply(t, p, replies); resp.ID != 1 || resp.Error != "" {
		t.Errorf("unexpected reply %+v", resp)
	}
	if resp := poll(t, p, replies); resp.ID != 0 {
		t.Errorf("reply delivered twice: %+v", resp)
	}
}

func TestInboxDeliversOneReplyPerPoll(t *testing.T) {
	in := newInbox()
	in.push([]byte("{\"id\":1}\n"))
	in.push([]byte("{\"id\":2}\n"))

	r := bufio.NewReader(in)
	for _, want := range []string{"{\"id\":1}\n", "{\"id\":2}\n", string(idleLine)} {
		in.poll()
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if line != want {
			t.Errorf("line = %q, want %q", line, want)
		}
	}

	in.Close()
	if in.push([]byte("{\"id\":3}\n")) {
		t.Error("push succeeded on a closed inbox")
	}
	if _, err := r.ReadString('\n'); err != io.EOF {
		t.Errorf("expected EOF after close, got %v", err)
	}
}

func TestProtocolHandlerDropsMalformedFrame(t *testing.T) {
	p, _ := newTestHandler(t, &recordingAPI{flags: make(chan bool, 1)})

	p.Write([]byte("a\x00COLLIDER:not json\x00b"))
	if got := p.Stderr(); got != "ab" {
		t.Errorf("stderr = %q, want %q", got, "ab")
	}
}

func TestPreloadRenders(t *testing.T) {
	src, err := Preload()
	if err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	for _, want := range []string{
		`const PREFIX = "\x00COLLIDER:";`,
		`"channel":"setFullscreen"`,
		`exposeInMainWorld("app", surface);`,
		`delete globalThis.std;`,
		`const POLL = PREFIX + "poll" + SUFFIX;`,
	} {
		if !strings.Contains(src, want) {
			t.Errorf("preload missing %q", want)
		}
	}
}
