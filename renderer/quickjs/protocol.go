package quickjs

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/caffeineduck/collider/bridge"
	"github.com/caffeineduck/collider/ipc"
)

// Guest-to-host frames travel on stderr: \x00COLLIDER:{json}\x00. A frame whose
// payload is pollPayload asks for the next settled reply; the host answers it on
// stdin before the guest's write returns, with one reply line or idleLine.
const (
	protocolPrefix = "\x00COLLIDER:"
	protocolSuffix = "\x00"
	pollPayload    = "poll"
)

var idleLine = []byte("{}\n")

// protocolHandler intercepts guest stderr. Plain output passes through to the
// captured stderr; frames become invocations or polls.
type protocolHandler struct {
	inv    bridge.Invoker
	inbox  *inbox
	logger *slog.Logger

	realStderr bytes.Buffer
	buf        bytes.Buffer
	mu         sync.Mutex
}

func newProtocolHandler(inv bridge.Invoker, in *inbox, logger *slog.Logger) *protocolHandler {
	return &protocolHandler{
		inv:    inv,
		inbox:  in,
		logger: logger,
	}
}

func (p *protocolHandler) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)
	for {
		text, payload, rest, ok := nextFrame(p.buf.String())
		p.realStderr.WriteString(text)
		p.buf.Reset()
		p.buf.WriteString(rest)
		if !ok {
			break
		}
		p.handleFrame(payload)
	}
	return len(data), nil
}

// nextFrame splits content at its first complete frame. Without one, ok is
// false and rest holds any trailing bytes that may start a frame.
func nextFrame(content string) (text, payload, rest string, ok bool) {
	start := strings.Index(content, protocolPrefix)
	if start == -1 {
		keep := partialPrefix(content)
		return content[:len(content)-keep], "", content[len(content)-keep:], false
	}

	body := content[start+len(protocolPrefix):]
	end := strings.Index(body, protocolSuffix)
	if end == -1 {
		return content[:start], "", content[start:], false
	}
	return content[:start], body[:end], body[end+len(protocolSuffix):], true
}

// partialPrefix returns the length of the longest suffix of s that is a proper
// prefix of protocolPrefix.
func partialPrefix(s string) int {
	n := len(protocolPrefix) - 1
	if len(s) < n {
		n = len(s)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(s, protocolPrefix[:n]) {
			return n
		}
	}
	return 0
}

func (p *protocolHandler) handleFrame(payload string) {
	if payload == pollPayload {
		p.inbox.poll()
		return
	}

	var req ipc.Request
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		p.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	call := p.inv.Invoke(req.Channel, req.Args)
	go func() {
		data, err := call.Result()
		p.settle(ipc.NewResponse(req.ID, data, err))
	}()
}

func (p *protocolHandler) settle(resp ipc.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(ipc.Response{ID: resp.ID, Error: "internal: failed to marshal response"})
	}
	if !p.inbox.push(append(data, '\n')) {
		p.logger.Debug("reply dropped", "call", resp.ID)
	}
}

func (p *protocolHandler) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realStderr.String() + p.buf.String()
}

// inbox is the guest's stdin. Settled replies wait in ready until the guest
// polls; each poll moves exactly one line into the readable buffer.
type inbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ready  [][]byte
	stdin  bytes.Buffer
	closed bool
}

func newInbox() *inbox {
	in := &inbox{}
	in.cond = sync.NewCond(&in.mu)
	return in
}

// push queues a settled reply. It reports false once the inbox is closed.
func (in *inbox) push(line []byte) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return false
	}
	in.ready = append(in.ready, line)
	return true
}

// poll answers one poll frame.
func (in *inbox) poll() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.ready) == 0 {
		in.stdin.Write(idleLine)
	} else {
		in.stdin.Write(in.ready[0])
		in.ready = in.ready[1:]
	}
	in.cond.Broadcast()
}

func (in *inbox) Read(b []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for in.stdin.Len() == 0 {
		if in.closed {
			return 0, io.EOF
		}
		in.cond.Wait()
	}
	return in.stdin.Read(b)
}

func (in *inbox) Close() error {
	in.mu.Lock()
	in.closed = true
	in.ready = nil
	in.mu.Unlock()
	in.cond.Broadcast()
	return nil
}
