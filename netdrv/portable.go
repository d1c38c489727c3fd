package netdrv

import (
	"net"
	"sync"
	"syscall"
	"time"
)

// entry is what Portable tracks per registered socket.
type entry struct {
	conn   net.PacketConn
	token  Token
	events EventType
}

// Portable is the default net.PacketConn-based driver: every registered
// socket gets a reader goroutine blocked in ReadFrom, feeding readiness
// notifications into a shared channel that Wait drains. No epoll/
// kqueue/IOCP syscalls are used; a native driver would replace the
// reader goroutines with a real multiplexer syscall while keeping the
// same Driver contract, one file per GOOS family.
type Portable struct {
	mu      sync.Mutex
	entries map[Token]*entry
	ready   chan Event
	wake    chan struct{}
	closed  chan struct{}
}

// NewPortable constructs an uninitialized Portable driver; call Init
// before registering sockets.
func NewPortable() *Portable {
	return &Portable{
		entries: map[Token]*entry{},
		ready:   make(chan Event, 256),
		wake:    make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

func (p *Portable) Init() error { return nil }

// AddFD spawns a reader goroutine for sock when EventReadable is
// requested; Portable has no way to learn writability from net.PacketConn
// short of attempting a write, so EventWritable registrations are accepted
// but never fire: callers should just try writes and fall back to
// queuing on a transient error, which is what conn already does.
func (p *Portable) AddFD(sock net.PacketConn, events EventType, token Token) error {
	p.mu.Lock()
	p.entries[token] = &entry{conn: sock, token: token, events: events}
	p.mu.Unlock()

	if events&EventReadable != 0 {
		go p.readLoop(sock, token)
	}
	return nil
}

func (p *Portable) ModifyFD(sock net.PacketConn, events EventType, token Token) error {
	p.mu.Lock()
	e, ok := p.entries[token]
	if ok {
		e.events = events
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	if events&EventReadable != 0 {
		go p.readLoop(sock, token)
	}
	return nil
}

func (p *Portable) RemoveFD(sock net.PacketConn) error {
	p.mu.Lock()
	for tok, e := range p.entries {
		if e.conn == sock {
			delete(p.entries, tok)
		}
	}
	p.mu.Unlock()
	return nil
}

// readLoop reports readiness without consuming the datagram, so the
// endpoint's own ReadFrom still sees the full packet. Where sock exposes
// SyscallConn (every *net.UDPConn does), it waits on raw fd readability
// directly; otherwise it falls back to short-deadline polling, which risks
// a false-negative wakeup delay but never drops data either way since it
// still never reads application bytes itself.
func (p *Portable) readLoop(sock net.PacketConn, token Token) {
	sc, hasRawConn := sock.(syscall.Conn)
	var rc syscall.RawConn
	if hasRawConn {
		var err error
		rc, err = sc.SyscallConn()
		if err != nil {
			hasRawConn = false
		}
	}

	for {
		select {
		case <-p.closed:
			return
		default:
		}

		p.mu.Lock()
		e, ok := p.entries[token]
		p.mu.Unlock()
		if !ok || e.conn != sock {
			return
		}

		if hasRawConn {
			err := rc.Read(func(fd uintptr) bool { return true })
			if err != nil {
				select {
				case p.ready <- Event{Token: token, Events: EventError}:
				case <-p.closed:
				}
				return
			}
		} else {
			time.Sleep(5 * time.Millisecond)
		}

		select {
		case p.ready <- Event{Token: token, Events: EventReadable}:
		case <-p.closed:
			return
		}
	}
}

// Wait blocks until a readiness event arrives, Wake is called, or
// timeoutMS elapses (timeoutMS < 0 means block indefinitely).
func (p *Portable) Wait(timeoutMS int) ([]Event, error) {
	var timeout <-chan time.Time
	if timeoutMS >= 0 {
		t := time.NewTimer(time.Duration(timeoutMS) * time.Millisecond)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case ev := <-p.ready:
		events := []Event{ev}
		draining := true
		for draining {
			select {
			case more := <-p.ready:
				events = append(events, more)
			default:
				draining = false
			}
		}
		return events, nil
	case <-p.wake:
		return nil, nil
	case <-timeout:
		return nil, nil
	case <-p.closed:
		return nil, nil
	}
}

// Wake is the one thread-safe method: interrupts a blocked Wait from any
// goroutine.
func (p *Portable) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Portable) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}
