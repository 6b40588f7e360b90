//go:build linux

package netio

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

const (
	defaultSelectTimeoutMs = 100
	maxEpollEvents         = 256
)

// ReactorConfig configures the single-threaded selector loop (spec §6
// Network configuration options).
type ReactorConfig struct {
	Name            string
	CPUAffinity     int // -1 disables pinning
	BusySpinMode    bool
	SelectTimeoutMs int
	Channel         ChannelConfig
}

func (c ReactorConfig) withDefaults() ReactorConfig {
	if c.SelectTimeoutMs <= 0 {
		c.SelectTimeoutMs = defaultSelectTimeoutMs
	}
	return c
}

// Callbacks groups the reactor's lifecycle hooks (spec §4.4).
type Callbacks struct {
	OnConnected      func(ch *Channel)
	OnDisconnected   func(ch *Channel, reason error)
	OnConnectFailed  func(remote string, reason error)
}

// Reactor is the single-threaded, epoll-based NIO selector (spec §4.4,
// C5). One reactor owns all network I/O for the channels registered to it;
// it is driven by a dedicated goroutine pinned (optionally) to one CPU via
// runtime.LockOSThread + unix.SchedSetaffinity, following the pinning
// idiom in the retrieval pack's ehrlich-b-go-ublk queue runner.
type Reactor struct {
	cfg ReactorConfig
	cb  Callbacks

	epfd int

	mu        sync.Mutex // guards channels/listeners maps; only contended at register/unregister, never on the hot path
	channels  map[int]*Channel
	listeners map[int]struct{}

	pendingWrite map[int]bool // fds currently registered for EPOLLOUT

	acceptHandlers sync.Map // listening fd -> Handler
	connecting     sync.Map // fd -> struct{}, outbound connects awaiting connect-finish

	tasks chan func()

	stopping atomic.Bool
	done     chan struct{}
}

// NewReactor creates a reactor; call Run in its own goroutine to start the
// event loop.
func NewReactor(cfg ReactorConfig, cb Callbacks) (*Reactor, error) {
	cfg = cfg.withDefaults()
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("netio: epoll_create1: %w", err)
	}
	return &Reactor{
		cfg:          cfg,
		cb:           cb,
		epfd:         epfd,
		channels:     make(map[int]*Channel),
		listeners:    make(map[int]struct{}),
		pendingWrite: make(map[int]bool),
		tasks:        make(chan func(), 4096),
		done:         make(chan struct{}),
	}, nil
}

// Execute submits task to run on the reactor goroutine at the start of its
// next loop iteration (spec §4.4 step 1). Safe to call from any goroutine.
func (r *Reactor) Execute(task func()) {
	select {
	case r.tasks <- task:
	default:
		// Task queue saturated; run synchronously on the caller rather than
		// silently dropping a scheduled action (e.g. a heartbeat timer).
		task()
	}
}

// Stop sets a level-triggered flag; the next loop iteration exits, closes
// every channel (invoking OnDisconnected with a nil reason), and returns
// (spec §4.4 "Cancellation").
func (r *Reactor) Stop() {
	r.stopping.Store(true)
}

// Done returns a channel closed once Run has returned.
func (r *Reactor) Done() <-chan struct{} { return r.done }

// Run executes the event loop until Stop is called. Intended to be the
// entire body of a dedicated goroutine.
func (r *Reactor) Run() {
	defer close(r.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if r.cfg.CPUAffinity >= 0 {
		var mask unix.CPUSet
		mask.Set(r.cfg.CPUAffinity)
		if err := unix.SchedSetaffinity(0, &mask); err != nil {
			// Not fatal: continue unpinned (matches ublk runner's tolerant
			// fallback for CPU affinity failures).
			_ = err
		}
	}

	events := make([]unix.EpollEvent, maxEpollEvents)

	for !r.stopping.Load() {
		r.drainTaskQueue()

		timeout := r.cfg.SelectTimeoutMs
		if r.cfg.BusySpinMode {
			timeout = 0
		}
		n, err := unix.EpollWait(r.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			continue
		}

		for i := 0; i < n; i++ {
			r.handleEvent(events[i])
		}

		r.drainCommittedRings()
	}

	r.shutdown()
}

func (r *Reactor) drainTaskQueue() {
	for {
		select {
		case t := <-r.tasks:
			t()
		default:
			return
		}
	}
}

func (r *Reactor) handleEvent(ev unix.EpollEvent) {
	fd := int(ev.Fd)

	r.mu.Lock()
	_, isListener := r.listeners[fd]
	ch := r.channels[fd]
	r.mu.Unlock()

	if isListener {
		r.acceptLoop(fd)
		return
	}
	if ch == nil {
		return
	}

	if _, connecting := r.connecting.Load(fd); connecting {
		r.finishConnect(ch, ev)
		return
	}

	if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		r.disconnect(ch, fmt.Errorf("netio: epoll reported HUP/ERR on fd %d", fd))
		return
	}
	if ev.Events&unix.EPOLLIN != 0 {
		r.readChannel(ch)
	}
	if ev.Events&unix.EPOLLOUT != 0 {
		r.drainChannel(ch)
	}
}

// finishConnect resolves a non-blocking connect's outcome once the fd
// first becomes writable (spec §4.4 "connect-finish").
func (r *Reactor) finishConnect(ch *Channel, ev unix.EpollEvent) {
	r.connecting.Delete(ch.fd)

	if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		r.failConnect(ch, fmt.Errorf("netio: connect failed on fd %d", ch.fd))
		return
	}

	errno, err := unix.GetsockoptInt(ch.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil || errno != 0 {
		reason := err
		if reason == nil {
			reason = unix.Errno(errno)
		}
		r.failConnect(ch, reason)
		return
	}

	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, ch.fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(ch.fd)}); err != nil {
		r.failConnect(ch, err)
		return
	}
	if r.cb.OnConnected != nil {
		r.cb.OnConnected(ch)
	}
}

func (r *Reactor) failConnect(ch *Channel, reason error) {
	r.mu.Lock()
	delete(r.channels, ch.fd)
	r.mu.Unlock()
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, ch.fd, nil)
	_ = ch.Close()
	if r.cb.OnConnectFailed != nil {
		r.cb.OnConnectFailed(ch.Remote(), reason)
	}
}

func (r *Reactor) readChannel(ch *Channel) {
	for {
		n, err := unix.Read(ch.fd, ch.readBuf[ch.readLen:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			r.disconnect(ch, err)
			return
		}
		if n == 0 {
			r.disconnect(ch, nil)
			return
		}
		ch.readLen += n
		if ch.readLen == len(ch.readBuf) {
			break // buffer full for this pass; resume next iteration
		}
	}

	if ch.readLen == 0 || ch.handler == nil {
		return
	}
	consumed, err := ch.handler.OnDataReceived(ch, ch.readBuf[:ch.readLen])
	if err != nil {
		r.disconnect(ch, err)
		return
	}
	if consumed > 0 {
		remaining := ch.readLen - consumed
		if remaining > 0 {
			copy(ch.readBuf, ch.readBuf[consumed:ch.readLen])
		}
		ch.readLen = remaining
	}
}

func (r *Reactor) drainChannel(ch *Channel) {
	wantWrite, err := ch.Drain()
	if err != nil {
		r.disconnect(ch, err)
		return
	}
	r.setWriteInterest(ch, wantWrite)
}

// drainCommittedRings drains every registered channel with pending
// outbound ring-buffer records (spec §4.4 step 4). A producer-side
// selector wakeup is modeled here as simply visiting every channel each
// iteration; PendingBytes lets us skip idle channels cheaply.
func (r *Reactor) drainCommittedRings() {
	r.mu.Lock()
	chans := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		chans = append(chans, ch)
	}
	r.mu.Unlock()

	for _, ch := range chans {
		if ch.IsClosed() || (ch.ring.PendingBytes() == 0 && !ch.hasWriteResidual()) {
			continue
		}
		r.drainChannel(ch)
	}
}

func (r *Reactor) setWriteInterest(ch *Channel, want bool) {
	r.mu.Lock()
	have := r.pendingWrite[ch.fd]
	r.mu.Unlock()
	if want == have {
		return
	}

	events := uint32(unix.EPOLLIN)
	if want {
		events |= unix.EPOLLOUT
	}
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, ch.fd, &unix.EpollEvent{Events: events, Fd: int32(ch.fd)})

	r.mu.Lock()
	r.pendingWrite[ch.fd] = want
	r.mu.Unlock()
}

func (r *Reactor) disconnect(ch *Channel, reason error) {
	r.mu.Lock()
	delete(r.channels, ch.fd)
	delete(r.pendingWrite, ch.fd)
	r.mu.Unlock()

	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, ch.fd, nil)
	_ = ch.Close()

	if r.cb.OnDisconnected != nil {
		r.cb.OnDisconnected(ch, reason)
	}
}

func (r *Reactor) shutdown() {
	r.mu.Lock()
	chans := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		chans = append(chans, ch)
	}
	r.channels = make(map[int]*Channel)
	r.mu.Unlock()

	for _, ch := range chans {
		_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, ch.fd, nil)
		_ = ch.Close()
		if r.cb.OnDisconnected != nil {
			r.cb.OnDisconnected(ch, nil)
		}
	}
	_ = unix.Close(r.epfd)
}

// registerChannel adds ch to the reactor's selector, interested initially
// in EPOLLIN only.
func (r *Reactor) registerChannel(ch *Channel) error {
	r.mu.Lock()
	r.channels[ch.fd] = ch
	r.mu.Unlock()
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, ch.fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(ch.fd)})
}

// Listen opens a non-blocking listening socket on addr (host:port) and
// registers it with the selector; accepted connections become Channels via
// the configured handler/callbacks.
func (r *Reactor) Listen(addr string, handler Handler) error {
	fd, sa, err := resolveAndSocket(addr)
	if err != nil {
		return err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return err
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("netio: bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, 1024); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("netio: listen %s: %w", addr, err)
	}

	r.mu.Lock()
	r.listeners[fd] = struct{}{}
	r.mu.Unlock()

	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}); err != nil {
		return err
	}
	r.acceptHandlers.Store(fd, handler)
	return nil
}

func (r *Reactor) acceptLoop(listenFd int) {
	h, _ := r.acceptHandlers.Load(listenFd)
	handler, _ := h.(Handler)
	for {
		connFd, _, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			return
		}
		ch := NewChannel(connFd, "", handler, r.cfg.Channel)
		if err := r.registerChannel(ch); err != nil {
			_ = ch.Close()
			continue
		}
		if r.cb.OnConnected != nil {
			r.cb.OnConnected(ch)
		}
	}
}

// Connect opens a non-blocking outbound connection to addr; OnConnected
// fires once the connect completes (spec §4.4 "connect-finish") or
// OnConnectFailed if it does not.
func (r *Reactor) Connect(addr string, handler Handler) error {
	fd, sa, err := resolveAndSocket(addr)
	if err != nil {
		return err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return err
	}

	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		if r.cb.OnConnectFailed != nil {
			r.cb.OnConnectFailed(addr, err)
		}
		return err
	}

	ch := NewChannel(fd, addr, handler, r.cfg.Channel)
	r.mu.Lock()
	r.channels[fd] = ch
	r.mu.Unlock()
	r.connecting.Store(fd, struct{}{})

	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: unix.EPOLLOUT, Fd: int32(fd)})
}
