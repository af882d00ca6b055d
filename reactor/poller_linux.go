//go:build linux
// +build linux

// File: reactor/poller_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) poller with an eventfd(2) wakeup channel.

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-nio/api"
)

type epollPoller struct {
	epfd   int
	wakefd int
	raw    []unix.EpollEvent

	// mu guards wakefd against Close while another goroutine wakes us.
	mu     sync.RWMutex
	closed bool
}

// NewPoller creates a level-triggered epoll instance.
func NewPoller(maxEvents int) (Poller, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return &epollPoller{
		epfd:   epfd,
		wakefd: wakefd,
		raw:    make([]unix.EpollEvent, maxEvents),
	}, nil
}

func toEpoll(i api.Interest) uint32 {
	var ev uint32
	if i&api.OpRead != 0 {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if i&api.OpWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func fromEpoll(ev uint32) api.Interest {
	var i api.Interest
	if ev&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
		i |= api.OpRead
	}
	if ev&unix.EPOLLOUT != 0 {
		i |= api.OpWrite
	}
	if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		i |= api.OpAll
	}
	return i
}

func (p *epollPoller) Add(fd int, interest api.Interest) error {
	ev := &unix.EpollEvent{Events: toEpoll(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

func (p *epollPoller) Modify(fd int, interest api.Interest) error {
	ev := &unix.EpollEvent{Events: toEpoll(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

func (p *epollPoller) Delete(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

func (p *epollPoller) Wait(events []Event, timeoutMs int) (int, error) {
	max := len(events)
	if max > len(p.raw) {
		max = len(p.raw)
	}
	if max == 0 {
		return 0, nil
	}
	n, err := unix.EpollWait(p.epfd, p.raw[:max], timeoutMs)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	out := 0
	for _, ev := range p.raw[:n] {
		if int(ev.Fd) == p.wakefd {
			p.drainWakeup()
			continue
		}
		events[out] = Event{FD: int(ev.Fd), Ready: fromEpoll(ev.Events)}
		out++
	}
	return out, nil
}

func (p *epollPoller) drainWakeup() {
	var buf [8]byte
	for {
		_, err := unix.Read(p.wakefd, buf[:])
		if err == nil || errors.Is(err, unix.EINTR) {
			continue
		}
		return
	}
}

func (p *epollPoller) Wakeup() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPollerClosed
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(p.wakefd, buf[:])
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			// Counter saturated; a wakeup is already pending.
			return nil
		default:
			return fmt.Errorf("eventfd write: %w", err)
		}
	}
}

func (p *epollPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	err1 := unix.Close(p.wakefd)
	err2 := unix.Close(p.epfd)
	if err1 != nil {
		return fmt.Errorf("close eventfd: %w", err1)
	}
	if err2 != nil {
		return fmt.Errorf("close epoll: %w", err2)
	}
	return nil
}
