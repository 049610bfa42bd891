//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// epollTimeoutMS bounds each epoll_wait so cancellation is noticed.
const epollTimeoutMS = 250

// readInputEventsEpoll reads from all input devices on one goroutine using
// epoll and sends key events to events. It returns nil when ctx is canceled.
func readInputEventsEpoll(ctx context.Context, files []*os.File, events chan<- inputEvent) error {
	if len(files) == 0 {
		return errors.New("no input devices provided")
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	fdToFile := make(map[int32]*os.File, len(files))
	for _, f := range files {
		fd := int(f.Fd())
		fdToFile[int32(fd)] = f

		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			return fmt.Errorf("epoll_ctl_add %s: %w", f.Name(), err)
		}
	}

	const maxEvents = 32
	ready := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, inputEventSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.EpollWait(epfd, ready, epollTimeoutMS)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			f := fdToFile[ready[i].Fd]
			if f == nil {
				continue
			}
			if ready[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				return fmt.Errorf("device error/hangup: %s", f.Name())
			}

			if _, err := f.Read(buf); err != nil {
				return fmt.Errorf("read from %s: %w", f.Name(), err)
			}
			ev, ok := decodeInputEvent(buf)
			if !ok || ev.Type != EV_KEY {
				continue
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
