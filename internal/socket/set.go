package socket

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Set tracks a group of sockets awaiting readability. It is the library's
// only multiplexing primitive: WaitAny suspends the calling goroutine until
// at least one member has a pending datagram, or the timeout elapses.
type Set struct {
	members map[int]*Socket
}

func NewSet() *Set {
	return &Set{members: make(map[int]*Socket)}
}

func (set *Set) Add(s *Socket) {
	set.members[s.fd] = s
}

func (set *Set) Remove(s *Socket) {
	delete(set.members, s.fd)
}

func (set *Set) Len() int {
	return len(set.members)
}

// WaitAny returns the members that are readable, in descriptor order as
// reported by select(2). An empty result with nil error means the timeout
// elapsed, the wait was interrupted by a signal, or the set is empty.
func (set *Set) WaitAny(timeout time.Duration) ([]*Socket, error) {
	if len(set.members) == 0 {
		return nil, nil
	}

	var fds unix.FdSet
	fds.Zero()
	nfds := 0
	for fd := range set.members {
		fds.Set(fd)
		if fd >= nfds {
			nfds = fd + 1
		}
	}

	var tv *unix.Timeval
	if timeout > 0 {
		t := unix.NsecToTimeval(timeout.Nanoseconds())
		tv = &t
	}
	n, err := unix.Select(nfds, &fds, nil, nil, tv)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, errors.Wrap(err, "wait for ready sockets")
	}
	if n == 0 {
		return nil, nil
	}

	ready := make([]*Socket, 0, n)
	for fd := 0; fd < nfds; fd++ {
		if s, ok := set.members[fd]; ok && fds.IsSet(fd) {
			ready = append(ready, s)
		}
	}
	return ready, nil
}
