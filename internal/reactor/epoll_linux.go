//go:build linux

// Raw epoll syscalls, grounded on docker-compose's archutils/epoll.go and
// execution/executors/shim/shim.go, which wrap the same three calls
// (EpollCreate1/EpollCtl/EpollWait) directly from the standard library's
// syscall package rather than golang.org/x/sys/unix — the pack's own
// precedent for this exact concern, so no third-party epoll binding is
// pulled in here (see DESIGN.md).
package reactor

import "syscall"

const (
	epollinFlag  = syscall.EPOLLIN
	epolloutFlag = syscall.EPOLLOUT
	epollctlAdd  = syscall.EPOLL_CTL_ADD
	epollctlMod  = syscall.EPOLL_CTL_MOD
	epollctlDel  = syscall.EPOLL_CTL_DEL
)

func epollCreate() (int, error) {
	return syscall.EpollCreate1(0)
}

func epollCtl(epfd, op, fd int, events uint32) error {
	ev := syscall.EpollEvent{Events: events, Fd: int32(fd)}
	return syscall.EpollCtl(epfd, op, fd, &ev)
}

func epollWait(epfd int, events []syscall.EpollEvent, msec int) (int, error) {
	return syscall.EpollWait(epfd, events, msec)
}

func setNonblock(fd int) error {
	return syscall.SetNonblock(fd, true)
}

func closeFd(fd int) error {
	return syscall.Close(fd)
}
