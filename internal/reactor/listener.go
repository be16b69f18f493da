//go:build linux

package reactor

import (
	"net"
	"strconv"
	"syscall"

	"github.com/AKMHZJ/go-localserver/internal/config"
	"github.com/AKMHZJ/go-localserver/internal/errs"
)

// boundListener is one listening socket the reactor owns, paired with the
// virtual-host set (config.Listener) it serves.
type boundListener struct {
	fd  int
	cfg *config.Listener
}

// openListener opens a non-blocking IPv4 listening socket bound to addr
// ("host:port"), fails fatally on any error per the bind contract.
func openListener(addr string) (int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return -1, errs.Wrap(errs.KindBind, err, "parsing listen address "+addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return -1, errs.Wrap(errs.KindBind, err, "parsing listen port in "+addr)
	}

	ip := net.IPv4zero
	if host != "" && host != "0.0.0.0" {
		parsed := net.ParseIP(host)
		if parsed == nil {
			ips, lookupErr := net.LookupIP(host)
			if lookupErr != nil || len(ips) == 0 {
				return -1, errs.Wrap(errs.KindBind, lookupErr, "resolving listen host "+host)
			}
			parsed = ips[0]
		}
		ip = parsed
	}
	v4 := ip.To4()
	if v4 == nil {
		return -1, errs.New(errs.KindBind, "only IPv4 listen addresses are supported: "+addr)
	}

	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM, 0)
	if err != nil {
		return -1, errs.Wrap(errs.KindBind, err, "creating socket for "+addr)
	}
	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		_ = closeFd(fd)
		return -1, errs.Wrap(errs.KindBind, err, "setting SO_REUSEADDR for "+addr)
	}

	sa := &syscall.SockaddrInet4{Port: port}
	copy(sa.Addr[:], v4)
	if err := syscall.Bind(fd, sa); err != nil {
		_ = closeFd(fd)
		return -1, errs.Wrap(errs.KindBind, err, "binding "+addr)
	}
	if err := syscall.Listen(fd, 1024); err != nil {
		_ = closeFd(fd)
		return -1, errs.Wrap(errs.KindBind, err, "listening on "+addr)
	}
	if err := setNonblock(fd); err != nil {
		_ = closeFd(fd)
		return -1, errs.Wrap(errs.KindBind, err, "setting listener non-blocking for "+addr)
	}
	return fd, nil
}
