package config

import "github.com/pkg/errors"

// Listener groups every virtual host (Server block) that shares one
// (address, port) binding, in declaration order — the first one is the
// default host for that listener, per the host-selection rule.
type Listener struct {
	Addr  string
	Hosts []*Server
}

// BuildListeners groups cfg's server blocks by listen address. Every
// Listener ends up with at least one virtual host, satisfying the data
// model's invariant.
func BuildListeners(cfg *Config) ([]*Listener, error) {
	byAddr := map[string]*Listener{}
	var order []string

	for _, srv := range cfg.Servers {
		for _, addr := range srv.Listen {
			l, ok := byAddr[addr]
			if !ok {
				l = &Listener{Addr: addr}
				byAddr[addr] = l
				order = append(order, addr)
			}
			l.Hosts = append(l.Hosts, srv)
		}
	}
	if len(order) == 0 {
		return nil, errors.New("config produced no listeners")
	}

	listeners := make([]*Listener, 0, len(order))
	for _, addr := range order {
		listeners = append(listeners, byAddr[addr])
	}
	return listeners, nil
}

// SelectHost implements the host-selection rule: the first virtual host on
// the listener whose server_names contains host, else the listener's first
// (default) host.
func (l *Listener) SelectHost(host string) *Server {
	for _, h := range l.Hosts {
		for _, name := range h.ServerNames {
			if name == host {
				return h
			}
		}
	}
	return l.Hosts[0]
}
