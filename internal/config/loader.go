package config

import (
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/AKMHZJ/go-localserver/internal/errs"
)

const (
	defaultIdleTimeout = 60_000_000_000 // 60s, in ns; avoided importing time here for the const
	defaultReadChunk   = 64 * 1024
	defaultCGITimeout  = 5_000_000_000 // 5s
)

// Load reads and validates the configuration document at path.
func Load(path string) (*Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "reading config file")
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "parsing config yaml")
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "validating config")
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = Duration(defaultIdleTimeout)
	}
	if cfg.ReadChunk == 0 {
		cfg.ReadChunk = defaultReadChunk
	}
	if cfg.CGITimeout == 0 {
		cfg.CGITimeout = Duration(defaultCGITimeout)
	}
	for _, srv := range cfg.Servers {
		for i, route := range srv.Routes {
			route.declOrder = i
			if len(route.Methods) == 0 {
				route.Methods = []string{"GET"}
			}
			if route.Redirect != nil && route.Redirect.Status == 0 {
				route.Redirect.Status = 301
			}
			if route.DirectoryListingOrder == "" {
				route.DirectoryListingOrder = "name"
			}
		}
	}
}

// validate enforces the config-level invariants: at least one server, every
// server has a listen address, every route prefix starts with '/', methods
// are GET/POST/DELETE, every route has a root, upload_dir, or redirect, and
// directory_listing_order is name, size, or mtime.
func validate(cfg *Config) error {
	if len(cfg.Servers) == 0 {
		return errors.New("config declares no servers")
	}
	for si, srv := range cfg.Servers {
		if len(srv.Listen) == 0 {
			return errors.Errorf("server[%d]: no listen addresses", si)
		}
		for ri, route := range srv.Routes {
			if route.Prefix == "" || route.Prefix[0] != '/' {
				return errors.Errorf("server[%d].routes[%d]: prefix must start with '/'", si, ri)
			}
			for _, m := range route.Methods {
				switch m {
				case "GET", "POST", "DELETE":
				default:
					return errors.Errorf("server[%d].routes[%d]: unsupported method %q", si, ri, m)
				}
			}
			if route.Redirect == nil && route.Root == "" && route.UploadDir == "" {
				return errors.Errorf("server[%d].routes[%d]: needs root, upload_dir, or redirect", si, ri)
			}
			switch route.DirectoryListingOrder {
			case "", "name", "size", "mtime":
			default:
				return errors.Errorf("server[%d].routes[%d]: unsupported directory_listing_order %q", si, ri, route.DirectoryListingOrder)
			}
		}
	}
	return nil
}

// Validate re-validates an already-loaded config (used by config tests that
// construct a Config in memory rather than from a file).
func Validate(cfg *Config) error {
	return validate(cfg)
}

// String renders a Route for logging/debug purposes.
func (r *Route) String() string {
	return fmt.Sprintf("Route{prefix=%s root=%s methods=%v}", r.Prefix, r.Root, r.Methods)
}
