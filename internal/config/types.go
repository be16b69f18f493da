// Package config implements the typed representation of the declarative
// configuration document: servers, listeners, routes, and limits. Loading
// and validating that document is an ambient concern of the complete
// server even though the core spec treats config syntax as an external
// collaborator.
package config

import "time"

// Duration is a thin wrapper around time.Duration that accepts Go duration
// strings ("5s", "500ms") in YAML, the way compose-go's types.Duration does.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the whole parsed configuration document.
type Config struct {
	Servers      []*Server     `yaml:"servers"`
	IdleTimeout  Duration      `yaml:"idle_timeout"`
	ReadChunk    int           `yaml:"read_chunk_bytes"`
	CGITimeout   Duration      `yaml:"cgi_timeout"`
}

// Server is one server block: one or more listen bindings sharing a set of
// virtual hosts (spec.md's VirtualHost, one per server block here — a
// single server block is itself one virtual host; several server blocks
// bound to the same listen address share a Listener at boot).
type Server struct {
	Listen             []string          `yaml:"listen"`
	ServerNames        []string          `yaml:"server_names"`
	ClientMaxBodySize  int64             `yaml:"client_max_body_size"`
	ErrorPages         map[int]string    `yaml:"error_pages"`
	Routes             []*Route          `yaml:"routes"`
}

// Route is a path-prefix policy within a server block.
type Route struct {
	Prefix      string            `yaml:"prefix"`
	Root        string            `yaml:"root"`
	Index       string            `yaml:"index"`
	Autoindex   bool              `yaml:"autoindex"`
	Methods     []string          `yaml:"methods"`
	Redirect    *Redirect         `yaml:"redirect"`
	UploadDir   string            `yaml:"upload_dir"`
	CGI         map[string]string `yaml:"cgi"`
	CGITimeout  *Duration         `yaml:"cgi_timeout"`

	// DirectoryListingOrder is the default autoindex sort key: "name"
	// (default), "size", or "mtime". A request's ?sort= query parameter
	// overrides it for that one listing.
	DirectoryListingOrder string `yaml:"directory_listing_order"`

	// declOrder records registration order within the server block, used to
	// break longest-prefix ties deterministically.
	declOrder int
}

// Redirect is a route's optional redirect target.
type Redirect struct {
	Target string `yaml:"target"`
	Status int    `yaml:"status"`
}

// AllowsMethod reports whether method is in the route's allowed set.
func (r *Route) AllowsMethod(method string) bool {
	for _, m := range r.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// CGIInterpreter returns the interpreter path configured for ext (including
// the leading dot), and whether one is configured at all.
func (r *Route) CGIInterpreter(ext string) (string, bool) {
	interp, ok := r.CGI[ext]
	return interp, ok
}
