package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adamwoolhether/easyhttp/handle"
)

// Profile describes a transfer in a YAML document. Zero values leave the
// handle's defaults in place.
type Profile struct {
	URL         string   `yaml:"url" validate:"required,http_url"`
	Method      string   `yaml:"method" validate:"omitempty,uppercase,printascii"`
	Headers     []string `yaml:"headers" validate:"dive,header_line"`
	UserAgent   string   `yaml:"user_agent"`
	Referer     string   `yaml:"referer"`
	Data        string   `yaml:"data"`
	Range       string   `yaml:"range"`
	Compressed  bool     `yaml:"compressed"`
	FailOnError bool     `yaml:"fail_on_error"`
	Verbose     bool     `yaml:"verbose"`
	ShowHeader  bool     `yaml:"show_header"`

	IPResolve handle.IPResolve `yaml:"ip_resolve"`

	Auth      *Auth      `yaml:"auth"`
	Proxy     *Proxy     `yaml:"proxy"`
	TLS       *TLS       `yaml:"tls"`
	Timeouts  Timeouts   `yaml:"timeouts"`
	Limits    Limits     `yaml:"limits"`
	Cookies   *Cookies   `yaml:"cookies"`
	Redirects *Redirects `yaml:"redirects"`
}

type Auth struct {
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password"`
}

type Proxy struct {
	URL      string           `yaml:"url" validate:"required"`
	Port     int              `yaml:"port" validate:"gte=0,lte=65535"`
	Type     handle.ProxyType `yaml:"type"`
	Username string           `yaml:"username"`
	Password string           `yaml:"password"`
	NoProxy  string           `yaml:"no_proxy"`
	Tunnel   bool             `yaml:"tunnel"`
}

type TLS struct {
	Insecure    bool              `yaml:"insecure"`
	CAInfo      string            `yaml:"ca_info" validate:"omitempty,file"`
	CAPath      string            `yaml:"ca_path" validate:"omitempty,dir"`
	CRLFile     string            `yaml:"crl_file" validate:"omitempty,file"`
	Cert        string            `yaml:"cert" validate:"omitempty,file"`
	Key         string            `yaml:"key" validate:"omitempty,file"`
	KeyPassword string            `yaml:"key_password"`
	MinVersion  handle.SSLVersion `yaml:"min_version"`
	Ciphers     string            `yaml:"ciphers"`
}

type Timeouts struct {
	Total    time.Duration `yaml:"total" validate:"gte=0"`
	Connect  time.Duration `yaml:"connect" validate:"gte=0"`
	DNSCache time.Duration `yaml:"dns_cache"`
}

// Limits holds transfer limits. Speeds are in bytes per second.
type Limits struct {
	MaxRecvSpeed  int64         `yaml:"max_recv_speed" validate:"gte=0"`
	MaxSendSpeed  int64         `yaml:"max_send_speed" validate:"gte=0"`
	MaxFilesize   int64         `yaml:"max_filesize" validate:"gte=0"`
	LowSpeedLimit int64         `yaml:"low_speed_limit" validate:"gte=0"`
	LowSpeedTime  time.Duration `yaml:"low_speed_time" validate:"gte=0"`
	BufferSize    int           `yaml:"buffer_size" validate:"omitempty,min=1024,max=524288"`
}

type Cookies struct {
	Cookie  string   `yaml:"cookie"`
	Files   []string `yaml:"files"`
	Jar     string   `yaml:"jar"`
	Session bool     `yaml:"session"`
}

type Redirects struct {
	Follow           bool `yaml:"follow"`
	Max              *int `yaml:"max" validate:"omitempty,gte=-1"`
	AutoReferer      bool `yaml:"auto_referer"`
	UnrestrictedAuth bool `yaml:"unrestricted_auth"`
}

// Load reads and validates the profile stored at path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}

	return p, nil
}

// Parse decodes and validates a profile. Unknown keys are rejected.
func Parse(data []byte) (*Profile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty profile")
		}
		return nil, fmt.Errorf("decoding profile: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}
