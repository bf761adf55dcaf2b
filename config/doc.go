// Package config loads transfer profiles from YAML and applies them to an
// [builder.EasyBuilder].
//
// A profile names the URL and any options that differ from the handle's
// defaults:
//
//	url: https://example.com/data
//	method: POST
//	data: name=value
//	headers:
//	  - "Accept: application/json"
//	proxy:
//	  url: socks5h://127.0.0.1:1080
//	timeouts:
//	  total: 30s
//	redirects:
//	  follow: true
//	  max: 5
//
// Profiles are validated when loaded:
//
//	p, err := config.Load("transfer.yaml")
//	if err != nil {
//		var fe config.FieldErrors
//		errors.As(err, &fe)
//	}
//	h, err := p.Apply(builder.NewEasy()).Result()
package config
