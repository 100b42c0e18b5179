// Package config defines the client configuration and loads it from
// built-in defaults, a TOML or YAML file, and MUDSTREAM_* environment
// variables, in increasing order of precedence. Command-line flags are
// applied by the caller on top of the result.
//
// A config file looks like:
//
//	[connection]
//	host = "mud.example.com"
//	port = 4000
//	dialTimeout = "10s"
//
//	[display]
//	defaultFg = "white-low"
//	defaultBg = "black-low"
//	utf8 = true
//
//	[mxp]
//	enabled = true
//	images = false
//
// The watcher subpackage reports changes to the file so the application
// can reload it.
package config
