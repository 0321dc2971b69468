// Package config loads bridge configuration from YAML.
//
// A configuration file looks like:
//
//	library:
//	  path: ./build/mylib.wasm
//	  namespace: mylib
//	  manifest: ./mylib.wit
//	  memory_limit_pages: 256
//	logger:
//	  level: debug
//	  format: console
//	tracer:
//	  enabled: true
//	  exporter: stdout
//	contract:
//	  version: 26
//	  checksums:
//	    greet: 41297
//
// Missing files and fields fall back to Defaults. FFIBRIDGE_* environment
// variables override file values; see ApplyEnvOverrides.
package config
