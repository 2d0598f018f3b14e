// Package conf implements layered settings for configcheck.
//
// # Usage
//
//	config, err := conf.DefaultSource().Read()
//
// For custom configuration loading (e.g., testing), build a ConfigSource:
//
//	cs := &conf.ConfigSource{
//	    Path:      "/custom/path/config.toml",
//	    DropInDir: "/custom/path/config.toml.d",
//	}
//	config, err := cs.Read()
//
// # Load Order
//
// Config is loaded and applied in three layers:
//
//  1. Embedded defaults (config.toml in this package)
//  2. Main config file: /etc/configcheck/config.toml
//  3. Drop-in files: /etc/configcheck/config.toml.d/*.toml, in lexicographic order
//
// Each layer is validated on its own, so an error names the file that
// holds the bad value. Unknown keys are rejected.
//
// # Internal Architecture
//
//   - configDTO: internal struct with pointer fields for TOML parsing.
//     Pointers allow distinguishing "not set" (nil) from "set to zero value".
//
//   - Config: public struct with value fields. Has Update() method
//     to apply DTO values.
//
//   - ConfigSource: orchestrates loading from multiple sources and manages
//     their merging.
package conf
