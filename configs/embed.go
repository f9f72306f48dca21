// Package configs embeds the configuration templates written by
// `searchkit config init`.
package configs

import _ "embed"

// ProjectConfigTemplate is written to .searchkit.yaml. It carries an
// example product schema.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

// UserConfigTemplate is written to the user config path by
// `searchkit config init --user`.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
