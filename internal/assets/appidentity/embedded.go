package appidentityassets

import _ "embed"

// YAML is the canonical stocklens app identity (binary name, config name,
// STOCKLENS_ env prefix). It is embedded so the standalone binary resolves
// identity without an external `.fulmen/app.yaml`; internal/appid registers
// it at init.
//
//go:embed app.yaml
var YAML []byte
