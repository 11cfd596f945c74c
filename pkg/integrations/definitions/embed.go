package definitions

import "embed"

// FS contains the embedded app function definitions
//
//go:embed *.yaml
var FS embed.FS
