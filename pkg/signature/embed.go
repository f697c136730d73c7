package signature

import "embed"

// builtinFS embeds the built-in signature and signature set files.
//
//go:embed signatures/*.yml sets/*.yml
var builtinFS embed.FS
