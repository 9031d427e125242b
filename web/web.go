// Package web bundles the kiosk page, its script and the translations into the binary.
package web

import "embed"

//go:embed templates/*.html
var Templates embed.FS

//go:embed static
var Static embed.FS

//go:embed locales/*.json
var Locales embed.FS
