// Package static embeds the OpenAPI document and its viewer page.
package static

import "embed"

//go:embed openapi.html openapi.json
var FS embed.FS
