// Package appfs embeds the static assets shipped with the binaries.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/*.txt templates/email/*.gohtml fixtures/*.json
var FS embed.FS
