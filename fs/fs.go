// Package appfs exposes the files embedded in the binaries: database migrations,
// the inspection checklist catalogue, email templates and password lists.
package appfs

import "embed"

//go:embed migrations/*.sql assets
var FS embed.FS
