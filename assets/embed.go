// Package assets embeds the default content datasets and their JSON
// Schemas. The content package validates and types them at startup.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed lexicon.json qutrab.json proverbs.json root_facts.json schema/*.json
var FS embed.FS

// Content returns the embedded datasets as a read-only filesystem.
func Content() fs.FS { return FS }
