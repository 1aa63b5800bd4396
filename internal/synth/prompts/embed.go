// Package prompts embeds the synthesis prompt templates.
package prompts

import "embed"

//go:embed *.md
var FS embed.FS
