// Package web embeds the stopwatch page served at the root route.
package web

import _ "embed"

//go:embed index.html
var Index []byte
