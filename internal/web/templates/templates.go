// Package templates renders the server's HTML pages.
//
// Components are written in .templ files; run `templ generate` after
// editing them.
package templates

// KindStatus is one row of the status page.
type KindStatus struct {
	Key   string
	Label string
	Count int64
}
