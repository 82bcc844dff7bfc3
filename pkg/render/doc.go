// Package render produces the HTML fragments the admin swaps into the page:
// the <option> list of a dependent select and operator alerts.
//
// Labels come from the catalog and are sanitized before rendering. CSS
// classes are theme tokens resolved through go-theme.
package render
