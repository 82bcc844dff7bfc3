// Package options fetches the choices of a dependent select field.
//
// A Fetcher receives the driver values of an edge and returns the option list
// for the dependent. HTTP fetches follow the endpoint contract of the
// enrollment admin: static and dynamic parameters, {{field:name}}
// placeholders in the URL, and response envelopes such as data, results or
// especialidades.
package options
