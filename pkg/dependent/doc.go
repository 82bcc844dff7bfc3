// Package dependent keeps dependent form fields consistent with the fields
// they depend on.
//
// A Synchronizer owns two kinds of bindings. Edges connect driver fields to
// dependent fields: when a driver changes the dependents are cleared or their
// options are fetched again. Rules connect a driver to a section of fields
// whose visibility follows a predicate over the driver's value and label.
//
// Fetches run in their own goroutines. Every dependent binding keeps a
// generation counter so only the result of the latest request is applied,
// whatever order the responses arrive in.
package dependent
