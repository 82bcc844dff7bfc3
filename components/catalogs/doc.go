// Package catalogs serves the JSON endpoints the enrollment form fetches its
// dependent option lists from: cantons and districts of the territorial
// division, the specialties offered in a school year, sections and subgroups,
// and the autocomplete widgets of the enrollment formset.
//
// Handlers are stateless over a catalog.Store. The active institution of a
// request is resolved by Options.Institution (the X-Institucion-ID header by
// default).
package catalogs
