// Package form models an admin form as a tree of observable fields.
//
// Fields are select, text or checkbox widgets. Every mutation goes through the
// field so the invariants hold at all times: a select value is either empty or
// one of the current options, option lists carry a single leading placeholder
// and never contain duplicates. Mutations notify subscribers in order, one at a
// time, which gives callers the same run-to-completion guarantees a browser
// event loop provides without any polling.
//
// Dynamic formset rows are added with Form.AddRow. Template rows (names that
// contain "__prefix__") are never returned by the locator.
package form
