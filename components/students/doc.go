// Package students serves the student lookup used by the "add student" admin
// form and the endpoint that links an existing student to the active
// institution. It also models the operator side of the lookup: the message
// shown for each outcome and copying a found record into the form.
package students
