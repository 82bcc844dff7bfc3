package students

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-matricula/pkg/form"
)

// Outcome classifies a lookup for the operator.
type Outcome string

const (
	OutcomeAvailable         Outcome = "available"
	OutcomeAlreadyRegistered Outcome = "already_registered"
	OutcomeFoundElsewhere    Outcome = "found_elsewhere"
)

// ErrMissingIdentification is returned when the search runs without an
// identification.
var ErrMissingIdentification = errors.New("students: identification is required")

// Alert renders a search error the way the operator is told about it.
func Alert(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrMissingIdentification) {
		return "Por favor ingrese una identificación"
	}
	return "Error al buscar el estudiante: " + err.Error()
}

// CopyLabel is the label of the copy action offered for students found in
// another institution.
const CopyLabel = "✓ Copiar datos y agregar a mi institución"

// Result is what the operator sees after a lookup.
type Result struct {
	Outcome Outcome
	Title   string
	Message string
	// CanCopy reports whether the copy action is offered.
	CanCopy bool
	Student *Student
}

// Interpret maps a lookup response to the operator message.
func Interpret(resp LookupResponse) Result {
	if !resp.Exists || resp.Student == nil {
		return Result{
			Outcome: OutcomeAvailable,
			Title:   "✓ Identificación disponible",
			Message: "No existe ningún estudiante con esta identificación. Puede continuar con el registro.",
		}
	}
	institution := ""
	if resp.Institution != nil {
		institution = resp.Institution.Name
	}
	if resp.AlreadyEnrolled {
		return Result{
			Outcome: OutcomeAlreadyRegistered,
			Title:   "⚠ Estudiante ya registrado en su institución",
			Message: fmt.Sprintf("Nombre: %s\nInstitución actual: %s", resp.Student.FullName, institution),
			Student: resp.Student,
		}
	}
	return Result{
		Outcome: OutcomeFoundElsewhere,
		Title:   "ℹ Estudiante encontrado en el sistema",
		Message: fmt.Sprintf("Nombre: %s\nFecha de nacimiento: %s\nInstitución actual: %s",
			resp.Student.FullName, resp.Student.BirthDate, institution),
		CanCopy: true,
		Student: resp.Student,
	}
}

// Client calls the student endpoints.
type Client struct {
	base        *url.URL
	http        *http.Client
	institution string
	token       func() string
	csrfHeader  string
}

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithActiveInstitution sends id in the X-Institucion-ID header.
func WithActiveInstitution(id int64) ClientOption {
	return func(c *Client) {
		if id > 0 {
			c.institution = strconv.FormatInt(id, 10)
		}
	}
}

// WithCSRFToken sets the token sent with the link request, both as header
// and cookie.
func WithCSRFToken(token func() string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient builds a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("students: invalid base url %q", baseURL)
	}
	c := &Client{
		base:       base,
		http:       &http.Client{Timeout: 10 * time.Second},
		csrfHeader: "X-CSRFToken",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Lookup queries the lookup endpoint.
func (c *Client) Lookup(ctx context.Context, identification string) (LookupResponse, error) {
	identification = strings.TrimSpace(identification)
	if identification == "" {
		return LookupResponse{}, ErrMissingIdentification
	}
	target := c.base.ResolveReference(&url.URL{Path: PathLookup, RawQuery: url.Values{"identificacion": {identification}}.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return LookupResponse{}, err
	}
	var resp LookupResponse
	if err := c.do(req, &resp); err != nil {
		return LookupResponse{}, fmt.Errorf("students: lookup: %w", err)
	}
	return resp, nil
}

// Search runs a lookup and interprets it.
func (c *Client) Search(ctx context.Context, identification string) (Result, error) {
	resp, err := c.Lookup(ctx, identification)
	if err != nil {
		return Result{}, err
	}
	return Interpret(resp), nil
}

// Link adds the student to the active institution.
func (c *Client) Link(ctx context.Context, studentID int64) (LinkResponse, error) {
	body := url.Values{"estudiante_id": {strconv.FormatInt(studentID, 10)}}.Encode()
	target := c.base.ResolveReference(&url.URL{Path: PathLink})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(body))
	if err != nil {
		return LinkResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.token != nil {
		token := c.token()
		req.Header.Set(c.csrfHeader, token)
		req.AddCookie(&http.Cookie{Name: "csrftoken", Value: token})
	}
	var resp LinkResponse
	if err := c.do(req, &resp); err != nil {
		return LinkResponse{}, err
	}
	if !resp.Success {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if c.institution != "" {
		req.Header.Set("X-Institucion-ID", c.institution)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		var failure LinkResponse
		if json.Unmarshal(body, &failure) == nil && failure.Error != "" {
			return fmt.Errorf("%s: %s", res.Status, failure.Error)
		}
		return errors.New(res.Status)
	}
	return json.Unmarshal(body, out)
}

// Settler waits until dependent fields finished loading their options.
type Settler interface {
	Wait()
}

// CopyInto fills the form with a found student. Empty values are skipped.
// The province, canton and district selections are applied in order, waiting
// on settle between them so each list is loaded before its value is set.
func CopyInto(f *form.Form, st *Student, settle Settler) error {
	if f == nil || st == nil {
		return nil
	}
	steps := []struct {
		field string
		value string
		wait  bool
	}{
		{"identificacion", st.Identification, false},
		{"primer_apellido", st.FirstSurname, false},
		{"segundo_apellido", st.SecondSurname, false},
		{"nombres", st.Names, false},
		{"correo", st.Email, false},
		{"celular", st.Mobile, false},
		{"telefono_casa", st.HomePhone, false},
		{"direccion_exacta", st.Address, false},
		{"sexo", st.Sex, false},
		{"nacionalidad", st.Nationality, false},
		{"fecha_nacimiento", st.BirthDate, false},
		{"provincia", st.ProvinceID, true},
		{"canton", st.CantonID, true},
		{"distrito", st.DistrictID, true},
	}

	var errs []error
	for _, step := range steps {
		if step.value == "" {
			continue
		}
		field, ok := f.Field(step.field)
		if !ok {
			continue
		}
		if err := field.Set(step.value); err != nil {
			errs = append(errs, err)
			continue
		}
		if step.wait && settle != nil {
			settle.Wait()
		}
	}
	return errors.Join(errs...)
}
