// Package catalog holds the reference data behind the enrollment form: the
// territorial division (provinces, cantons, districts), grade levels, school
// years, the specialties, sections and subgroups each institution offers per
// school year, and the students known to the system.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrNotFound      = errors.New("catalog: not found")
	ErrAlreadyLinked = errors.New("catalog: student already linked to institution")
)

// Student types.
const (
	StudentRegular = "PR"
	StudentPN      = "PN"
)

type Province struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"nombre" yaml:"nombre"`
}

type Canton struct {
	ID         int64  `json:"id" yaml:"id"`
	ProvinceID int64  `json:"-" yaml:"provincia"`
	Name       string `json:"nombre" yaml:"nombre"`
}

type District struct {
	ID       int64  `json:"id" yaml:"id"`
	CantonID int64  `json:"-" yaml:"canton"`
	Name     string `json:"nombre" yaml:"nombre"`
}

type Institution struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"nombre" yaml:"nombre"`
}

// Level is a grade (7 to 12).
type Level struct {
	ID     int64  `json:"id" yaml:"id"`
	Number int    `json:"numero" yaml:"numero"`
	Name   string `json:"nombre" yaml:"nombre"`
}

// Label renders the level as the admin shows it, e.g. "Décimo (10)".
func (l Level) Label() string {
	return fmt.Sprintf("%s (%d)", l.Name, l.Number)
}

// SchoolYear is a curso lectivo of one institution.
type SchoolYear struct {
	ID            int64  `json:"id" yaml:"id"`
	InstitutionID int64  `json:"-" yaml:"institucion"`
	Name          string `json:"nombre" yaml:"nombre"`
	Year          int    `json:"anio" yaml:"anio"`
}

type Modality struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"nombre" yaml:"nombre"`
}

type Specialty struct {
	ID         int64  `json:"id" yaml:"id"`
	ModalityID int64  `json:"-" yaml:"modalidad"`
	Name       string `json:"nombre" yaml:"nombre"`
}

type Section struct {
	ID      int64 `json:"id" yaml:"id"`
	LevelID int64 `json:"-" yaml:"nivel"`
	Number  int   `json:"numero" yaml:"numero"`
}

type Subgroup struct {
	ID        int64  `json:"id" yaml:"id"`
	SectionID int64  `json:"-" yaml:"seccion"`
	Letter    string `json:"letra" yaml:"letra"`
}

// Offering enables a specialty, section or subgroup for an institution and
// school year.
type Offering struct {
	InstitutionID int64 `yaml:"institucion"`
	SchoolYearID  int64 `yaml:"curso_lectivo"`
	ItemID        int64 `yaml:"id"`
	Active        bool  `yaml:"activa"`
}

// SpecialtyView is a specialty with its modality name.
type SpecialtyView struct {
	ID       int64  `json:"id"`
	Name     string `json:"nombre"`
	Modality string `json:"modalidad"`
}

// SectionView is a section with its level.
type SectionView struct {
	ID          int64 `json:"id"`
	LevelID     int64 `json:"nivel"`
	LevelNumber int   `json:"nivel_numero"`
	Number      int   `json:"numero"`
}

// Label renders "<level>-<section>", e.g. "10-1".
func (s SectionView) Label() string {
	return strconv.Itoa(s.LevelNumber) + "-" + strconv.Itoa(s.Number)
}

// SubgroupView is a subgroup with its section and level.
type SubgroupView struct {
	ID            int64  `json:"id"`
	SectionID     int64  `json:"seccion"`
	SectionNumber int    `json:"seccion_numero"`
	LevelNumber   int    `json:"nivel_numero"`
	Letter        string `json:"letra"`
}

// Label renders "<level>-<section><letter>", e.g. "10-1A".
func (s SubgroupView) Label() string {
	return strconv.Itoa(s.LevelNumber) + "-" + strconv.Itoa(s.SectionNumber) + s.Letter
}

// Student is the personal record shared across institutions.
type Student struct {
	ID             int64   `json:"id" yaml:"id"`
	Identification string  `json:"identificacion" yaml:"identificacion"`
	StudentType    string  `json:"tipo_estudiante" yaml:"tipo_estudiante"`
	FirstSurname   string  `json:"primer_apellido" yaml:"primer_apellido"`
	SecondSurname  string  `json:"segundo_apellido" yaml:"segundo_apellido"`
	Names          string  `json:"nombres" yaml:"nombres"`
	BirthDate      string  `json:"fecha_nacimiento" yaml:"fecha_nacimiento"`
	Sex            string  `json:"sexo" yaml:"sexo"`
	Nationality    string  `json:"nacionalidad" yaml:"nacionalidad"`
	Email          string  `json:"correo" yaml:"correo"`
	Mobile         string  `json:"celular,omitempty" yaml:"celular"`
	HomePhone      string  `json:"telefono_casa,omitempty" yaml:"telefono_casa"`
	Address        string  `json:"direccion_exacta,omitempty" yaml:"direccion_exacta"`
	ProvinceID     int64   `json:"provincia,omitempty" yaml:"provincia"`
	CantonID       int64   `json:"canton,omitempty" yaml:"canton"`
	DistrictID     int64   `json:"distrito,omitempty" yaml:"distrito"`
	Institutions   []int64 `json:"-" yaml:"instituciones"`
}

// FullName joins names and surnames the way the admin lists them.
func (s Student) FullName() string {
	name := s.Names
	for _, part := range []string{s.FirstSurname, s.SecondSurname} {
		if part == "" {
			continue
		}
		if name != "" {
			name += " "
		}
		name += part
	}
	return name
}

// LinkedTo reports whether the student belongs to institution.
func (s Student) LinkedTo(institution int64) bool {
	for _, id := range s.Institutions {
		if id == institution {
			return true
		}
	}
	return false
}

// Store reads the catalog and maintains student links.
type Store interface {
	Provinces(ctx context.Context) ([]Province, error)
	Cantons(ctx context.Context, provinceID int64) ([]Canton, error)
	Districts(ctx context.Context, cantonID int64) ([]District, error)

	Institution(ctx context.Context, id int64) (Institution, error)
	Levels(ctx context.Context) ([]Level, error)
	Level(ctx context.Context, id int64) (Level, error)
	SchoolYears(ctx context.Context, institutionID int64) ([]SchoolYear, error)
	// SchoolYear fails with ErrNotFound when the year belongs to another
	// institution.
	SchoolYear(ctx context.Context, institutionID, id int64) (SchoolYear, error)
	Section(ctx context.Context, id int64) (SectionView, error)

	// Specialties lists the active specialty offerings, ordered by name.
	Specialties(ctx context.Context, institutionID, schoolYearID int64) ([]SpecialtyView, error)
	// Sections lists the active section offerings of a level, ordered by
	// level and section number.
	Sections(ctx context.Context, institutionID, schoolYearID, levelID int64) ([]SectionView, error)
	// Subgroups lists the active subgroup offerings of a section, ordered by
	// level, section number and letter.
	Subgroups(ctx context.Context, institutionID, schoolYearID, sectionID int64) ([]SubgroupView, error)

	StudentByIdentification(ctx context.Context, identification string) (Student, error)
	// LinkStudent adds the student to an institution. It fails with
	// ErrAlreadyLinked when the link exists.
	LinkStudent(ctx context.Context, studentID, institutionID int64) error

	Close() error
}
