package catalog

import (
	"embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embeddedData embed.FS

// Dataset is the YAML seed of a catalog.
type Dataset struct {
	Institutions []Institution `yaml:"instituciones"`
	Provinces    []Province    `yaml:"provincias"`
	Cantons      []Canton      `yaml:"cantones"`
	Districts    []District    `yaml:"distritos"`
	Levels       []Level       `yaml:"niveles"`
	Modalities   []Modality    `yaml:"modalidades"`
	Specialties  []Specialty   `yaml:"especialidades"`
	SchoolYears  []SchoolYear  `yaml:"cursos_lectivos"`
	Sections     []Section     `yaml:"secciones"`
	Subgroups    []Subgroup    `yaml:"subgrupos"`
	Offerings    Offerings     `yaml:"ofertas"`
	Students     []Student     `yaml:"estudiantes"`
}

// Offerings groups the per school year configuration.
type Offerings struct {
	Specialties []Offering `yaml:"especialidades"`
	Sections    []Offering `yaml:"secciones"`
	Subgroups   []Offering `yaml:"subgrupos"`
}

// DecodeDataset reads a YAML dataset.
func DecodeDataset(r io.Reader) (Dataset, error) {
	var ds Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil {
		return Dataset{}, fmt.Errorf("catalog: decode dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

// LoadDataset reads a YAML dataset from path.
func LoadDataset(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("catalog: open dataset: %w", err)
	}
	defer f.Close()
	return DecodeDataset(f)
}

// DefaultDataset returns the bundled demo dataset.
func DefaultDataset() (Dataset, error) {
	f, err := embeddedData.Open("data/seed.yaml")
	if err != nil {
		return Dataset{}, fmt.Errorf("catalog: open bundled dataset: %w", err)
	}
	defer f.Close()
	return DecodeDataset(f)
}

// Validate checks that every reference points at a declared record.
func (ds Dataset) Validate() error {
	ids := func(n int, id func(int) int64) map[int64]bool {
		out := make(map[int64]bool, n)
		for i := 0; i < n; i++ {
			out[id(i)] = true
		}
		return out
	}
	institutions := ids(len(ds.Institutions), func(i int) int64 { return ds.Institutions[i].ID })
	provinces := ids(len(ds.Provinces), func(i int) int64 { return ds.Provinces[i].ID })
	cantons := ids(len(ds.Cantons), func(i int) int64 { return ds.Cantons[i].ID })
	districts := ids(len(ds.Districts), func(i int) int64 { return ds.Districts[i].ID })
	levels := ids(len(ds.Levels), func(i int) int64 { return ds.Levels[i].ID })
	modalities := ids(len(ds.Modalities), func(i int) int64 { return ds.Modalities[i].ID })
	specialties := ids(len(ds.Specialties), func(i int) int64 { return ds.Specialties[i].ID })
	years := ids(len(ds.SchoolYears), func(i int) int64 { return ds.SchoolYears[i].ID })
	sections := ids(len(ds.Sections), func(i int) int64 { return ds.Sections[i].ID })
	subgroups := ids(len(ds.Subgroups), func(i int) int64 { return ds.Subgroups[i].ID })

	check := func(kind string, id int64, known map[int64]bool) error {
		if !known[id] {
			return fmt.Errorf("catalog: dataset references unknown %s %d", kind, id)
		}
		return nil
	}

	for _, c := range ds.Cantons {
		if err := check("provincia", c.ProvinceID, provinces); err != nil {
			return err
		}
	}
	for _, d := range ds.Districts {
		if err := check("canton", d.CantonID, cantons); err != nil {
			return err
		}
	}
	for _, s := range ds.Specialties {
		if err := check("modalidad", s.ModalityID, modalities); err != nil {
			return err
		}
	}
	for _, y := range ds.SchoolYears {
		if err := check("institucion", y.InstitutionID, institutions); err != nil {
			return err
		}
	}
	for _, s := range ds.Sections {
		if err := check("nivel", s.LevelID, levels); err != nil {
			return err
		}
	}
	for _, s := range ds.Subgroups {
		if err := check("seccion", s.SectionID, sections); err != nil {
			return err
		}
	}
	offerings := []struct {
		kind  string
		list  []Offering
		known map[int64]bool
	}{
		{"especialidad", ds.Offerings.Specialties, specialties},
		{"seccion", ds.Offerings.Sections, sections},
		{"subgrupo", ds.Offerings.Subgroups, subgroups},
	}
	for _, group := range offerings {
		for _, o := range group.list {
			if err := check("institucion", o.InstitutionID, institutions); err != nil {
				return err
			}
			if err := check("curso_lectivo", o.SchoolYearID, years); err != nil {
				return err
			}
			if err := check(group.kind, o.ItemID, group.known); err != nil {
				return err
			}
		}
	}
	for _, st := range ds.Students {
		if st.Identification == "" {
			return fmt.Errorf("catalog: student %d has no identification", st.ID)
		}
		for _, inst := range st.Institutions {
			if err := check("institucion", inst, institutions); err != nil {
				return err
			}
		}
		if st.DistrictID != 0 {
			if err := check("distrito", st.DistrictID, districts); err != nil {
				return err
			}
		}
	}
	return nil
}
