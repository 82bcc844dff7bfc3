package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is a Store over an in-memory Dataset.
type Memory struct {
	mu sync.RWMutex
	ds Dataset
}

var _ Store = (*Memory)(nil)

// NewMemory copies ds into a new store.
func NewMemory(ds Dataset) (*Memory, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	students := make([]Student, len(ds.Students))
	for i, st := range ds.Students {
		st.Institutions = append([]int64(nil), st.Institutions...)
		students[i] = st
	}
	ds.Students = students
	return &Memory{ds: ds}, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Provinces(ctx context.Context) ([]Province, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Province(nil), m.ds.Provinces...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Cantons(ctx context.Context, provinceID int64) ([]Canton, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasProvince(provinceID) {
		return nil, ErrNotFound
	}
	var out []Canton
	for _, c := range m.ds.Cantons {
		if c.ProvinceID == provinceID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) hasProvince(id int64) bool {
	for _, p := range m.ds.Provinces {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (m *Memory) Districts(ctx context.Context, cantonID int64) ([]District, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	found := false
	for _, c := range m.ds.Cantons {
		if c.ID == cantonID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNotFound
	}
	var out []District
	for _, d := range m.ds.Districts {
		if d.CantonID == cantonID {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Institution(ctx context.Context, id int64) (Institution, error) {
	if err := ctx.Err(); err != nil {
		return Institution{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inst := range m.ds.Institutions {
		if inst.ID == id {
			return inst, nil
		}
	}
	return Institution{}, ErrNotFound
}

func (m *Memory) Levels(ctx context.Context) ([]Level, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Level(nil), m.ds.Levels...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *Memory) Level(ctx context.Context, id int64) (Level, error) {
	if err := ctx.Err(); err != nil {
		return Level{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level(id)
}

func (m *Memory) level(id int64) (Level, error) {
	for _, l := range m.ds.Levels {
		if l.ID == id {
			return l, nil
		}
	}
	return Level{}, ErrNotFound
}

func (m *Memory) SchoolYears(ctx context.Context, institutionID int64) ([]SchoolYear, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SchoolYear
	for _, y := range m.ds.SchoolYears {
		if y.InstitutionID == institutionID {
			out = append(out, y)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out, nil
}

func (m *Memory) SchoolYear(ctx context.Context, institutionID, id int64) (SchoolYear, error) {
	if err := ctx.Err(); err != nil {
		return SchoolYear{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, y := range m.ds.SchoolYears {
		if y.ID == id && y.InstitutionID == institutionID {
			return y, nil
		}
	}
	return SchoolYear{}, ErrNotFound
}

func (m *Memory) Section(ctx context.Context, id int64) (SectionView, error) {
	if err := ctx.Err(); err != nil {
		return SectionView{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.section(id)
}

func (m *Memory) section(id int64) (SectionView, error) {
	for _, s := range m.ds.Sections {
		if s.ID != id {
			continue
		}
		level, err := m.level(s.LevelID)
		if err != nil {
			return SectionView{}, err
		}
		return SectionView{ID: s.ID, LevelID: level.ID, LevelNumber: level.Number, Number: s.Number}, nil
	}
	return SectionView{}, ErrNotFound
}

func activeIDs(list []Offering, institutionID, schoolYearID int64) map[int64]bool {
	out := make(map[int64]bool)
	for _, o := range list {
		if o.Active && o.InstitutionID == institutionID && o.SchoolYearID == schoolYearID {
			out[o.ItemID] = true
		}
	}
	return out
}

func (m *Memory) Specialties(ctx context.Context, institutionID, schoolYearID int64) ([]SpecialtyView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	modalities := make(map[int64]string, len(m.ds.Modalities))
	for _, mod := range m.ds.Modalities {
		modalities[mod.ID] = mod.Name
	}
	active := activeIDs(m.ds.Offerings.Specialties, institutionID, schoolYearID)
	var out []SpecialtyView
	for _, s := range m.ds.Specialties {
		if active[s.ID] {
			out = append(out, SpecialtyView{ID: s.ID, Name: s.Name, Modality: modalities[s.ModalityID]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Sections(ctx context.Context, institutionID, schoolYearID, levelID int64) ([]SectionView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	active := activeIDs(m.ds.Offerings.Sections, institutionID, schoolYearID)
	var out []SectionView
	for _, s := range m.ds.Sections {
		if !active[s.ID] || s.LevelID != levelID {
			continue
		}
		view, err := m.section(s.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LevelNumber != out[j].LevelNumber {
			return out[i].LevelNumber < out[j].LevelNumber
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (m *Memory) Subgroups(ctx context.Context, institutionID, schoolYearID, sectionID int64) ([]SubgroupView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	section, err := m.section(sectionID)
	if err != nil {
		return nil, err
	}
	active := activeIDs(m.ds.Offerings.Subgroups, institutionID, schoolYearID)
	var out []SubgroupView
	for _, s := range m.ds.Subgroups {
		if !active[s.ID] || s.SectionID != sectionID {
			continue
		}
		out = append(out, SubgroupView{
			ID:            s.ID,
			SectionID:     section.ID,
			SectionNumber: section.Number,
			LevelNumber:   section.LevelNumber,
			Letter:        s.Letter,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Letter < out[j].Letter })
	return out, nil
}

func (m *Memory) StudentByIdentification(ctx context.Context, identification string) (Student, error) {
	if err := ctx.Err(); err != nil {
		return Student{}, err
	}
	identification = strings.TrimSpace(identification)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, st := range m.ds.Students {
		if st.Identification == identification {
			st.Institutions = append([]int64(nil), st.Institutions...)
			return st, nil
		}
	}
	return Student{}, ErrNotFound
}

func (m *Memory) LinkStudent(ctx context.Context, studentID, institutionID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for _, inst := range m.ds.Institutions {
		if inst.ID == institutionID {
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	for i := range m.ds.Students {
		st := &m.ds.Students[i]
		if st.ID != studentID {
			continue
		}
		if st.LinkedTo(institutionID) {
			return ErrAlreadyLinked
		}
		st.Institutions = append(st.Institutions, institutionID)
		return nil
	}
	return ErrNotFound
}
