package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLite is a Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (and migrates) the database at path. ":memory:" keeps the
// catalog in memory for the life of the store.
func OpenSQLite(path string) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("catalog: database path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("catalog: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("catalog: pragma %q: %w", p, err)
		}
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS institucion (
			id     INTEGER PRIMARY KEY,
			nombre TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS provincia (
			id     INTEGER PRIMARY KEY,
			nombre TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS canton (
			id           INTEGER PRIMARY KEY,
			provincia_id INTEGER NOT NULL REFERENCES provincia(id),
			nombre       TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS distrito (
			id        INTEGER PRIMARY KEY,
			canton_id INTEGER NOT NULL REFERENCES canton(id),
			nombre    TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS nivel (
			id     INTEGER PRIMARY KEY,
			numero INTEGER NOT NULL UNIQUE,
			nombre TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS modalidad (
			id     INTEGER PRIMARY KEY,
			nombre TEXT NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS especialidad (
			id           INTEGER PRIMARY KEY,
			modalidad_id INTEGER NOT NULL REFERENCES modalidad(id),
			nombre       TEXT NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS curso_lectivo (
			id             INTEGER PRIMARY KEY,
			institucion_id INTEGER NOT NULL REFERENCES institucion(id),
			nombre         TEXT NOT NULL,
			anio           INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS seccion (
			id       INTEGER PRIMARY KEY,
			nivel_id INTEGER NOT NULL REFERENCES nivel(id),
			numero   INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS subgrupo (
			id         INTEGER PRIMARY KEY,
			seccion_id INTEGER NOT NULL REFERENCES seccion(id),
			letra      TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS oferta (
			tipo             TEXT    NOT NULL,
			institucion_id   INTEGER NOT NULL REFERENCES institucion(id),
			curso_lectivo_id INTEGER NOT NULL REFERENCES curso_lectivo(id),
			item_id          INTEGER NOT NULL,
			activa           INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (tipo, institucion_id, curso_lectivo_id, item_id)
		);
		CREATE TABLE IF NOT EXISTS estudiante (
			id               INTEGER PRIMARY KEY,
			identificacion   TEXT NOT NULL UNIQUE,
			tipo_estudiante  TEXT NOT NULL DEFAULT 'PR',
			primer_apellido  TEXT NOT NULL DEFAULT '',
			segundo_apellido TEXT NOT NULL DEFAULT '',
			nombres          TEXT NOT NULL DEFAULT '',
			fecha_nacimiento TEXT NOT NULL DEFAULT '',
			sexo             TEXT NOT NULL DEFAULT '',
			nacionalidad     TEXT NOT NULL DEFAULT '',
			correo           TEXT NOT NULL DEFAULT '',
			celular          TEXT NOT NULL DEFAULT '',
			telefono_casa    TEXT NOT NULL DEFAULT '',
			direccion_exacta TEXT NOT NULL DEFAULT '',
			provincia_id     INTEGER,
			canton_id        INTEGER,
			distrito_id      INTEGER
		);
		CREATE TABLE IF NOT EXISTS estudiante_institucion (
			estudiante_id  INTEGER NOT NULL REFERENCES estudiante(id),
			institucion_id INTEGER NOT NULL REFERENCES institucion(id),
			PRIMARY KEY (estudiante_id, institucion_id)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

const (
	offerSpecialty = "especialidad"
	offerSection   = "seccion"
	offerSubgroup  = "subgrupo"
)

// Seed upserts every record of ds in a single transaction.
func (s *SQLite) Seed(ctx context.Context, ds Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exec := func(query string, args ...any) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("catalog: seed: %w", err)
		}
		return nil
	}

	for _, r := range ds.Institutions {
		if err := exec(`INSERT OR REPLACE INTO institucion (id, nombre) VALUES (?, ?)`, r.ID, r.Name); err != nil {
			return err
		}
	}
	for _, r := range ds.Provinces {
		if err := exec(`INSERT OR REPLACE INTO provincia (id, nombre) VALUES (?, ?)`, r.ID, r.Name); err != nil {
			return err
		}
	}
	for _, r := range ds.Cantons {
		if err := exec(`INSERT OR REPLACE INTO canton (id, provincia_id, nombre) VALUES (?, ?, ?)`, r.ID, r.ProvinceID, r.Name); err != nil {
			return err
		}
	}
	for _, r := range ds.Districts {
		if err := exec(`INSERT OR REPLACE INTO distrito (id, canton_id, nombre) VALUES (?, ?, ?)`, r.ID, r.CantonID, r.Name); err != nil {
			return err
		}
	}
	for _, r := range ds.Levels {
		if err := exec(`INSERT OR REPLACE INTO nivel (id, numero, nombre) VALUES (?, ?, ?)`, r.ID, r.Number, r.Name); err != nil {
			return err
		}
	}
	for _, r := range ds.Modalities {
		if err := exec(`INSERT OR REPLACE INTO modalidad (id, nombre) VALUES (?, ?)`, r.ID, r.Name); err != nil {
			return err
		}
	}
	for _, r := range ds.Specialties {
		if err := exec(`INSERT OR REPLACE INTO especialidad (id, modalidad_id, nombre) VALUES (?, ?, ?)`, r.ID, r.ModalityID, r.Name); err != nil {
			return err
		}
	}
	for _, r := range ds.SchoolYears {
		if err := exec(`INSERT OR REPLACE INTO curso_lectivo (id, institucion_id, nombre, anio) VALUES (?, ?, ?, ?)`, r.ID, r.InstitutionID, r.Name, r.Year); err != nil {
			return err
		}
	}
	for _, r := range ds.Sections {
		if err := exec(`INSERT OR REPLACE INTO seccion (id, nivel_id, numero) VALUES (?, ?, ?)`, r.ID, r.LevelID, r.Number); err != nil {
			return err
		}
	}
	for _, r := range ds.Subgroups {
		if err := exec(`INSERT OR REPLACE INTO subgrupo (id, seccion_id, letra) VALUES (?, ?, ?)`, r.ID, r.SectionID, r.Letter); err != nil {
			return err
		}
	}
	offers := []struct {
		kind string
		list []Offering
	}{
		{offerSpecialty, ds.Offerings.Specialties},
		{offerSection, ds.Offerings.Sections},
		{offerSubgroup, ds.Offerings.Subgroups},
	}
	for _, group := range offers {
		for _, o := range group.list {
			if err := exec(`INSERT OR REPLACE INTO oferta (tipo, institucion_id, curso_lectivo_id, item_id, activa) VALUES (?, ?, ?, ?, ?)`,
				group.kind, o.InstitutionID, o.SchoolYearID, o.ItemID, o.Active); err != nil {
				return err
			}
		}
	}
	for _, st := range ds.Students {
		if err := exec(`INSERT OR REPLACE INTO estudiante (
				id, identificacion, tipo_estudiante, primer_apellido, segundo_apellido, nombres,
				fecha_nacimiento, sexo, nacionalidad, correo, celular, telefono_casa, direccion_exacta,
				provincia_id, canton_id, distrito_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			st.ID, st.Identification, nonEmpty(st.StudentType, StudentRegular), st.FirstSurname, st.SecondSurname, st.Names,
			st.BirthDate, st.Sex, st.Nationality, st.Email, st.Mobile, st.HomePhone, st.Address,
			nullableID(st.ProvinceID), nullableID(st.CantonID), nullableID(st.DistrictID),
		); err != nil {
			return err
		}
		for _, inst := range st.Institutions {
			if err := exec(`INSERT OR IGNORE INTO estudiante_institucion (estudiante_id, institucion_id) VALUES (?, ?)`, st.ID, inst); err != nil {
				return err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit seed: %w", err)
	}
	return nil
}

func nonEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *SQLite) exists(ctx context.Context, table string, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLite) Provinces(ctx context.Context) ([]Province, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, nombre FROM provincia ORDER BY nombre`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Province
	for rows.Next() {
		var p Province
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) Cantons(ctx context.Context, provinceID int64) ([]Canton, error) {
	if ok, err := s.exists(ctx, "provincia", provinceID); err != nil || !ok {
		if err == nil {
			err = ErrNotFound
		}
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, provincia_id, nombre FROM canton WHERE provincia_id = ? ORDER BY nombre`, provinceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Canton
	for rows.Next() {
		var c Canton
		if err := rows.Scan(&c.ID, &c.ProvinceID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) Districts(ctx context.Context, cantonID int64) ([]District, error) {
	if ok, err := s.exists(ctx, "canton", cantonID); err != nil || !ok {
		if err == nil {
			err = ErrNotFound
		}
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, canton_id, nombre FROM distrito WHERE canton_id = ? ORDER BY nombre`, cantonID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []District
	for rows.Next() {
		var d District
		if err := rows.Scan(&d.ID, &d.CantonID, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLite) Institution(ctx context.Context, id int64) (Institution, error) {
	var inst Institution
	err := s.db.QueryRowContext(ctx, `SELECT id, nombre FROM institucion WHERE id = ?`, id).Scan(&inst.ID, &inst.Name)
	return inst, notFound(err)
}

func (s *SQLite) Levels(ctx context.Context) ([]Level, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, numero, nombre FROM nivel ORDER BY numero`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(&l.ID, &l.Number, &l.Name); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLite) Level(ctx context.Context, id int64) (Level, error) {
	var l Level
	err := s.db.QueryRowContext(ctx, `SELECT id, numero, nombre FROM nivel WHERE id = ?`, id).Scan(&l.ID, &l.Number, &l.Name)
	return l, notFound(err)
}

func (s *SQLite) SchoolYears(ctx context.Context, institutionID int64) ([]SchoolYear, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, institucion_id, nombre, anio FROM curso_lectivo WHERE institucion_id = ? ORDER BY anio DESC`, institutionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []SchoolYear
	for rows.Next() {
		var y SchoolYear
		if err := rows.Scan(&y.ID, &y.InstitutionID, &y.Name, &y.Year); err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

func (s *SQLite) SchoolYear(ctx context.Context, institutionID, id int64) (SchoolYear, error) {
	var y SchoolYear
	err := s.db.QueryRowContext(ctx,
		`SELECT id, institucion_id, nombre, anio FROM curso_lectivo WHERE id = ? AND institucion_id = ?`, id, institutionID,
	).Scan(&y.ID, &y.InstitutionID, &y.Name, &y.Year)
	return y, notFound(err)
}

func (s *SQLite) Section(ctx context.Context, id int64) (SectionView, error) {
	var v SectionView
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, n.id, n.numero, s.numero
		FROM seccion s JOIN nivel n ON n.id = s.nivel_id
		WHERE s.id = ?`, id,
	).Scan(&v.ID, &v.LevelID, &v.LevelNumber, &v.Number)
	return v, notFound(err)
}

func (s *SQLite) Specialties(ctx context.Context, institutionID, schoolYearID int64) ([]SpecialtyView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.nombre, m.nombre
		FROM oferta o
		JOIN especialidad e ON e.id = o.item_id
		JOIN modalidad m ON m.id = e.modalidad_id
		WHERE o.tipo = ? AND o.institucion_id = ? AND o.curso_lectivo_id = ? AND o.activa = 1
		ORDER BY e.nombre`, offerSpecialty, institutionID, schoolYearID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []SpecialtyView
	for rows.Next() {
		var v SpecialtyView
		if err := rows.Scan(&v.ID, &v.Name, &v.Modality); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLite) Sections(ctx context.Context, institutionID, schoolYearID, levelID int64) ([]SectionView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, n.id, n.numero, s.numero
		FROM oferta o
		JOIN seccion s ON s.id = o.item_id
		JOIN nivel n ON n.id = s.nivel_id
		WHERE o.tipo = ? AND o.institucion_id = ? AND o.curso_lectivo_id = ? AND o.activa = 1 AND s.nivel_id = ?
		ORDER BY n.numero, s.numero`, offerSection, institutionID, schoolYearID, levelID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []SectionView
	for rows.Next() {
		var v SectionView
		if err := rows.Scan(&v.ID, &v.LevelID, &v.LevelNumber, &v.Number); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLite) Subgroups(ctx context.Context, institutionID, schoolYearID, sectionID int64) ([]SubgroupView, error) {
	if ok, err := s.exists(ctx, "seccion", sectionID); err != nil || !ok {
		if err == nil {
			err = ErrNotFound
		}
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, s.id, s.numero, n.numero, g.letra
		FROM oferta o
		JOIN subgrupo g ON g.id = o.item_id
		JOIN seccion s ON s.id = g.seccion_id
		JOIN nivel n ON n.id = s.nivel_id
		WHERE o.tipo = ? AND o.institucion_id = ? AND o.curso_lectivo_id = ? AND o.activa = 1 AND g.seccion_id = ?
		ORDER BY n.numero, s.numero, g.letra`, offerSubgroup, institutionID, schoolYearID, sectionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []SubgroupView
	for rows.Next() {
		var v SubgroupView
		if err := rows.Scan(&v.ID, &v.SectionID, &v.SectionNumber, &v.LevelNumber, &v.Letter); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLite) StudentByIdentification(ctx context.Context, identification string) (Student, error) {
	var (
		st                   Student
		province, canton, dc sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, identificacion, tipo_estudiante, primer_apellido, segundo_apellido, nombres,
		       fecha_nacimiento, sexo, nacionalidad, correo, celular, telefono_casa, direccion_exacta,
		       provincia_id, canton_id, distrito_id
		FROM estudiante WHERE identificacion = ?`, strings.TrimSpace(identification),
	).Scan(&st.ID, &st.Identification, &st.StudentType, &st.FirstSurname, &st.SecondSurname, &st.Names,
		&st.BirthDate, &st.Sex, &st.Nationality, &st.Email, &st.Mobile, &st.HomePhone, &st.Address,
		&province, &canton, &dc)
	if err != nil {
		return Student{}, notFound(err)
	}
	st.ProvinceID, st.CantonID, st.DistrictID = province.Int64, canton.Int64, dc.Int64

	rows, err := s.db.QueryContext(ctx,
		`SELECT institucion_id FROM estudiante_institucion WHERE estudiante_id = ? ORDER BY institucion_id`, st.ID)
	if err != nil {
		return Student{}, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return Student{}, err
		}
		st.Institutions = append(st.Institutions, id)
	}
	return st, rows.Err()
}

func (s *SQLite) LinkStudent(ctx context.Context, studentID, institutionID int64) error {
	for table, id := range map[string]int64{"estudiante": studentID, "institucion": institutionID} {
		ok, err := s.exists(ctx, table, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO estudiante_institucion (estudiante_id, institucion_id) VALUES (?, ?)`, studentID, institutionID)
	if err != nil {
		return fmt.Errorf("catalog: link student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyLinked
	}
	return nil
}
