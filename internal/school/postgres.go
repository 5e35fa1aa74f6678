package school

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PGStore implements Store on Postgres.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

func (s *PGStore) CreateUniversity(ctx context.Context, u University) (University, error) {
	if !validName(u.Name) {
		return University{}, fmt.Errorf("%w: name must be provided", ErrInvalidInput)
	}
	u.ID = uuid.NewString()
	u.Name = strings.TrimSpace(u.Name)
	u.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		insert into universities(id, name, abbreviation, state, created_at)
		values ($1,$2,$3,$4,$5)
	`, u.ID, u.Name, u.Abbreviation, u.State, u.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return University{}, fmt.Errorf("%w: university %q", ErrConflict, u.Name)
		}
		return University{}, err
	}
	return u, nil
}

func (s *PGStore) GetUniversity(ctx context.Context, id string) (University, error) {
	var u University
	err := s.db.QueryRowContext(ctx, `
		select id, name, abbreviation, state, created_at from universities where id=$1
	`, id).Scan(&u.ID, &u.Name, &u.Abbreviation, &u.State, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return University{}, ErrNotFound
	}
	if err != nil {
		return University{}, err
	}
	return u, nil
}

func (s *PGStore) ListUniversities(ctx context.Context) ([]University, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, abbreviation, state, created_at from universities order by name asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []University
	for rows.Next() {
		var u University
		if err := rows.Scan(&u.ID, &u.Name, &u.Abbreviation, &u.State, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateFaculty(ctx context.Context, f Faculty) (Faculty, error) {
	if !validName(f.Name) {
		return Faculty{}, fmt.Errorf("%w: name must be provided", ErrInvalidInput)
	}
	f.ID = uuid.NewString()
	f.Name = strings.TrimSpace(f.Name)
	_, err := s.db.ExecContext(ctx, `
		insert into faculties(id, university_id, name) values ($1,$2,$3)
	`, f.ID, f.UniversityID, f.Name)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return Faculty{}, fmt.Errorf("%w: faculty %q", ErrConflict, f.Name)
		}
		if strings.Contains(err.Error(), "foreign key") {
			return Faculty{}, ErrNotFound
		}
		return Faculty{}, err
	}
	return f, nil
}

func (s *PGStore) ListFaculties(ctx context.Context, universityID string) ([]Faculty, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, university_id, name from faculties
		where ($1 = '' or university_id = $1)
		order by name asc
	`, universityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Faculty
	for rows.Next() {
		var f Faculty
		if err := rows.Scan(&f.ID, &f.UniversityID, &f.Name); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateDepartment(ctx context.Context, d Department) (Department, error) {
	if !validName(d.Name) {
		return Department{}, fmt.Errorf("%w: name must be provided", ErrInvalidInput)
	}
	d.ID = uuid.NewString()
	d.Name = strings.TrimSpace(d.Name)
	_, err := s.db.ExecContext(ctx, `
		insert into departments(id, faculty_id, name) values ($1,$2,$3)
	`, d.ID, d.FacultyID, d.Name)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return Department{}, fmt.Errorf("%w: department %q", ErrConflict, d.Name)
		}
		if strings.Contains(err.Error(), "foreign key") {
			return Department{}, ErrNotFound
		}
		return Department{}, err
	}
	return d, nil
}

func (s *PGStore) ListDepartments(ctx context.Context, facultyID string) ([]Department, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, faculty_id, name from departments
		where ($1 = '' or faculty_id = $1)
		order by name asc
	`, facultyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.FacultyID, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// nullable maps empty optional references to SQL null so the foreign keys
// stay enforceable.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *PGStore) CreateAssociation(ctx context.Context, a Association) (Association, error) {
	if !validName(a.Name) {
		return Association{}, fmt.Errorf("%w: name must be provided", ErrInvalidInput)
	}
	a.ID = uuid.NewString()
	a.Name = strings.TrimSpace(a.Name)
	_, err := s.db.ExecContext(ctx, `
		insert into associations(id, university_id, faculty_id, department_id, name, description,
			president_id, treasurer_id, general_secretary_id, academic_session, constituency)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, a.ID, a.UniversityID, nullable(a.FacultyID), nullable(a.DepartmentID), a.Name, a.Description,
		nullable(a.PresidentID), nullable(a.TreasurerID), nullable(a.GeneralSecretaryID),
		a.AcademicSession, a.Constituency)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return Association{}, ErrNotFound
		}
		return Association{}, err
	}
	return a, nil
}

func (s *PGStore) ListAssociations(ctx context.Context, universityID string) ([]Association, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, university_id, coalesce(faculty_id, ''), coalesce(department_id, ''),
		       name, description, coalesce(president_id, ''), coalesce(treasurer_id, ''),
		       coalesce(general_secretary_id, ''), academic_session, constituency
		from associations
		where ($1 = '' or university_id = $1)
		order by name asc
	`, universityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Association
	for rows.Next() {
		var a Association
		if err := rows.Scan(&a.ID, &a.UniversityID, &a.FacultyID, &a.DepartmentID,
			&a.Name, &a.Description, &a.PresidentID, &a.TreasurerID,
			&a.GeneralSecretaryID, &a.AcademicSession, &a.Constituency); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
