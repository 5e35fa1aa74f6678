package school

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process Store for tests and DSN-less runs.
type MemStore struct {
	mu           sync.RWMutex
	universities []University
	faculties    []Faculty
	departments  []Department
	associations []Association
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore { return &MemStore{} }

func (s *MemStore) CreateUniversity(ctx context.Context, u University) (University, error) {
	if !validName(u.Name) {
		return University{}, fmt.Errorf("%w: name must be provided", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.universities {
		if strings.EqualFold(existing.Name, u.Name) {
			return University{}, fmt.Errorf("%w: university %q", ErrConflict, u.Name)
		}
	}
	u.ID = uuid.NewString()
	u.Name = strings.TrimSpace(u.Name)
	u.CreatedAt = time.Now().UTC()
	s.universities = append(s.universities, u)
	return u, nil
}

func (s *MemStore) GetUniversity(ctx context.Context, id string) (University, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.universities {
		if u.ID == id {
			return u, nil
		}
	}
	return University{}, ErrNotFound
}

func (s *MemStore) ListUniversities(ctx context.Context) ([]University, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]University, len(s.universities))
	copy(out, s.universities)
	return out, nil
}

func (s *MemStore) CreateFaculty(ctx context.Context, f Faculty) (Faculty, error) {
	if !validName(f.Name) {
		return Faculty{}, fmt.Errorf("%w: name must be provided", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.universityExistsLocked(f.UniversityID) {
		return Faculty{}, ErrNotFound
	}
	// Faculty names are unique within a university, not globally.
	for _, existing := range s.faculties {
		if existing.UniversityID == f.UniversityID && strings.EqualFold(existing.Name, f.Name) {
			return Faculty{}, fmt.Errorf("%w: faculty %q", ErrConflict, f.Name)
		}
	}
	f.ID = uuid.NewString()
	f.Name = strings.TrimSpace(f.Name)
	s.faculties = append(s.faculties, f)
	return f, nil
}

func (s *MemStore) ListFaculties(ctx context.Context, universityID string) ([]Faculty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Faculty
	for _, f := range s.faculties {
		if universityID == "" || f.UniversityID == universityID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *MemStore) CreateDepartment(ctx context.Context, d Department) (Department, error) {
	if !validName(d.Name) {
		return Department{}, fmt.Errorf("%w: name must be provided", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.facultyExistsLocked(d.FacultyID) {
		return Department{}, ErrNotFound
	}
	for _, existing := range s.departments {
		if existing.FacultyID == d.FacultyID && strings.EqualFold(existing.Name, d.Name) {
			return Department{}, fmt.Errorf("%w: department %q", ErrConflict, d.Name)
		}
	}
	d.ID = uuid.NewString()
	d.Name = strings.TrimSpace(d.Name)
	s.departments = append(s.departments, d)
	return d, nil
}

func (s *MemStore) ListDepartments(ctx context.Context, facultyID string) ([]Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Department
	for _, d := range s.departments {
		if facultyID == "" || d.FacultyID == facultyID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *MemStore) CreateAssociation(ctx context.Context, a Association) (Association, error) {
	if !validName(a.Name) {
		return Association{}, fmt.Errorf("%w: name must be provided", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.universityExistsLocked(a.UniversityID) {
		return Association{}, ErrNotFound
	}
	if a.FacultyID != "" && !s.facultyExistsLocked(a.FacultyID) {
		return Association{}, ErrNotFound
	}
	if a.DepartmentID != "" && !s.departmentExistsLocked(a.DepartmentID) {
		return Association{}, ErrNotFound
	}
	a.ID = uuid.NewString()
	a.Name = strings.TrimSpace(a.Name)
	s.associations = append(s.associations, a)
	return a, nil
}

func (s *MemStore) ListAssociations(ctx context.Context, universityID string) ([]Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Association
	for _, a := range s.associations {
		if universityID == "" || a.UniversityID == universityID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemStore) universityExistsLocked(id string) bool {
	for _, u := range s.universities {
		if u.ID == id {
			return true
		}
	}
	return false
}

func (s *MemStore) facultyExistsLocked(id string) bool {
	for _, f := range s.faculties {
		if f.ID == id {
			return true
		}
	}
	return false
}

func (s *MemStore) departmentExistsLocked(id string) bool {
	for _, d := range s.departments {
		if d.ID == id {
			return true
		}
	}
	return false
}
