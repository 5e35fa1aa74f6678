// Package school holds the read-mostly directory of institutions that
// clusters are scoped to: universities, their faculties and departments,
// and student associations.
package school

import (
	"errors"
	"strings"
	"time"
)

type University struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Abbreviation string    `json:"abbreviation,omitempty"`
	State        string    `json:"state,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Faculty struct {
	ID           string `json:"id"`
	UniversityID string `json:"university_id"`
	Name         string `json:"name"`
}

type Department struct {
	ID        string `json:"id"`
	FacultyID string `json:"faculty_id"`
	Name      string `json:"name"`
}

// Association is a student body that runs collections for its constituency.
// It always belongs to a university; FacultyID and DepartmentID narrow the
// scope when set. The officer fields carry user ids from the auth subsystem.
type Association struct {
	ID                 string `json:"id"`
	UniversityID       string `json:"university_id"`
	FacultyID          string `json:"faculty_id,omitempty"`
	DepartmentID       string `json:"department_id,omitempty"`
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	PresidentID        string `json:"president_id,omitempty"`
	TreasurerID        string `json:"treasurer_id,omitempty"`
	GeneralSecretaryID string `json:"general_secretary_id,omitempty"`
	AcademicSession    string `json:"academic_session,omitempty"`
	Constituency       string `json:"constituency,omitempty"`
}

var (
	ErrNotFound     = errors.New("school: not found")
	ErrInvalidInput = errors.New("school: invalid input")
	ErrConflict     = errors.New("school: already exists")
)

func validName(s string) bool { return strings.TrimSpace(s) != "" }
