package school

import "context"

// Store is the directory access contract. Postgres backs production,
// MemStore backs tests and local runs.
type Store interface {
	CreateUniversity(ctx context.Context, u University) (University, error)
	GetUniversity(ctx context.Context, id string) (University, error)
	ListUniversities(ctx context.Context) ([]University, error)
	CreateFaculty(ctx context.Context, f Faculty) (Faculty, error)
	ListFaculties(ctx context.Context, universityID string) ([]Faculty, error)
	CreateDepartment(ctx context.Context, d Department) (Department, error)
	ListDepartments(ctx context.Context, facultyID string) ([]Department, error)
	CreateAssociation(ctx context.Context, a Association) (Association, error)
	ListAssociations(ctx context.Context, universityID string) ([]Association, error)
}
