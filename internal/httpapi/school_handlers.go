package httpapi

import (
	"net/http"
	"strings"

	"plixa.org/internal/school"
)

type createUniversityRequest struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	State        string `json:"state"`
}

type createFacultyRequest struct {
	Name string `json:"name"`
}

type createDepartmentRequest struct {
	Name string `json:"name"`
}

type createAssociationRequest struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	FacultyID          string `json:"faculty_id"`
	DepartmentID       string `json:"department_id"`
	PresidentID        string `json:"president_id"`
	TreasurerID        string `json:"treasurer_id"`
	GeneralSecretaryID string `json:"general_secretary_id"`
	AcademicSession    string `json:"academic_session"`
	Constituency       string `json:"constituency"`
}

// handleSchools routes the directory tree:
//
//	/api/v1/schools/universities
//	/api/v1/schools/universities/{id}
//	/api/v1/schools/universities/{id}/faculties
//	/api/v1/schools/universities/{id}/associations
//	/api/v1/schools/faculties/{id}/departments
func (a *API) handleSchools(w http.ResponseWriter, r *http.Request) {
	if a.schools == nil {
		writeError(w, r, http.StatusServiceUnavailable, "school directory unavailable")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/schools/"), "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "universities":
		a.handleUniversities(w, r)
	case len(parts) == 2 && parts[0] == "universities":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		u, err := a.schools.GetUniversity(r.Context(), parts[1])
		if err != nil {
			handleSchoolError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	case len(parts) == 3 && parts[0] == "universities" && parts[2] == "faculties":
		a.handleFaculties(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "universities" && parts[2] == "associations":
		a.handleAssociations(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "faculties" && parts[2] == "departments":
		a.handleDepartments(w, r, parts[1])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUniversities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.schools.ListUniversities(r.Context())
		if err != nil {
			handleSchoolError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req createUniversityRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		u, err := a.schools.CreateUniversity(r.Context(), school.University{
			Name:         req.Name,
			Abbreviation: req.Abbreviation,
			State:        req.State,
		})
		if err != nil {
			handleSchoolError(w, r, err)
			return
		}
		a.audit(r.Context(), "school.university.create", "university", u.ID, map[string]string{"name": u.Name})
		w.Header().Set("Location", "/api/v1/schools/universities/"+u.ID)
		writeJSON(w, http.StatusCreated, u)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleFaculties(w http.ResponseWriter, r *http.Request, universityID string) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.schools.ListFaculties(r.Context(), universityID)
		if err != nil {
			handleSchoolError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req createFacultyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		f, err := a.schools.CreateFaculty(r.Context(), school.Faculty{
			UniversityID: universityID,
			Name:         req.Name,
		})
		if err != nil {
			handleSchoolError(w, r, err)
			return
		}
		a.audit(r.Context(), "school.faculty.create", "faculty", f.ID, map[string]string{"name": f.Name})
		writeJSON(w, http.StatusCreated, f)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleDepartments(w http.ResponseWriter, r *http.Request, facultyID string) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.schools.ListDepartments(r.Context(), facultyID)
		if err != nil {
			handleSchoolError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req createDepartmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		d, err := a.schools.CreateDepartment(r.Context(), school.Department{
			FacultyID: facultyID,
			Name:      req.Name,
		})
		if err != nil {
			handleSchoolError(w, r, err)
			return
		}
		a.audit(r.Context(), "school.department.create", "department", d.ID, map[string]string{"name": d.Name})
		writeJSON(w, http.StatusCreated, d)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAssociations(w http.ResponseWriter, r *http.Request, universityID string) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.schools.ListAssociations(r.Context(), universityID)
		if err != nil {
			handleSchoolError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req createAssociationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		asc, err := a.schools.CreateAssociation(r.Context(), school.Association{
			UniversityID:       universityID,
			FacultyID:          req.FacultyID,
			DepartmentID:       req.DepartmentID,
			Name:               req.Name,
			Description:        req.Description,
			PresidentID:        req.PresidentID,
			TreasurerID:        req.TreasurerID,
			GeneralSecretaryID: req.GeneralSecretaryID,
			AcademicSession:    req.AcademicSession,
			Constituency:       req.Constituency,
		})
		if err != nil {
			handleSchoolError(w, r, err)
			return
		}
		a.audit(r.Context(), "school.association.create", "association", asc.ID, map[string]string{"name": asc.Name})
		writeJSON(w, http.StatusCreated, asc)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}
