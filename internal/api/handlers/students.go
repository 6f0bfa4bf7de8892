// students.go — обработчики /api/v1/colleges/{collegeID}/students endpoints.
// Студенты колледжа в разделе его арендатора.
// Доступ: platform_admin — любой колледж; college_admin и teacher — только
// свой (гарантируется RequireRole на группе + requireCollegeScope).
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goplacement/college-module/internal/api/errors"
	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
)

// studentCreateRequest — тело POST .../students.
type studentCreateRequest struct {
	Email          string  `json:"email"`
	FullName       string  `json:"full_name"`
	EnrollmentNo   string  `json:"enrollment_no"`
	Course         *string `json:"course,omitempty"`
	GraduationYear *int    `json:"graduation_year,omitempty"`
}

// studentUpdateRequest — тело PUT .../students/{studentID}.
// nil-поля не изменяются.
type studentUpdateRequest struct {
	Email          *string `json:"email,omitempty"`
	FullName       *string `json:"full_name,omitempty"`
	EnrollmentNo   *string `json:"enrollment_no,omitempty"`
	Course         *string `json:"course,omitempty"`
	GraduationYear *int    `json:"graduation_year,omitempty"`
}

// studentResponse — представление студента в API.
type studentResponse struct {
	ID             string    `json:"id"`
	CollegeID      string    `json:"college_id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	EnrollmentNo   string    `json:"enrollment_no"`
	Course         *string   `json:"course,omitempty"`
	GraduationYear *int      `json:"graduation_year,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// studentListResponse — ответ GET .../students.
type studentListResponse struct {
	Items   []studentResponse `json:"items"`
	Total   int               `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
	HasMore bool              `json:"has_more"`
}

// mapStudent отображает доменную модель в API-тип.
func mapStudent(s *model.Student) studentResponse {
	return studentResponse{
		ID:             s.ID,
		CollegeID:      s.CollegeID,
		Email:          s.Email,
		FullName:       s.FullName,
		EnrollmentNo:   s.EnrollmentNo,
		Course:         s.Course,
		GraduationYear: s.GraduationYear,
		Status:         s.Status,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// CreateStudent — POST /api/v1/colleges/{collegeID}/students.
func (h *APIHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeID")
	if !requireCollegeScope(w, r, collegeID) {
		return
	}

	var req studentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	student, err := h.students.Create(r.Context(), collegeID, req.Email, req.FullName, req.EnrollmentNo, req.Course, req.GraduationYear)
	if err != nil {
		h.writePartitionError(w, err, "create_student", "Студент не найден")
		return
	}

	writeJSON(w, http.StatusCreated, mapStudent(student))
}

// ListStudents — GET /api/v1/colleges/{collegeID}/students.
// Фильтр: status.
func (h *APIHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeID")
	if !requireCollegeScope(w, r, collegeID) {
		return
	}

	limit, offset := parsePagination(r)
	status := queryFilter(r, "status")

	students, total, err := h.students.List(r.Context(), collegeID, status, limit, offset)
	if err != nil {
		h.writePartitionError(w, err, "list_students", "Колледж не найден")
		return
	}

	items := make([]studentResponse, len(students))
	for i, s := range students {
		items[i] = mapStudent(s)
	}

	writeJSON(w, http.StatusOK, studentListResponse{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	})
}

// GetStudent — GET /api/v1/colleges/{collegeID}/students/{studentID}.
func (h *APIHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeID")
	studentID := chi.URLParam(r, "studentID")
	if !requireCollegeScope(w, r, collegeID) {
		return
	}

	student, err := h.students.Get(r.Context(), collegeID, studentID)
	if err != nil {
		h.writePartitionError(w, err, "get_student", "Студент не найден")
		return
	}

	writeJSON(w, http.StatusOK, mapStudent(student))
}

// UpdateStudent — PUT /api/v1/colleges/{collegeID}/students/{studentID}.
func (h *APIHandler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeID")
	studentID := chi.URLParam(r, "studentID")
	if !requireCollegeScope(w, r, collegeID) {
		return
	}

	var req studentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	student, err := h.students.Update(r.Context(), collegeID, studentID, req.Email, req.FullName, req.EnrollmentNo, req.Course, req.GraduationYear)
	if err != nil {
		h.writePartitionError(w, err, "update_student", "Студент не найден")
		return
	}

	writeJSON(w, http.StatusOK, mapStudent(student))
}

// DeleteStudent — DELETE /api/v1/colleges/{collegeID}/students/{studentID}.
// Мягкое удаление: запись переводится в inactive.
func (h *APIHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeID")
	studentID := chi.URLParam(r, "studentID")
	if !requireCollegeScope(w, r, collegeID) {
		return
	}

	if err := h.students.Deactivate(r.Context(), collegeID, studentID); err != nil {
		h.writePartitionError(w, err, "deactivate_student", "Студент не найден")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
