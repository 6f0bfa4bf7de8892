// users.go — обработчики /api/v1/colleges/{collegeID}/users endpoints.
// Сотрудники колледжа в разделе его арендатора.
// Доступ: platform_admin — любой колледж, college_admin — только свой
// (гарантируется RequireRole на группе + requireCollegeScope).
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goplacement/college-module/internal/api/errors"
	"github.com/bigkaa/goplacement/college-module/internal/domain/model"
	"github.com/bigkaa/goplacement/college-module/internal/service"
)

// userCreateRequest — тело POST .../users.
type userCreateRequest struct {
	Email    string  `json:"email"`
	FullName string  `json:"full_name"`
	Role     string  `json:"role"`
	Phone    *string `json:"phone,omitempty"`
}

// userUpdateRequest — тело PUT .../users/{userID}. nil-поля не изменяются.
type userUpdateRequest struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Role     *string `json:"role,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// userResponse — представление сотрудника в API.
type userResponse struct {
	ID        string    `json:"id"`
	CollegeID string    `json:"college_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Phone     *string   `json:"phone,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// userListResponse — ответ GET .../users.
type userListResponse struct {
	Items   []userResponse `json:"items"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

// mapUser отображает доменную модель в API-тип.
func mapUser(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		CollegeID: u.CollegeID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		Phone:     u.Phone,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// writePartitionError отображает ошибку сервисов раздела (сотрудники,
// студенты) в HTTP-ответ. notFoundMsg — сообщение для ErrNotFound.
func (h *APIHandler) writePartitionError(w http.ResponseWriter, err error, op, notFoundMsg string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrInvalidRole):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, notFoundMsg)
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrInvalidReference):
		apierrors.InvalidReference(w, err.Error())
	case errors.Is(err, service.ErrInactive):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrUnavailable):
		apierrors.Unavailable(w, err.Error())
	default:
		h.logger.Error("Ошибка операции в разделе арендатора", "op", op, "error", err)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// CreateUser — POST /api/v1/colleges/{collegeID}/users.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeID")
	if !requireCollegeScope(w, r, collegeID) {
		return
	}

	var req userCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	user, err := h.users.Create(r.Context(), collegeID, req.Email, req.FullName, req.Role, req.Phone)
	if err != nil {
		h.writePartitionError(w, err, "create_user", "Сотрудник не найден")
		return
	}

	writeJSON(w, http.StatusCreated, mapUser(user))
}

// ListUsers — GET /api/v1/colleges/{collegeID}/users.
// Фильтры: role, status.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeID")
	if !requireCollegeScope(w, r, collegeID) {
		return
	}

	limit, offset := parsePagination(r)
	roleFilter := queryFilter(r, "role")
	status := queryFilter(r, "status")

	users, total, err := h.users.List(r.Context(), collegeID, roleFilter, status, limit, offset)
	if err != nil {
		h.writePartitionError(w, err, "list_users", "Колледж не найден")
		return
	}

	items := make([]userResponse, len(users))
	for i, u := range users {
		items[i] = mapUser(u)
	}

	writeJSON(w, http.StatusOK, userListResponse{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	})
}

// GetUser — GET /api/v1/colleges/{collegeID}/users/{userID}.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeID")
	userID := chi.URLParam(r, "userID")
	if !requireCollegeScope(w, r, collegeID) {
		return
	}

	user, err := h.users.Get(r.Context(), collegeID, userID)
	if err != nil {
		h.writePartitionError(w, err, "get_user", "Сотрудник не найден")
		return
	}

	writeJSON(w, http.StatusOK, mapUser(user))
}

// UpdateUser — PUT /api/v1/colleges/{collegeID}/users/{userID}.
func (h *APIHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeID")
	userID := chi.URLParam(r, "userID")
	if !requireCollegeScope(w, r, collegeID) {
		return
	}

	var req userUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	user, err := h.users.Update(r.Context(), collegeID, userID, req.Email, req.FullName, req.Role, req.Phone)
	if err != nil {
		h.writePartitionError(w, err, "update_user", "Сотрудник не найден")
		return
	}

	writeJSON(w, http.StatusOK, mapUser(user))
}

// DeleteUser — DELETE /api/v1/colleges/{collegeID}/users/{userID}.
// Мягкое удаление: запись переводится в inactive.
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeID")
	userID := chi.URLParam(r, "userID")
	if !requireCollegeScope(w, r, collegeID) {
		return
	}

	if err := h.users.Deactivate(r.Context(), collegeID, userID); err != nil {
		h.writePartitionError(w, err, "deactivate_user", "Сотрудник не найден")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
