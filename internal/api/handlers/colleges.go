// colleges.go — обработчики /api/v1/colleges endpoints.
// Реестр колледжей: создание, список, получение, обновление, деактивация.
// Создание и изменение — только platform_admin; получение своего колледжа
// доступно и его college_admin.
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

// collegeCreateRequest — тело POST /api/v1/colleges.
type collegeCreateRequest struct {
	// TenantID — арендатор-владелец.
	TenantID string `json:"tenant_id"`
	// Subdomain — поддомен входа, глобально уникален без учёта регистра.
	Subdomain string `json:"subdomain"`
	// Name — название колледжа.
	Name string `json:"name"`
	// Features — включённые фичи (опционально).
	Features []string `json:"features,omitempty"`
}

// collegeUpdateRequest — тело PUT /api/v1/colleges/{id}.
// nil-поля не изменяются.
type collegeUpdateRequest struct {
	Subdomain *string  `json:"subdomain,omitempty"`
	Name      *string  `json:"name,omitempty"`
	Features  []string `json:"features,omitempty"`
}

// collegeResponse — представление колледжа в API.
type collegeResponse struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Subdomain string    `json:"subdomain"`
	Name      string    `json:"name"`
	Features  []string  `json:"features"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// collegeListResponse — ответ GET /api/v1/colleges.
type collegeListResponse struct {
	Items   []collegeResponse `json:"items"`
	Total   int               `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
	HasMore bool              `json:"has_more"`
}

// mapCollege отображает доменную модель в API-тип.
func mapCollege(c *model.College) collegeResponse {
	features := c.Features
	if features == nil {
		features = []string{}
	}
	return collegeResponse{
		ID:        c.ID,
		TenantID:  c.TenantID,
		Subdomain: c.Subdomain,
		Name:      c.Name,
		Features:  features,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// writeCollegeError отображает ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) writeCollegeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Колледж не найден")
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrInvalidReference):
		apierrors.InvalidReference(w, err.Error())
	case errors.Is(err, service.ErrInactive):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrUnavailable):
		apierrors.Unavailable(w, err.Error())
	default:
		h.logger.Error("Ошибка операции с колледжем", "op", op, "error", err)
		apierrors.InternalError(w, "Ошибка операции с колледжем")
	}
}

// CreateCollege — POST /api/v1/colleges.
// Регистрирует колледж у существующего активного арендатора.
func (h *APIHandler) CreateCollege(w http.ResponseWriter, r *http.Request) {
	var req collegeCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	college, err := h.colleges.Create(r.Context(), req.TenantID, req.Subdomain, req.Name, req.Features)
	if err != nil {
		h.writeCollegeError(w, err, "create")
		return
	}

	writeJSON(w, http.StatusCreated, mapCollege(college))
}

// ListColleges — GET /api/v1/colleges.
// Возвращает список колледжей с фильтрами tenant_id и status.
func (h *APIHandler) ListColleges(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	tenantID := queryFilter(r, "tenant_id")
	status := queryFilter(r, "status")

	colleges, total, err := h.colleges.List(r.Context(), tenantID, status, limit, offset)
	if err != nil {
		h.logger.Error("Ошибка получения списка колледжей", "error", err)
		apierrors.InternalError(w, "Ошибка получения списка колледжей")
		return
	}

	items := make([]collegeResponse, len(colleges))
	for i, c := range colleges {
		items[i] = mapCollege(c)
	}

	writeJSON(w, http.StatusOK, collegeListResponse{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	})
}

// GetCollege — GET /api/v1/colleges/{id}.
// Доступ: platform_admin — любой колледж, college_admin — только свой.
func (h *APIHandler) GetCollege(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireCollegeScope(w, r, id) {
		return
	}

	college, err := h.colleges.Get(r.Context(), id)
	if err != nil {
		h.writeCollegeError(w, err, "get")
		return
	}

	writeJSON(w, http.StatusOK, mapCollege(college))
}

// UpdateCollege — PUT /api/v1/colleges/{id}.
func (h *APIHandler) UpdateCollege(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req collegeUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	college, err := h.colleges.Update(r.Context(), id, req.Subdomain, req.Name, req.Features)
	if err != nil {
		h.writeCollegeError(w, err, "update")
		return
	}

	writeJSON(w, http.StatusOK, mapCollege(college))
}

// DeleteCollege — DELETE /api/v1/colleges/{id}.
// Мягкое удаление: колледж переводится в inactive, вход по его поддомену
// и аутентификация его пользователей перестают работать.
func (h *APIHandler) DeleteCollege(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.colleges.Deactivate(r.Context(), id); err != nil {
		h.writeCollegeError(w, err, "deactivate")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
