// tenants.go — обработчики /api/v1/tenants endpoints.
// Реестр арендаторов: регистрация, список, получение, деактивация.
// Доступ ко всем операциям — только platform_admin (гарантируется
// RequireRole на группе маршрутов).
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

// tenantCreateRequest — тело POST /api/v1/tenants.
type tenantCreateRequest struct {
	// Name — имя арендатора, уникально без учёта регистра.
	Name string `json:"name"`
	// ConnDSN — строка подключения выделенной БД; null — основная БД.
	// В ответах никогда не возвращается.
	ConnDSN *string `json:"conn_dsn,omitempty"`
}

// tenantResponse — представление арендатора в API.
// Строка подключения наружу не отдаётся: только признак выделенной БД.
type tenantResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DedicatedDB bool      `json:"dedicated_db"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// tenantListResponse — ответ GET /api/v1/tenants.
type tenantListResponse struct {
	Items   []tenantResponse `json:"items"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	HasMore bool             `json:"has_more"`
}

// mapTenant отображает доменную модель в API-тип.
func mapTenant(t *model.Tenant) tenantResponse {
	return tenantResponse{
		ID:          t.ID,
		Name:        t.Name,
		DedicatedDB: t.ConnDSN != nil,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// CreateTenant — POST /api/v1/tenants.
// Регистрирует арендатора; с conn_dsn — с выделенной БД.
func (h *APIHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req tenantCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	tenant, err := h.tenants.Provision(r.Context(), req.Name, req.ConnDSN)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrConflict):
			apierrors.Conflict(w, err.Error())
		case errors.Is(err, service.ErrUnavailable):
			apierrors.Unavailable(w, err.Error())
		default:
			h.logger.Error("Ошибка регистрации арендатора", "error", err)
			apierrors.InternalError(w, "Ошибка регистрации арендатора")
		}
		return
	}

	writeJSON(w, http.StatusCreated, mapTenant(tenant))
}

// ListTenants — GET /api/v1/tenants.
// Возвращает список арендаторов с пагинацией и фильтром по статусу.
func (h *APIHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	status := queryFilter(r, "status")

	tenants, total, err := h.tenants.List(r.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("Ошибка получения списка арендаторов", "error", err)
		apierrors.InternalError(w, "Ошибка получения списка арендаторов")
		return
	}

	items := make([]tenantResponse, len(tenants))
	for i, t := range tenants {
		items[i] = mapTenant(t)
	}

	writeJSON(w, http.StatusOK, tenantListResponse{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	})
}

// GetTenant — GET /api/v1/tenants/{id}.
func (h *APIHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tenant, err := h.tenants.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Арендатор не найден")
			return
		}
		h.logger.Error("Ошибка получения арендатора", "tenant_id", id, "error", err)
		apierrors.InternalError(w, "Ошибка получения арендатора")
		return
	}

	writeJSON(w, http.StatusOK, mapTenant(tenant))
}

// DeleteTenant — DELETE /api/v1/tenants/{id}.
// Мягкое удаление: запись переводится в inactive, строки не удаляются.
func (h *APIHandler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.tenants.Deactivate(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Арендатор не найден")
		case errors.Is(err, service.ErrUnavailable):
			apierrors.Unavailable(w, err.Error())
		default:
			h.logger.Error("Ошибка деактивации арендатора", "tenant_id", id, "error", err)
			apierrors.InternalError(w, "Ошибка деактивации арендатора")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
