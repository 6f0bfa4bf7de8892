// auth.go — обработчик /api/v1/auth endpoints.
// GET /api/v1/auth/me — текущий принципал, собранный шлюзом аутентификации.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/goplacement/college-module/internal/api/errors"
	"github.com/bigkaa/goplacement/college-module/internal/api/middleware"
)

// currentPrincipalResponse — представление принципала в API.
// college_id и tenant_id пусты для platform_admin: у него нет раздела.
type currentPrincipalResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	CollegeID string `json:"college_id,omitempty"`
	TenantID  string `json:"tenant_id,omitempty"`
}

// GetCurrentPrincipal — GET /api/v1/auth/me.
// Возвращает принципала текущего запроса. Полезен клиентам для проверки,
// кем их видит модуль после перечитывания записи из раздела.
// Доступ: любой аутентифицированный принципал.
func (h *APIHandler) GetCurrentPrincipal(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует принципал в контексте")
		return
	}

	writeJSON(w, http.StatusOK, currentPrincipalResponse{
		ID:        principal.ID(),
		Role:      principal.Role().String(),
		CollegeID: principal.CollegeID(),
		TenantID:  principal.TenantID(),
	})
}
