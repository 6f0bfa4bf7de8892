package model

import "github.com/bigkaa/goplacement/college-module/internal/domain/role"

// Principal — проверенный субъект запроса. Собирается гейтом аутентификации
// после проверки токена и записи в хранилище, живёт только в контексте
// запроса и никогда не сохраняется. Поля закрыты: после создания
// принципал неизменяем.
type Principal struct {
	id        string
	role      role.Role
	collegeID string
	tenantID  string
}

// NewPrincipal создаёт принципал. Для platform_admin collegeID и tenantID
// пустые — платформенный администратор не привязан к арендатору.
func NewPrincipal(id string, r role.Role, collegeID, tenantID string) Principal {
	return Principal{id: id, role: r, collegeID: collegeID, tenantID: tenantID}
}

// ID — идентификатор субъекта (sub токена, он же UUID записи).
func (p Principal) ID() string { return p.id }

// Role — роль субъекта.
func (p Principal) Role() role.Role { return p.role }

// CollegeID — UUID колледжа субъекта (пустой для platform_admin).
func (p Principal) CollegeID() string { return p.collegeID }

// TenantID — UUID арендатора субъекта (пустой для platform_admin).
func (p Principal) TenantID() string { return p.tenantID }

// IsPlatformAdmin — true для платформенного администратора.
func (p Principal) IsPlatformAdmin() bool { return p.role == role.PlatformAdmin }
