// Пакет model — доменные модели College Module.
package model

import "time"

// Статусы записей (tenants, colleges, users, students).
const (
	// StatusActive — запись активна.
	StatusActive = "active"
	// StatusInactive — запись деактивирована (soft delete).
	StatusInactive = "inactive"
)

// Tenant — арендатор платформы (владелец одного или нескольких колледжей).
// Хранится в таблице tenants основной БД. Записи никогда не удаляются
// физически — деактивация переводит Status в inactive.
type Tenant struct {
	// ID — UUID записи
	ID string
	// Name — уникальное имя арендатора
	Name string
	// ConnDSN — DSN выделенной БД арендатора (nil — данные в основной БД)
	ConnDSN *string
	// Status — статус (active, inactive)
	Status string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
