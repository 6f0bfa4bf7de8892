package model

import "time"

// College — колледж, обслуживаемый платформой.
// Хранится в таблице colleges основной БД (нужен для разрешения поддомена
// до того, как известен пул арендатора).
type College struct {
	// ID — UUID записи
	ID string
	// TenantID — UUID арендатора-владельца
	TenantID string
	// Subdomain — поддомен колледжа (acme в acme.goplacement.ru),
	// уникален без учёта регистра
	Subdomain string
	// Name — полное название колледжа
	Name string
	// Status — статус (active, inactive)
	Status string
	// Features — включённые функции платформы для колледжа
	Features []string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
