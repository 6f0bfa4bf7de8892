package model

import "time"

// User — сотрудник колледжа (администратор колледжа или преподаватель).
// Хранится в таблице users раздела данных колледжа: в выделенной БД
// арендатора либо в основной БД, если выделенной нет.
type User struct {
	// ID — UUID записи
	ID string
	// CollegeID — UUID колледжа-владельца
	CollegeID string
	// Email — адрес электронной почты, уникален в пределах колледжа
	// без учёта регистра
	Email string
	// FullName — полное имя
	FullName string
	// Role — роль (college_admin, teacher)
	Role string
	// Phone — телефон (опционально)
	Phone *string
	// Status — статус (active, inactive)
	Status string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
