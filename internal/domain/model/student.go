package model

import "time"

// Student — студент колледжа.
// Хранится в таблице students раздела данных колледжа (как и User).
type Student struct {
	// ID — UUID записи
	ID string
	// CollegeID — UUID колледжа-владельца
	CollegeID string
	// Email — адрес электронной почты, уникален в пределах колледжа
	// без учёта регистра
	Email string
	// FullName — полное имя
	FullName string
	// EnrollmentNo — номер зачисления, уникален в пределах колледжа
	EnrollmentNo string
	// Course — направление подготовки (опционально)
	Course *string
	// GraduationYear — год выпуска (опционально)
	GraduationYear *int
	// Status — статус (active, inactive)
	Status string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
