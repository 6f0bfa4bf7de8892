// Пакет role — закрытый набор ролей платформы и чистые правила авторизации.
// Роль определяет путь установления доверия в гейте аутентификации:
// platform_admin подтверждается только токеном, остальные роли — записью
// в таблице своего колледжа.
package role

import "fmt"

// Role — роль субъекта. Набор закрыт: только четыре значения ниже.
type Role string

// Роли платформы.
const (
	// PlatformAdmin — администратор платформы, не привязан к арендатору.
	PlatformAdmin Role = "platform_admin"
	// CollegeAdmin — администратор колледжа.
	CollegeAdmin Role = "college_admin"
	// Teacher — преподаватель колледжа.
	Teacher Role = "teacher"
	// Student — студент колледжа.
	Student Role = "student"
)

// All — все роли платформы.
var All = []Role{PlatformAdmin, CollegeAdmin, Teacher, Student}

// AssignableUserRoles — роли, допустимые в поле role таблицы users.
var AssignableUserRoles = []Role{CollegeAdmin, Teacher}

// Parse преобразует строку (claim role токена или поле БД) в Role.
// Значение вне закрытого набора — ошибка.
func Parse(s string) (Role, error) {
	switch Role(s) {
	case PlatformAdmin, CollegeAdmin, Teacher, Student:
		return Role(s), nil
	}
	return "", fmt.Errorf("неизвестная роль %q", s)
}

// Valid проверяет, входит ли значение в закрытый набор ролей.
func (r Role) Valid() bool {
	_, err := Parse(string(r))
	return err == nil
}

// String возвращает строковое значение роли (claim токена, поле БД).
func (r Role) String() string { return string(r) }

// LookupTable возвращает таблицу, в которой хранится запись субъекта
// с этой ролью. Для platform_admin записи в хранилище нет (ok == false):
// доверие устанавливается по токену. switch исчерпывающий — роль без
// ветки здесь не пройдёт аутентификацию.
func (r Role) LookupTable() (table string, ok bool) {
	switch r {
	case PlatformAdmin:
		return "", false
	case CollegeAdmin, Teacher:
		return "users", true
	case Student:
		return "students", true
	}
	return "", false
}

// AssignableToUser — допустима ли роль для хранения в users.role.
func AssignableToUser(r Role) bool {
	return r == CollegeAdmin || r == Teacher
}

// Allowed — чистая проверка авторизации: входит ли роль принципала
// в разрешённый набор. Никаких побочных эффектов.
func Allowed(r Role, allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}
