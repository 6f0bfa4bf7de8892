package role

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Role
		wantErr bool
	}{
		{name: "platform_admin", in: "platform_admin", want: PlatformAdmin},
		{name: "college_admin", in: "college_admin", want: CollegeAdmin},
		{name: "teacher", in: "teacher", want: Teacher},
		{name: "student", in: "student", want: Student},
		{name: "неизвестная роль", in: "superuser", wantErr: true},
		{name: "пустая строка", in: "", wantErr: true},
		{name: "регистр имеет значение", in: "Teacher", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q): ожидалась ошибка, получено %q", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): неожиданная ошибка: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, хотели %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestLookupTableTotality — у каждой роли закрытого набора есть явное
// решение: либо таблица, либо доверие по токену (platform_admin).
func TestLookupTableTotality(t *testing.T) {
	for _, r := range All {
		table, ok := r.LookupTable()
		if r == PlatformAdmin {
			if ok || table != "" {
				t.Errorf("LookupTable(%s) = (%q, %v), хотели (\"\", false)", r, table, ok)
			}
			continue
		}
		if !ok || table == "" {
			t.Errorf("LookupTable(%s) = (%q, %v): роль без таблицы поиска", r, table, ok)
		}
	}
}

func TestLookupTable(t *testing.T) {
	tests := []struct {
		role  Role
		table string
		ok    bool
	}{
		{role: PlatformAdmin, table: "", ok: false},
		{role: CollegeAdmin, table: "users", ok: true},
		{role: Teacher, table: "users", ok: true},
		{role: Student, table: "students", ok: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			table, ok := tt.role.LookupTable()
			if table != tt.table || ok != tt.ok {
				t.Errorf("LookupTable(%s) = (%q, %v), хотели (%q, %v)",
					tt.role, table, ok, tt.table, tt.ok)
			}
		})
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		allowed []Role
		want    bool
	}{
		{name: "роль в наборе", role: Teacher, allowed: []Role{CollegeAdmin, Teacher}, want: true},
		{name: "роль вне набора", role: Student, allowed: []Role{CollegeAdmin, Teacher}, want: false},
		{name: "пустой набор запрещает всё", role: PlatformAdmin, allowed: nil, want: false},
		{name: "единственная роль", role: PlatformAdmin, allowed: []Role{PlatformAdmin}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Allowed(tt.role, tt.allowed...); got != tt.want {
				t.Errorf("Allowed(%s, %v) = %v, хотели %v", tt.role, tt.allowed, got, tt.want)
			}
		})
	}
}

func TestAssignableToUser(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{role: CollegeAdmin, want: true},
		{role: Teacher, want: true},
		{role: Student, want: false},
		{role: PlatformAdmin, want: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := AssignableToUser(tt.role); got != tt.want {
				t.Errorf("AssignableToUser(%s) = %v, хотели %v", tt.role, got, tt.want)
			}
		})
	}
}
