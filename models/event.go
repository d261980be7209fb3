package models

// Discipline представляет тип дисциплины события.
type Discipline string

const (
	DisciplineTrack Discipline = "track"
	DisciplineField Discipline = "field"
	DisciplineTeam  Discipline = "team"
)

// Category - категория события.
type Category string

const (
	CategoryBoys  Category = "boys"
	CategoryGirls Category = "girls"
)

// StudentsCount - денормализованные счётчики посещаемости события.
// Инвариант: сумма трёх счётчиков равна числу записанных участников.
type StudentsCount struct {
	Present   int `json:"present"`
	Absent    int `json:"absent"`
	NotMarked int `json:"not_marked"`
}

// Event представляет одно событие соревнований.
type Event struct {
	ID            int           `json:"id" db:"id"`
	Name          string        `json:"name" db:"name"`
	Discipline    Discipline    `json:"discipline" db:"discipline"`
	Category      Category      `json:"category" db:"category"`
	Day           int           `json:"day" db:"day"`
	IsActive      bool          `json:"is_active" db:"is_active"`
	StudentsCount StudentsCount `json:"students_count"`
}
