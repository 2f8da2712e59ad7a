package dto

// ScheduleView is the display form of a class's lesson calendar.
type ScheduleView struct {
	ClassName      string              `json:"className"`
	TotalLessons   int                 `json:"totalLessons"`
	LessonDay      []string            `json:"lessonDay"`
	LessonDates    []string            `json:"lessonDates"`
	LessonsByMonth map[string][]string `json:"lessonsByMonth"`
	StartDate      string              `json:"startDate"`
	EndDate        string              `json:"endDate"`
}
