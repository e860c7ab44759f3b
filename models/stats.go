package models

// CategoryCount is derived by grouping cards on their category; it is never stored.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// StudyStatistics partitions a card list by mastery.
type StudyStatistics struct {
	Total      int `json:"total"`
	Mastered   int `json:"mastered"`
	InProgress int `json:"inProgress"`
	NotStarted int `json:"notStarted"`
}
