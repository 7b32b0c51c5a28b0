package entities

// WrappedData is the narrative "year in review" produced by the assistant.
type WrappedData struct {
	Identity struct {
		Archetype   string `json:"archetype"`
		Quote       string `json:"quote"`
		Description string `json:"description"`
	} `json:"identity"`
	TimeStats struct {
		PeakHour string `json:"peakHour"`
		BestDay  string `json:"bestDay"`
		Comment  string `json:"comment"`
	} `json:"timeStats"`
	CategoryStats struct {
		TopCategory    string  `json:"topCategory"`
		CompletionRate float64 `json:"completionRate"`
		Comment        string  `json:"comment"`
	} `json:"categoryStats"`
	Streaks struct {
		LongestStreak float64 `json:"longestStreak"`
		Type          string  `json:"type"`
		Comment       string  `json:"comment"`
	} `json:"streaks"`
	ProjectStats struct {
		HighlightProject string `json:"highlightProject"`
		Role             string `json:"role"`
		Comment          string `json:"comment"`
	} `json:"projectStats"`
	Growth       []string `json:"growth"`
	Achievements []string `json:"achievements"`
	Movie        struct {
		Title       string `json:"title"`
		Genre       string `json:"genre"`
		Description string `json:"description"`
	} `json:"movie"`
	Predictions []string `json:"predictions"`
	Final       struct {
		Title string `json:"title"`
		Quote string `json:"quote"`
	} `json:"final"`
}

// WrappedStats are the figures the wrapped narrative is written from.
type WrappedStats struct {
	Simulated         bool           `json:"simulated"`
	TotalTasks        int            `json:"totalTasks"`
	CompletedTasks    int            `json:"completedTasks"`
	CompletionRate    int            `json:"completionRate"`
	Categories        map[string]int `json:"categories"`
	TopCategory       string         `json:"topCategory"`
	PeakHour          string         `json:"peakHour"`
	BestDay           string         `json:"bestDay"`
	LongestStreak     int            `json:"longestStreak"`
	ProjectsCompleted int            `json:"projectsCompleted"`
	GroupPerformance  string         `json:"groupPerformance"`
}
