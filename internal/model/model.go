package model

// TaskStatus tracks a SearchTask through the run state machine.
// Transitions are driven only by the pipeline runner:
// pending -> in_progress -> {done, failed}. Terminal states never
// transition back within one run; a fresh run may retry a failed task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
	StatusFailed     TaskStatus = "failed"
)

// Terminal reports whether the status is done or failed.
func (s TaskStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// SearchTask is one (country, region, category) unit of scraping work.
type SearchTask struct {
	Country  string     `yaml:"country"`
	Region   string     `yaml:"region"`
	Category string     `yaml:"category"`
	Status   TaskStatus `yaml:"-"`
}

// Query returns the human-readable search phrase for the task.
func (t SearchTask) Query() string {
	return t.Category + " in " + t.Region + ", " + t.Country
}

// BusinessRecord is one scraped listing. It is created by the extractor
// (email unset), enriched by the email discoverer, flushed once to the
// sink, and never mutated afterwards.
type BusinessRecord struct {
	Country     string `json:"country"`
	City        string `json:"city"`
	Category    string `json:"category"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Website     string `json:"website"`
	Phone       string `json:"phone"`
	ReviewCount int    `json:"review_count"`
	Address     string `json:"address"`
	MapsURL     string `json:"maps_url"`
}
