package dto

// RunRequest captures the options of one report run as collected from flags and environment.
type RunRequest struct {
	Kind            string   `json:"kind" validate:"required,oneof=homeroom class combo"`
	Scope           string   `json:"scope" validate:"required"`
	Date            string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	WorkWeek        string   `json:"work_week" validate:"required"`
	Import          bool     `json:"import"`
	AbsentCategory  string   `json:"absent_category" validate:"required"`
	PresentCategory string   `json:"present_category" validate:"required"`
	ManualStatuses  []string `json:"manual_statuses"`
	Format          string   `json:"format" validate:"omitempty,report_format"`
	From            string   `json:"from" validate:"omitempty,email"`
	To              []string `json:"to" validate:"omitempty,dive,email"`
	Subject         string   `json:"subject"`
	Body            string   `json:"body"`
	TemplatePath    string   `json:"template_path" validate:"omitempty,file"`
}
