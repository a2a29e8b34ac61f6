package dto

// ProgramRequest backs create_program and update_program. Dates use
// YYYY-MM-DD; MaxStudents 0 or absent means unlimited.
type ProgramRequest struct {
	ProgramID   string   `json:"programId"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description"`
	StartDate   string   `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string   `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	MaxStudents *int     `json:"maxStudents" validate:"omitempty,min=0"`
	Status      string   `json:"status" validate:"omitempty,oneof=draft open closed completed"`
	MentorIDs   []string `json:"mentorIds" validate:"omitempty,dive,required"`
}

// ProgramListQuery backs get_programs.
type ProgramListQuery struct {
	Status string `json:"status" validate:"omitempty,oneof=draft open closed completed"`
}
