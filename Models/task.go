package Models

import "time"

const TasksCollection = "tasks"

// Task is a stored task document. AssignedUser holds the id of the user the
// task is assigned to, or "" when unassigned. AssignedUserName is a
// denormalized copy of that user's display name and is always recomputed on
// write, never edited by hand.
type Task struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Deadline         time.Time `json:"deadline"`
	Completed        bool      `json:"completed"`
	AssignedUser     string    `json:"assignedUser"`
	AssignedUserName string    `json:"assignedUserName"`
	DateCreated      time.Time `json:"dateCreated"`
}

// TaskPayload is the request body for creating or replacing a task.
type TaskPayload struct {
	Name         string     `json:"name" validate:"required"`
	Description  string     `json:"description"`
	Deadline     *time.Time `json:"deadline" validate:"required"`
	Completed    bool       `json:"completed"`
	AssignedUser string     `json:"assignedUser"`
}
