package Models

import (
	"strings"
	"time"
)

const UsersCollection = "users"

// User is a stored user document. PendingTasks holds the ids of tasks
// currently assigned to the user and not yet completed.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PendingTasks []string  `json:"pendingTasks"`
	DateCreated  time.Time `json:"dateCreated"`
}

// UserPayload is the request body for creating or replacing a user.
// PendingTasks is a pointer so a replacement that omits the field leaves
// the stored list unchanged, while an explicit empty list clears it.
type UserPayload struct {
	Name         string    `json:"name" validate:"required"`
	Email        string    `json:"email" validate:"required"`
	PendingTasks *[]string `json:"pendingTasks"`
}

// NormalizeEmail trims and lower-cases an email address. All stored emails
// and all duplicate checks go through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
