package notification

import (
	"time"
)

// Notification is an in-app message. Exactly one of StudentID and TeacherID is set.
type Notification struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id,omitempty"`
	TeacherID string    `json:"teacher_id,omitempty"`
	Object    string    `json:"object"`
	Content   string    `json:"content"`
	Date      time.Time `json:"date"` // virtual clock time
	Read      bool      `json:"read"`
}

// OwnedBy reports whether the notification was addressed to userID.
func (n Notification) OwnedBy(userID string) bool {
	return userID != "" && (n.StudentID == userID || n.TeacherID == userID)
}

type QueryFilter struct {
	StudentID  string
	TeacherID  string
	UnreadOnly bool
}
