package inventory

import "time"

// MovementPostedEvent is emitted after a warehouse movement commits.
type MovementPostedEvent struct {
	MovementID int64
	ProductID  int64
	Type       MovementType
	Filled     int
	Empty      int
	Damaged    int
	PostedAt   time.Time
}
