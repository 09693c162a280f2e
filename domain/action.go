package domain

// Action types dispatched between the to-do views and its store.
const (
	SaveNewTask     = "SAVE_NEW_TASK"
	DeleteDoneTasks = "DELETE_DONE_TASK"
	ChangeTaskState = "CHANGE_TASK_STATE"
	TasksChanged    = "TASKS_CHANGED"
	TasksAdded      = "TASKS_ADDED"
)

// Action is a dispatched event. It only lives for the duration of a trigger.
type Action struct {
	Type    string
	Payload any
}

type SaveNewTaskPayload struct {
	Text string `json:"text"`
}

type ChangeTaskStatePayload struct {
	ID   string `json:"id"`
	Done bool   `json:"done"`
}

// TasksAddedPayload carries the identifier assigned by the repository.
type TasksAddedPayload struct {
	ID string `json:"id"`
}
