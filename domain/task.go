package domain

// Task represents a single to-do item owned by a widget's store.
type Task struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Done    bool   `json:"done"`
	DocType string `json:"docType"`
}
