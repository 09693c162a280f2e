package domain

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestTaskMarshalUsesRepositoryIdentity(t *testing.T) {
	task := Task{ID: "t1", Name: "Buy milk", DocType: "TodoMashete.Task"}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	if !strings.Contains(string(payload), "\"_id\":\"t1\"") {
		t.Fatalf("expected _id field, got %s", payload)
	}
	if !strings.Contains(string(payload), "\"done\":false") {
		t.Fatalf("expected done field to be present, got %s", payload)
	}
}
