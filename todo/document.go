package todo

import (
	"mashetes/domain"
	"mashetes/repository"
)

func taskDocument(t domain.Task) repository.Document {
	doc := repository.Document{
		"name":    t.Name,
		"done":    t.Done,
		"docType": t.DocType,
	}
	if t.ID != "" {
		doc[repository.IDKey] = t.ID
	}
	return doc
}

func taskFromDocument(doc repository.Document) domain.Task {
	t := domain.Task{ID: doc.ID()}
	t.Name, _ = doc["name"].(string)
	t.Done, _ = doc["done"].(bool)
	t.DocType, _ = doc["docType"].(string)
	return t
}
