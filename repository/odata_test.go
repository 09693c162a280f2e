package repository

import "testing"

func TestODataFilter(t *testing.T) {
	got, err := odataFilter("com.foo.bar.TodoMashete", Filter{"docType": "TodoMashete.Task", "done": true})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	want := "PartitionKey eq 'com.foo.bar.TodoMashete' and docType eq 'TodoMashete.Task' and done eq true"
	if got != want {
		t.Fatalf("unexpected filter\n got: %s\nwant: %s", got, want)
	}
}

func TestODataFilterEscapesQuotesAndMapsID(t *testing.T) {
	got, err := odataFilter("o'brien", Filter{IDKey: "abc"})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	want := "PartitionKey eq 'o''brien' and RowKey eq 'abc'"
	if got != want {
		t.Fatalf("unexpected filter %s", got)
	}
}

func TestODataFilterRejectsUnsupportedValues(t *testing.T) {
	if _, err := odataFilter("s", Filter{"tags": []string{"a"}}); err == nil {
		t.Fatal("expected error for slice value")
	}
}

func TestEncodeDecodeEntity(t *testing.T) {
	payload, err := encodeEntity("sandbox", "row-1", Document{IDKey: "ignored", "name": "Buy milk", "done": false, "Timestamp": "x"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	doc, err := decodeEntity(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.ID() != "row-1" {
		t.Fatalf("expected id from RowKey, got %q", doc.ID())
	}
	if doc["name"] != "Buy milk" || doc["done"] != false {
		t.Fatalf("unexpected doc %#v", doc)
	}
	if _, ok := doc["PartitionKey"]; ok {
		t.Fatalf("partition key leaked into document: %#v", doc)
	}
	if _, ok := doc["Timestamp"]; ok {
		t.Fatalf("timestamp leaked into document: %#v", doc)
	}
}

func TestDecodeEntityDropsODataMetadata(t *testing.T) {
	data := []byte(`{"odata.etag":"W/\"1\"","PartitionKey":"s","RowKey":"r","Timestamp":"2024-01-01T00:00:00Z","done":true,"order@odata.type":"Edm.Int64","order":"5"}`)
	doc, err := decodeEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc) != 3 {
		t.Fatalf("expected _id, done and order only, got %#v", doc)
	}
}
