package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "mashetes"

// Tables stores every sandbox in one Azure table, partitioned by sandbox name.
type Tables struct {
	client *aztables.Client
}

// NewTables creates a Tables repository from the given connection string.
func NewTables(connStr, table string) (*Tables, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Tables{client: svc.NewClient(table)}, nil
}

// EnsureTable creates the backing table. An existing table is not an error.
func (t *Tables) EnsureTable(ctx context.Context) error {
	if _, err := t.client.CreateTable(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return err
		}
	}
	return nil
}

func (t *Tables) Of(sandbox string) Accessor {
	return &tableAccessor{client: t.client, sandbox: sandbox}
}

type tableAccessor struct {
	client  *aztables.Client
	sandbox string
}

func (a *tableAccessor) Search(ctx context.Context, filter Filter) ([]Document, error) {
	return a.list(ctx, filter, nil)
}

func (a *tableAccessor) list(ctx context.Context, filter Filter, sel *string) ([]Document, error) {
	query, err := odataFilter(a.sandbox, filter)
	if err != nil {
		return nil, err
	}
	pager := a.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &query, Select: sel})
	docs := []Document{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			doc, err := decodeEntity(e)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (a *tableAccessor) Save(ctx context.Context, doc Document) (string, error) {
	id := doc.ID()
	if id == "" {
		// v7 ids sort by creation time, so RowKey order is insertion order.
		v7, err := uuid.NewV7()
		if err != nil {
			return "", err
		}
		payload, err := encodeEntity(a.sandbox, v7.String(), doc)
		if err != nil {
			return "", err
		}
		if _, err := a.client.AddEntity(ctx, payload, nil); err != nil {
			return "", err
		}
		return v7.String(), nil
	}
	payload, err := encodeEntity(a.sandbox, id, doc)
	if err != nil {
		return "", err
	}
	et := azcore.ETagAny
	_, err = a.client.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", err
	}
	return id, nil
}

func (a *tableAccessor) RemoveSelection(ctx context.Context, filter Filter) (int, error) {
	sel := "RowKey"
	docs, err := a.list(ctx, filter, &sel)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, doc := range docs {
		if _, err := a.client.DeleteEntity(ctx, a.sandbox, doc.ID(), nil); err != nil {
			if isStatus(err, http.StatusNotFound) {
				continue
			}
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

func encodeEntity(sandbox, id string, doc Document) ([]byte, error) {
	ent := make(map[string]any, len(doc)+2)
	for k, v := range doc {
		if k == IDKey || isReservedProperty(k) {
			continue
		}
		ent[k] = v
	}
	ent["PartitionKey"] = sandbox
	ent["RowKey"] = id
	return json.Marshal(ent)
}

func decodeEntity(data []byte) (Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	doc := make(Document, len(raw))
	for k, v := range raw {
		if isReservedProperty(k) {
			continue
		}
		doc[k] = v
	}
	if rk, ok := raw["RowKey"].(string); ok {
		doc[IDKey] = rk
	}
	return doc, nil
}
