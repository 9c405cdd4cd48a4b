package audit

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type mockDynamoClient struct {
	putFn   func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	queryFn func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

func (m *mockDynamoClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return m.putFn(ctx, params, optFns...)
}

func (m *mockDynamoClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return m.queryFn(ctx, params, optFns...)
}

func TestMirrorPutMarshalsEntry(t *testing.T) {
	var captured *dynamodb.PutItemInput
	client := &mockDynamoClient{
		putFn: func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			captured = params
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	m := newMirrorWithClient(client, "audit-trail")
	entry := Entry{Timestamp: time.Now(), DeviceID: "DEV_1", Kind: KindTrust, Status: "40", Notes: "dos: high"}

	if err := m.Put(context.Background(), entry); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if captured == nil || *captured.TableName != "audit-trail" {
		t.Fatalf("unexpected PutItem call: %+v", captured)
	}

	var item dynamoEntry
	if err := attributevalue.UnmarshalMap(captured.Item, &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if item.DeviceID != "DEV_1" || item.Status != "40" {
		t.Errorf("item = %+v", item)
	}
}

func TestMirrorQueryByDeviceRoundTripsEntries(t *testing.T) {
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	item := dynamoEntry{DeviceID: "DEV_1", Timestamp: stamp, Kind: "trust", Status: "40"}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	client := &mockDynamoClient{
		queryFn: func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			if *params.TableName != "audit-trail" {
				t.Errorf("TableName = %s", *params.TableName)
			}
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{av}}, nil
		},
	}
	m := newMirrorWithClient(client, "audit-trail")

	entries, err := m.QueryByDevice(context.Background(), "DEV_1", 0)
	if err != nil {
		t.Fatalf("QueryByDevice: %v", err)
	}
	if len(entries) != 1 || entries[0].DeviceID != "DEV_1" || entries[0].Status != "40" {
		t.Errorf("entries = %+v", entries)
	}
}
