package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamoDBAPI defines the DynamoDB operations used by Mirror.
type dynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Mirror writes compliance Entry rows to a DynamoDB table for long-retention
// export, independent of the local Bolt-backed admission/trust histories
// (which are bounded by local retention).
//
// Table schema assumed to exist externally:
//   - Partition key: device_id (String)
//   - Sort key: timestamp (String, RFC3339Nano)
type Mirror struct {
	client    dynamoDBAPI
	tableName string
}

// NewMirror builds a Mirror writing to tableName using cfg.
func NewMirror(cfg aws.Config, tableName string) *Mirror {
	return &Mirror{client: dynamodb.NewFromConfig(cfg), tableName: tableName}
}

// newMirrorWithClient builds a Mirror against a test double.
func newMirrorWithClient(client dynamoDBAPI, tableName string) *Mirror {
	return &Mirror{client: client, tableName: tableName}
}

type dynamoEntry struct {
	DeviceID  string `dynamodbav:"device_id"`
	Timestamp string `dynamodbav:"timestamp"`
	Kind      string `dynamodbav:"kind"`
	Status    string `dynamodbav:"status"`
	Notes     string `dynamodbav:"notes,omitempty"`
}

// Put appends one Entry to the remote mirror.
func (m *Mirror) Put(ctx context.Context, e Entry) error {
	item := dynamoEntry{
		DeviceID:  e.DeviceID,
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
		Kind:      string(e.Kind),
		Status:    e.Status,
		Notes:     e.Notes,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("dynamodb PutItem: %w", err)
	}
	return nil
}

// QueryByDevice returns the mirrored entries for a device, newest first.
func (m *Mirror) QueryByDevice(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	out, err := m.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(m.tableName),
		KeyConditionExpression: aws.String("device_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: deviceID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb Query: %w", err)
	}

	entries := make([]Entry, 0, len(out.Items))
	for _, av := range out.Items {
		var item dynamoEntry
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return nil, fmt.Errorf("unmarshal audit entry: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, item.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
		entries = append(entries, Entry{
			Timestamp: ts,
			DeviceID:  item.DeviceID,
			Kind:      EntryKind(item.Kind),
			Status:    item.Status,
			Notes:     item.Notes,
		})
	}
	return entries, nil
}
