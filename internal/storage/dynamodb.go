package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentfloor/agentfloor/internal/types"
)

// timelineRecord is the persisted shape of one timeline entry. DateKey
// partitions by day; EntryID keeps rows unique within a day.
type timelineRecord struct {
	DateKey   string `dynamodbav:"DateKey"`
	EntryID   string `dynamodbav:"EntryID"`
	Timestamp int64  `dynamodbav:"Timestamp"`
	AgentID   string `dynamodbav:"AgentID"`
	AgentName string `dynamodbav:"AgentName"`
	Stream    string `dynamodbav:"Stream"`
	Summary   string `dynamodbav:"Summary"`
}

// DynamoDBStore implements Store using AWS DynamoDB
type DynamoDBStore struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoDBStore, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// For local mode, build the client directly without LoadDefaultConfig.
		// LoadDefaultConfig probes the EC2 IMDS endpoint which hangs when
		// static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	store := &DynamoDBStore{
		client: client,
		config: cfg,
		logger: logger,
	}

	// Create tables in local mode
	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Msg("DynamoDB store initialized")

	return store, nil
}

func (s *DynamoDBStore) SaveTimelineEntry(entry types.EventHistoryEntry) error {
	record := timelineRecord{
		DateKey:   entry.Timestamp.UTC().Format("2006-01-02"),
		EntryID:   uuid.New().String(),
		Timestamp: entry.Timestamp.UnixMilli(),
		AgentID:   entry.AgentID,
		AgentName: entry.AgentName,
		Stream:    entry.Stream,
		Summary:   entry.Summary,
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline entry: %w", err)
	}

	_, err = s.client.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName: aws.String(s.config.TimelineTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save timeline entry: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) GetTimeline(dateKey string) ([]types.EventHistoryEntry, error) {
	keyCond := expression.Key("DateKey").Equal(expression.Value(dateKey))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := s.client.Query(context.Background(), &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.TimelineTable),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}

	var records []timelineRecord
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timeline: %w", err)
	}

	entries := make([]types.EventHistoryEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, types.EventHistoryEntry{
			Timestamp: time.UnixMilli(record.Timestamp),
			AgentID:   record.AgentID,
			AgentName: record.AgentName,
			Stream:    record.Stream,
			Summary:   record.Summary,
		})
	}
	return entries, nil
}

// TruncateAll deletes all items from the timeline table (scan + batch delete)
func (s *DynamoDBStore) TruncateAll() error {
	var lastKey map[string]dbtypes.AttributeValue

	for {
		input := &dynamodb.ScanInput{
			TableName:            aws.String(s.config.TimelineTable),
			ProjectionExpression: aws.String("#pk, #sk"),
			ExpressionAttributeNames: map[string]string{
				"#pk": "DateKey",
				"#sk": "EntryID",
			},
			Limit: aws.Int32(500),
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := s.client.Scan(context.Background(), input)
		if err != nil {
			return err
		}

		// Batch delete in groups of 25
		for i := 0; i < len(result.Items); i += 25 {
			end := i + 25
			if end > len(result.Items) {
				end = len(result.Items)
			}

			requests := make([]dbtypes.WriteRequest, 0, end-i)
			for _, item := range result.Items[i:end] {
				requests = append(requests, dbtypes.WriteRequest{
					DeleteRequest: &dbtypes.DeleteRequest{
						Key: map[string]dbtypes.AttributeValue{
							"DateKey": item["DateKey"],
							"EntryID": item["EntryID"],
						},
					},
				})
			}

			_, err := s.client.BatchWriteItem(context.Background(), &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]dbtypes.WriteRequest{
					s.config.TimelineTable: requests,
				},
			})
			if err != nil {
				return err
			}
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	s.logger.Info().Str("table", s.config.TimelineTable).Msg("table truncated")
	return nil
}
