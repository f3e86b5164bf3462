// Package dynamodb implements index.Store on an Amazon DynamoDB table.
//
// Table schema:
//   - Partition key: pk (string), the full record key
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name vlogdb-index \
//	  --attribute-definitions AttributeName=pk,AttributeType=S \
//	  --key-schema AttributeName=pk,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
//
// A metadata record keeps offset, length and type as numbers and pointers and
// args as JSON strings. Set members live in a string-set attribute, so a record
// and a set may share one item.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/vlogdb/index"
)

const (
	attrKey     = "pk"
	attrMembers = "members"

	// DynamoDB caps BatchWriteItem at 25 requests.
	batchSize       = 25
	maxBatchRetries = 5

	setRecordExpr = "SET #offset = :offset, #length = :length, #type = :type, #pointers = :pointers, #args = :args"
	addMemberExpr = "ADD #members :members"
)

// ErrUnprocessed is returned when DynamoDB keeps rejecting part of a batch.
var ErrUnprocessed = errors.New("dynamodb: batch items left unprocessed")

// Client is the subset of the DynamoDB API the store needs.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Store is an index.Store backed by DynamoDB.
type Store struct {
	client    Client
	tableName string
}

var _ index.Store = (*Store)(nil)

// NewStore wraps an existing client.
func NewStore(client Client, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// New loads the default AWS configuration and returns a store for tableName.
func New(ctx context.Context, tableName string, optFns ...func(*config.LoadOptions) error) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: load aws config: %w", err)
	}
	return NewStore(dynamodb.NewFromConfig(cfg), tableName), nil
}

func keyOf(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{attrKey: &types.AttributeValueMemberS{Value: key}}
}

func (s *Store) Get(ctx context.Context, key string) (index.Metadata, bool, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            keyOf(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return index.Metadata{}, false, fmt.Errorf("dynamodb: get %q: %w", key, err)
	}
	if _, ok := resp.Item[index.FieldOffset]; !ok {
		return index.Metadata{}, false, nil
	}

	f := make(map[string]string, 5)
	for _, name := range []string{index.FieldOffset, index.FieldLength, index.FieldType} {
		n, ok := resp.Item[name].(*types.AttributeValueMemberN)
		if !ok {
			return index.Metadata{}, false, fmt.Errorf("%w: attribute %s of %q", index.ErrInvalidMetadata, name, key)
		}
		f[name] = n.Value
	}
	for _, name := range []string{index.FieldPointers, index.FieldArgs} {
		v, ok := resp.Item[name].(*types.AttributeValueMemberS)
		if !ok {
			return index.Metadata{}, false, fmt.Errorf("%w: attribute %s of %q", index.ErrInvalidMetadata, name, key)
		}
		f[name] = v.Value
	}

	m, err := index.MetadataFromFields(f)
	if err != nil {
		return index.Metadata{}, false, err
	}
	return m, true, nil
}

func (s *Store) Set(ctx context.Context, key string, m index.Metadata) error {
	f, err := m.Fields()
	if err != nil {
		return err
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              keyOf(key),
		UpdateExpression: aws.String(setRecordExpr),
		ExpressionAttributeNames: map[string]string{
			"#offset":   index.FieldOffset,
			"#length":   index.FieldLength,
			"#type":     index.FieldType,
			"#pointers": index.FieldPointers,
			"#args":     index.FieldArgs,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":offset":   &types.AttributeValueMemberN{Value: f[index.FieldOffset]},
			":length":   &types.AttributeValueMemberN{Value: f[index.FieldLength]},
			":type":     &types.AttributeValueMemberN{Value: f[index.FieldType]},
			":pointers": &types.AttributeValueMemberS{Value: f[index.FieldPointers]},
			":args":     &types.AttributeValueMemberS{Value: f[index.FieldArgs]},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      keyOf(key),
		ConsistentRead:           aws.Bool(true),
		ProjectionExpression:     aws.String("#offset"),
		ExpressionAttributeNames: map[string]string{"#offset": index.FieldOffset},
	})
	if err != nil {
		return false, fmt.Errorf("dynamodb: exists %q: %w", key, err)
	}
	_, ok := resp.Item[index.FieldOffset]
	return ok, nil
}

func (s *Store) SetAdd(ctx context.Context, key, member string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      keyOf(key),
		UpdateExpression:         aws.String(addMemberExpr),
		ExpressionAttributeNames: map[string]string{"#members": attrMembers},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":members": &types.AttributeValueMemberSS{Value: []string{member}},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb: sadd %q: %w", key, err)
	}
	return nil
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            keyOf(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb: members %q: %w", key, err)
	}
	ss, ok := resp.Item[attrMembers].(*types.AttributeValueMemberSS)
	if !ok {
		return nil, nil
	}
	out := slices.Clone(ss.Value)
	slices.Sort(out)
	return out, nil
}

// ScanPrefix pages through a filtered table scan. Keys come back in
// DynamoDB's order, not sorted.
func (s *Store) ScanPrefix(ctx context.Context, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		input := &dynamodb.ScanInput{
			TableName:            aws.String(s.tableName),
			ProjectionExpression: aws.String(attrKey),
			ConsistentRead:       aws.Bool(true),
		}
		if prefix != "" {
			input.FilterExpression = aws.String("begins_with(pk, :prefix)")
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":prefix": &types.AttributeValueMemberS{Value: prefix},
			}
		}

		paginator := dynamodb.NewScanPaginator(s.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield("", fmt.Errorf("dynamodb: scan %q: %w", prefix, err))
				return
			}
			for _, item := range page.Items {
				k, ok := item[attrKey].(*types.AttributeValueMemberS)
				if !ok {
					continue
				}
				if !yield(k.Value, nil) {
					return
				}
			}
		}
	}
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	var keys []string
	for k, err := range s.ScanPrefix(ctx, prefix) {
		if err != nil {
			return err
		}
		keys = append(keys, k)
	}
	for chunk := range slices.Chunk(keys, batchSize) {
		if err := s.deleteBatch(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) deleteBatch(ctx context.Context, keys []string) error {
	reqs := make([]types.WriteRequest, len(keys))
	for i, k := range keys {
		reqs[i] = types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: keyOf(k)}}
	}
	pending := map[string][]types.WriteRequest{s.tableName: reqs}

	for range maxBatchRetries {
		resp, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("dynamodb: batch delete: %w", err)
		}
		if len(resp.UnprocessedItems[s.tableName]) == 0 {
			return nil
		}
		pending = resp.UnprocessedItems
	}
	return fmt.Errorf("%w: %d requests", ErrUnprocessed, len(pending[s.tableName]))
}

func (s *Store) FlushAll(ctx context.Context) error {
	return s.DeletePrefix(ctx, "")
}

// Close is a no-op; the client is owned by the caller.
func (s *Store) Close() error { return nil }
