// Package dynamodb implements catalog.Catalog on a DynamoDB table, so several
// benchmark hosts can share one snapshot bucket.
//
// Table schema:
//   - Partition key: entry_key (string), "ensemble#<params key>" or
//     "groundtruth#<dataset>"
//   - Sort key: size (number), the member count or row length
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name annforest-catalog \
//	  --attribute-definitions AttributeName=entry_key,AttributeType=S AttributeName=size,AttributeType=N \
//	  --key-schema AttributeName=entry_key,KeyType=HASH AttributeName=size,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/annforest/catalog"
)

// Compile-time check to ensure Catalog satisfies catalog.Catalog.
var _ catalog.Catalog = (*Catalog)(nil)

// ErrAlreadyRegistered is returned when an entry with the same key and size
// exists.
var ErrAlreadyRegistered = errors.New("dynamodb: entry already registered")

const (
	attrKey  = "entry_key"
	attrSize = "size"
	attrName = "blob_name"
)

// Client is the subset of the DynamoDB API the catalog uses.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Catalog stores entries in a DynamoDB table.
type Catalog struct {
	client Client
	table  string
}

// New loads the default AWS configuration and returns a catalog on table.
func New(ctx context.Context, table string, optFns ...func(*config.LoadOptions) error) (*Catalog, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, err
	}
	return NewCatalog(dynamodb.NewFromConfig(cfg), table), nil
}

// NewCatalog returns a catalog using an existing client.
func NewCatalog(client Client, table string) *Catalog {
	return &Catalog{client: client, table: table}
}

func partition(groundTruth bool, key string) string {
	if groundTruth {
		return "groundtruth#" + key
	}
	return "ensemble#" + key
}

// LookupEnsemble implements catalog.Catalog.
func (c *Catalog) LookupEnsemble(ctx context.Context, key string, minMembers int) (catalog.Entry, error) {
	return c.lookup(ctx, false, key, minMembers)
}

// LookupGroundTruth implements catalog.Catalog.
func (c *Catalog) LookupGroundTruth(ctx context.Context, dataset string, minK int) (catalog.Entry, error) {
	return c.lookup(ctx, true, dataset, minK)
}

// lookup queries the smallest size >= minSize in ascending sort key order.
func (c *Catalog) lookup(ctx context.Context, gt bool, key string, minSize int) (catalog.Entry, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.table),
		KeyConditionExpression: aws.String("entry_key = :k AND size >= :min"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k":   &types.AttributeValueMemberS{Value: partition(gt, key)},
			":min": &types.AttributeValueMemberN{Value: strconv.Itoa(minSize)},
		},
		ScanIndexForward: aws.Bool(true),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("dynamodb: query %s: %w", key, err)
	}
	if len(resp.Items) == 0 {
		return catalog.Entry{}, catalog.ErrNotFound
	}

	item := resp.Items[0]
	sizeAttr, ok := item[attrSize].(*types.AttributeValueMemberN)
	if !ok {
		return catalog.Entry{}, errors.New("dynamodb: invalid size attribute")
	}
	nameAttr, ok := item[attrName].(*types.AttributeValueMemberS)
	if !ok {
		return catalog.Entry{}, errors.New("dynamodb: invalid blob_name attribute")
	}
	size, err := strconv.Atoi(sizeAttr.Value)
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("dynamodb: parse size: %w", err)
	}
	return catalog.Entry{Name: nameAttr.Value, Key: key, Size: size, GroundTruth: gt}, nil
}

// Register writes the entry unless one with the same key and size exists.
func (c *Catalog) Register(ctx context.Context, e catalog.Entry) error {
	_, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item: map[string]types.AttributeValue{
			attrKey:  &types.AttributeValueMemberS{Value: partition(e.GroundTruth, e.Key)},
			attrSize: &types.AttributeValueMemberN{Value: strconv.Itoa(e.Size)},
			attrName: &types.AttributeValueMemberS{Value: e.Name},
		},
		ConditionExpression: aws.String("attribute_not_exists(size)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("dynamodb: register %s: %w", e.Name, err)
	}
	return nil
}
