package dynamodb

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annforest/catalog"
)

// mockClient is an in-memory table honoring the key condition the catalog
// issues.
type mockClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	err   error
}

func newMockClient() *mockClient {
	return &mockClient{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(item map[string]types.AttributeValue) string {
	return item[attrKey].(*types.AttributeValueMemberS).Value + ":" + item[attrSize].(*types.AttributeValueMemberN).Value
}

func (m *mockClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	key := itemKey(params.Item)
	if aws.ToString(params.ConditionExpression) == "attribute_not_exists(size)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}
	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	pk := params.ExpressionAttributeValues[":k"].(*types.AttributeValueMemberS).Value
	minSize, _ := strconv.Atoi(params.ExpressionAttributeValues[":min"].(*types.AttributeValueMemberN).Value)

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		size, _ := strconv.Atoi(item[attrSize].(*types.AttributeValueMemberN).Value)
		if item[attrKey].(*types.AttributeValueMemberS).Value == pk && size >= minSize {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		a, _ := strconv.Atoi(items[i][attrSize].(*types.AttributeValueMemberN).Value)
		b, _ := strconv.Atoi(items[j][attrSize].(*types.AttributeValueMemberN).Value)
		if aws.ToBool(params.ScanIndexForward) {
			return a < b
		}
		return a > b
	})
	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	c := NewCatalog(newMockClient(), "annforest-catalog")

	for _, e := range []catalog.Entry{
		catalog.EnsembleEntry("RKDTree_leaf50_o5", 40),
		catalog.EnsembleEntry("RKDTree_leaf50_o5", 10),
		catalog.GroundTruthEntry("RKDTree_leaf50_o5", 100),
		catalog.GroundTruthEntry("sift", 10),
	} {
		require.NoError(t, c.Register(ctx, e))
	}

	t.Run("SmallestSufficientEnsemble", func(t *testing.T) {
		e, err := c.LookupEnsemble(ctx, "RKDTree_leaf50_o5", 5)
		require.NoError(t, err)
		assert.Equal(t, catalog.EnsembleEntry("RKDTree_leaf50_o5", 10), e)

		e, err = c.LookupEnsemble(ctx, "RKDTree_leaf50_o5", 11)
		require.NoError(t, err)
		assert.Equal(t, 40, e.Size)

		_, err = c.LookupEnsemble(ctx, "RKDTree_leaf50_o5", 41)
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("KindsAreSeparate", func(t *testing.T) {
		e, err := c.LookupGroundTruth(ctx, "RKDTree_leaf50_o5", 1)
		require.NoError(t, err)
		assert.True(t, e.GroundTruth)
		assert.Equal(t, 100, e.Size)

		_, err = c.LookupGroundTruth(ctx, "sift", 11)
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("DuplicateRegistration", func(t *testing.T) {
		err := c.Register(ctx, catalog.GroundTruthEntry("sift", 10))
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
	})
}

func TestCatalogClientError(t *testing.T) {
	ctx := context.Background()
	mc := newMockClient()
	mc.err = errors.New("throttled")
	c := NewCatalog(mc, "t")

	_, err := c.LookupEnsemble(ctx, "x", 1)
	assert.ErrorContains(t, err, "throttled")
	err = c.Register(ctx, catalog.EnsembleEntry("x", 1))
	assert.ErrorContains(t, err, "throttled")
}
