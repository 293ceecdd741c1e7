package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/phone-storefront/internal/collection"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo records requests and serves canned query pages
type fakeDynamo struct {
	pages         []*dynamodb.QueryOutput
	queries       []*dynamodb.QueryInput
	updates       []*dynamodb.UpdateItemInput
	deletes       []*dynamodb.DeleteItemInput
	batches       []*dynamodb.BatchWriteItemInput
	updateErr     error
	unprocessOnce bool
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	if len(f.pages) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	out := f.pages[0]
	f.pages = f.pages[1:]
	return out, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, _ *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.deletes = append(f.deletes, in)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.batches = append(f.batches, in)
	if f.unprocessOnce {
		f.unprocessOnce = false
		return &dynamodb.BatchWriteItemOutput{UnprocessedItems: in.RequestItems}, nil
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func marshalItems(t *testing.T, items ...dynamoItem) []map[string]types.AttributeValue {
	t.Helper()
	out := make([]map[string]types.AttributeValue, len(items))
	for i, it := range items {
		av, err := attributevalue.MarshalMap(it)
		require.NoError(t, err)
		out[i] = av
	}
	return out
}

func keysFor(userID string, n int) []map[string]types.AttributeValue {
	keys := make([]map[string]types.AttributeValue, n)
	for i := range keys {
		keys[i] = itemKey(userID, fmt.Sprintf("p%02d", i))
	}
	return keys
}

// ============================================
// Reads
// ============================================

func TestDynamoItemStore_SelectAllByUser_PagesAndOrdersByAddedAt(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	fake := &fakeDynamo{pages: []*dynamodb.QueryOutput{
		{
			Items: marshalItems(t,
				dynamoItem{UserID: "u1", ProductID: "a", Quantity: 1, Name: "A", Price: "10.50", AddedAt: t0.Add(2 * time.Minute).Format(time.RFC3339Nano)},
			),
			LastEvaluatedKey: itemKey("u1", "a"),
		},
		{
			Items: marshalItems(t,
				dynamoItem{UserID: "u1", ProductID: "b", Quantity: 3, Name: "B", Price: "99", Brand: "Acme", AddedAt: t0.Format(time.RFC3339Nano)},
			),
		},
	}}
	s := NewDynamoItemStore(fake, "cart_items")

	items, err := s.SelectAllByUser(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ProductID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "Acme", items[0].Snapshot.Brand)
	assert.True(t, decimal.NewFromInt(99).Equal(items[0].Snapshot.Price))
	assert.Equal(t, "a", items[1].ProductID)
	assert.True(t, decimal.RequireFromString("10.50").Equal(items[1].Snapshot.Price))

	require.Len(t, fake.queries, 2)
	assert.Nil(t, fake.queries[0].ExclusiveStartKey)
	assert.Equal(t, itemKey("u1", "a"), fake.queries[1].ExclusiveStartKey)
}

func TestDynamoItemStore_SelectAllByUser_BadPrice(t *testing.T) {
	fake := &fakeDynamo{pages: []*dynamodb.QueryOutput{{
		Items: marshalItems(t, dynamoItem{UserID: "u1", ProductID: "a", Quantity: 1, Price: "abc"}),
	}}}
	s := NewDynamoItemStore(fake, "cart_items")

	_, err := s.SelectAllByUser(context.Background(), "u1")

	assert.Error(t, err)
}

// ============================================
// Writes
// ============================================

func TestDynamoItemStore_Upsert_KeepsOriginalAddedAt(t *testing.T) {
	fake := &fakeDynamo{}
	s := NewDynamoItemStore(fake, "cart_items")
	item := collection.LineItem{
		ProductID: "p1",
		Quantity:  2,
		Snapshot:  collection.ProductSnapshot{Name: "Phone", Price: decimal.RequireFromString("250")},
		AddedAt:   time.Now(),
	}

	require.NoError(t, s.Upsert(context.Background(), "u1", item))

	require.Len(t, fake.updates, 1)
	in := fake.updates[0]
	assert.Equal(t, "cart_items", aws.ToString(in.TableName))
	assert.Contains(t, aws.ToString(in.UpdateExpression), "if_not_exists(added_at, :a)")
	assert.Equal(t, &types.AttributeValueMemberN{Value: "2"}, in.ExpressionAttributeValues[":q"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "250"}, in.ExpressionAttributeValues[":p"])
	assert.Nil(t, in.ConditionExpression)
}

func TestDynamoItemStore_Update_MissingItemIsNoop(t *testing.T) {
	fake := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{Message: aws.String("missing")}}
	s := NewDynamoItemStore(fake, "cart_items")

	err := s.Update(context.Background(), "u1", "p1", 4)

	assert.NoError(t, err)
	require.Len(t, fake.updates, 1)
	assert.Equal(t, "attribute_exists(product_id)", aws.ToString(fake.updates[0].ConditionExpression))
}

func TestDynamoItemStore_Update_Failure(t *testing.T) {
	fake := &fakeDynamo{updateErr: errors.New("throttled")}
	s := NewDynamoItemStore(fake, "cart_items")

	err := s.Update(context.Background(), "u1", "p1", 4)

	assert.Error(t, err)
}

func TestDynamoItemStore_DeleteOne(t *testing.T) {
	fake := &fakeDynamo{}
	s := NewDynamoItemStore(fake, "wishlist_items")

	require.NoError(t, s.DeleteOne(context.Background(), "u1", "p1"))

	require.Len(t, fake.deletes, 1)
	assert.Equal(t, itemKey("u1", "p1"), fake.deletes[0].Key)
}

func TestDynamoItemStore_DeleteAllByUser_ChunksAndRetriesUnprocessed(t *testing.T) {
	fake := &fakeDynamo{
		pages:         []*dynamodb.QueryOutput{{Items: keysFor("u1", 30)}},
		unprocessOnce: true,
	}
	s := NewDynamoItemStore(fake, "cart_items")

	require.NoError(t, s.DeleteAllByUser(context.Background(), "u1"))

	// first chunk of 25 is retried once, then the remaining 5
	require.Len(t, fake.batches, 3)
	assert.Len(t, fake.batches[0].RequestItems["cart_items"], 25)
	assert.Len(t, fake.batches[1].RequestItems["cart_items"], 25)
	assert.Len(t, fake.batches[2].RequestItems["cart_items"], 5)
	assert.Equal(t, "user_id, product_id", aws.ToString(fake.queries[0].ProjectionExpression))
}

func TestDynamoItemStore_DeleteAllByUser_Empty(t *testing.T) {
	fake := &fakeDynamo{}
	s := NewDynamoItemStore(fake, "cart_items")

	require.NoError(t, s.DeleteAllByUser(context.Background(), "u1"))
	assert.Empty(t, fake.batches)
}
