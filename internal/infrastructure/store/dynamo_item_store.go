package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/phone-storefront/internal/collection"
	"github.com/shopspring/decimal"
)

// batchWriteLimit is DynamoDB's maximum number of requests per BatchWriteItem
const batchWriteLimit = 25

// DynamoAPI is the subset of the DynamoDB client the item store uses
type DynamoAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoItemStore implements collection.RemoteStore on a DynamoDB table
// keyed by user_id (partition) and product_id (sort).
type DynamoItemStore struct {
	client    DynamoAPI
	tableName string
}

// dynamoItem represents the DynamoDB item structure
type dynamoItem struct {
	UserID    string `dynamodbav:"user_id"`
	ProductID string `dynamodbav:"product_id"`
	Quantity  int    `dynamodbav:"quantity"`
	Name      string `dynamodbav:"name"`
	Price     string `dynamodbav:"price"`
	ImageURL  string `dynamodbav:"image_url,omitempty"`
	Brand     string `dynamodbav:"brand,omitempty"`
	AddedAt   string `dynamodbav:"added_at"`
}

// NewDynamoClient builds a DynamoDB client. A non-empty endpoint points it at a local emulator.
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func NewDynamoItemStore(client DynamoAPI, tableName string) *DynamoItemStore {
	return &DynamoItemStore{client: client, tableName: tableName}
}

func toDynamoItem(userID string, it collection.LineItem) dynamoItem {
	return dynamoItem{
		UserID:    userID,
		ProductID: it.ProductID,
		Quantity:  it.Quantity,
		Name:      it.Snapshot.Name,
		Price:     it.Snapshot.Price.String(),
		ImageURL:  it.Snapshot.ImageURL,
		Brand:     it.Snapshot.Brand,
		AddedAt:   it.AddedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (d dynamoItem) lineItem() (collection.LineItem, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return collection.LineItem{}, fmt.Errorf("bad price %q for %s: %w", d.Price, d.ProductID, err)
	}
	addedAt, _ := time.Parse(time.RFC3339Nano, d.AddedAt)
	return collection.LineItem{
		ProductID: d.ProductID,
		Quantity:  d.Quantity,
		Snapshot: collection.ProductSnapshot{
			Name:     d.Name,
			Price:    price,
			ImageURL: d.ImageURL,
			Brand:    d.Brand,
		},
		AddedAt: addedAt,
	}, nil
}

func itemKey(userID, productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id":    &types.AttributeValueMemberS{Value: userID},
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
}

// queryUser pages through every item of userID
func (s *DynamoItemStore) queryUser(ctx context.Context, userID string, projection *string) ([]map[string]types.AttributeValue, error) {
	var (
		items []map[string]types.AttributeValue
		start map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("user_id = :uid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid": &types.AttributeValueMemberS{Value: userID},
			},
			ProjectionExpression: projection,
			ExclusiveStartKey:    start,
		})
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", s.tableName, err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = out.LastEvaluatedKey
	}
}

func (s *DynamoItemStore) SelectAllByUser(ctx context.Context, userID string) ([]collection.LineItem, error) {
	raw, err := s.queryUser(ctx, userID, nil)
	if err != nil {
		return nil, err
	}

	var rows []dynamoItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items: %w", err)
	}

	items := make([]collection.LineItem, 0, len(rows))
	for _, r := range rows {
		it, err := r.lineItem()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	// The sort key orders by product id; display order is insertion order.
	sort.SliceStable(items, func(i, j int) bool { return items[i].AddedAt.Before(items[j].AddedAt) })
	return items, nil
}

// Upsert writes the full item. The original added_at is kept when the item already exists.
func (s *DynamoItemStore) Upsert(ctx context.Context, userID string, item collection.LineItem) error {
	d := toDynamoItem(userID, item)
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              itemKey(userID, item.ProductID),
		UpdateExpression: aws.String("SET quantity = :q, #n = :n, price = :p, image_url = :i, brand = :b, added_at = if_not_exists(added_at, :a)"),
		ExpressionAttributeNames: map[string]string{
			"#n": "name",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q": &types.AttributeValueMemberN{Value: strconv.Itoa(d.Quantity)},
			":n": &types.AttributeValueMemberS{Value: d.Name},
			":p": &types.AttributeValueMemberS{Value: d.Price},
			":i": &types.AttributeValueMemberS{Value: d.ImageURL},
			":b": &types.AttributeValueMemberS{Value: d.Brand},
			":a": &types.AttributeValueMemberS{Value: d.AddedAt},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", s.tableName, err)
	}
	return nil
}

// Update changes the quantity of an existing item. A missing item is not an error.
func (s *DynamoItemStore) Update(ctx context.Context, userID, productID string, quantity int) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 itemKey(userID, productID),
		UpdateExpression:    aws.String("SET quantity = :q"),
		ConditionExpression: aws.String("attribute_exists(product_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q": &types.AttributeValueMemberN{Value: strconv.Itoa(quantity)},
		},
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", s.tableName, err)
	}
	return nil
}

func (s *DynamoItemStore) DeleteOne(ctx context.Context, userID, productID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey(userID, productID),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.tableName, err)
	}
	return nil
}

func (s *DynamoItemStore) DeleteAllByUser(ctx context.Context, userID string) error {
	keys, err := s.queryUser(ctx, userID, aws.String("user_id, product_id"))
	if err != nil {
		return err
	}

	for len(keys) > 0 {
		n := min(len(keys), batchWriteLimit)
		reqs := make([]types.WriteRequest, n)
		for i, k := range keys[:n] {
			reqs[i] = types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}}
		}
		keys = keys[n:]

		pending := map[string][]types.WriteRequest{s.tableName: reqs}
		for len(pending) > 0 {
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("batch delete %s: %w", s.tableName, err)
			}
			// Unprocessed items are handed back under throttling.
			pending = out.UnprocessedItems
		}
	}
	return nil
}
