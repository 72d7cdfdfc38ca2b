package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flowmetrics/flowmetrics/internal/domain"
	"github.com/flowmetrics/flowmetrics/internal/logger"
	"github.com/flowmetrics/flowmetrics/internal/metrics"
)

// ErrRuleExists is returned when creating a rule whose rule_id is taken
var ErrRuleExists = errors.New("rule with this rule_id already exists")

// Client wraps the document store: the raw event archive, the aggregation
// rule collection and the scheduler lock collection.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewClient connects to MongoDB and verifies the connection
func NewClient(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info(LogMsgConnected, "database", database)
	return &Client{client: client, db: client.Database(database)}, nil
}

// Close disconnects from MongoDB
func (c *Client) Close(ctx context.Context) error {
	err := c.client.Disconnect(ctx)
	logger.Info(LogMsgDisconnected)
	return err
}

// Ping verifies the connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// ArchiveEvents writes the batch verbatim to the events_raw collection.
// The whole batch fails together; there is no partial archive.
func (c *Client) ArchiveEvents(ctx context.Context, events []map[string]interface{}) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]interface{}, len(events))
	for i, e := range events {
		docs[i] = e
	}

	if _, err := c.db.Collection(CollectionEventsRaw).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to archive events: %w", err)
	}

	metrics.EventsArchived.Add(float64(len(events)))
	logger.FromContext(ctx).Debug(LogMsgEventsArchived, "count", len(events))
	return nil
}

// ActiveRules loads every rule with is_active = true. Documents that do
// not decode into a rule are logged and skipped.
func (c *Client) ActiveRules(ctx context.Context) ([]domain.AggregationRule, error) {
	cursor, err := c.db.Collection(CollectionRules).Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to load active rules: %w", err)
	}
	defer cursor.Close(ctx)

	log := logger.FromContext(ctx)

	var rules []domain.AggregationRule
	for cursor.Next(ctx) {
		var rule domain.AggregationRule
		if err := cursor.Decode(&rule); err != nil {
			log.Warn(LogMsgInvalidRuleDoc, "error", err)
			continue
		}
		if rule.RuleID == "" || len(rule.GroupBy) == 0 {
			log.Warn(LogMsgInvalidRuleDoc, "rule_id", rule.RuleID)
			continue
		}
		rules = append(rules, rule)
	}

	return rules, cursor.Err()
}

// GetRule fetches one rule by rule_id
func (c *Client) GetRule(ctx context.Context, ruleID string) (*domain.AggregationRule, error) {
	var rule domain.AggregationRule
	err := c.db.Collection(CollectionRules).FindOne(ctx, bson.M{"rule_id": ruleID}).Decode(&rule)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule %s: %w", ruleID, err)
	}
	return &rule, nil
}

// CreateRule inserts a new rule record, rejecting duplicate rule IDs
func (c *Client) CreateRule(ctx context.Context, rule domain.AggregationRule) error {
	existing, err := c.GetRule(ctx, rule.RuleID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrRuleExists
	}

	if _, err := c.db.Collection(CollectionRules).InsertOne(ctx, rule); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrRuleExists
		}
		return fmt.Errorf("failed to create rule %s: %w", rule.RuleID, err)
	}
	return nil
}

// Lock returns the distributed scheduler lock backed by this client
func (c *Client) Lock() *Lock {
	return &Lock{col: c.db.Collection(CollectionLocks)}
}
