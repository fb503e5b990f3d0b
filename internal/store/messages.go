package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// messageDoc is the BSON shape of a message document.
type messageDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Sender      primitive.ObjectID `bson:"sender"`
	Recipient   primitive.ObjectID `bson:"recipient"`
	MessageType string             `bson:"messageType"`
	Content     string             `bson:"content,omitempty"`
	FileURL     string             `bson:"fileUrl,omitempty"`
	Timestamp   time.Time          `bson:"timestamp"`
}

func (d *messageDoc) toMessage() Message {
	return Message{
		ID:          d.ID.Hex(),
		Sender:      d.Sender.Hex(),
		Recipient:   d.Recipient.Hex(),
		MessageType: d.MessageType,
		Content:     d.Content,
		FileURL:     d.FileURL,
		Timestamp:   d.Timestamp,
	}
}

type mongoMessageStore struct {
	coll *mongo.Collection
}

// NewMessageStore creates a MessageStore backed by the "messages" collection.
func NewMessageStore(db *mongo.Database) MessageStore {
	return &mongoMessageStore{coll: db.Collection("messages")}
}

// Create inserts the message with a fresh ObjectID and a store-assigned
// timestamp. Any timestamp on the input is ignored so that ordering within a
// conversation is decided by this process, not by client clocks.
func (s *mongoMessageStore) Create(ctx context.Context, m *Message) (*Message, error) {
	sender, err := primitive.ObjectIDFromHex(m.Sender)
	if err != nil {
		return nil, fmt.Errorf("store: invalid sender id %q: %w", m.Sender, err)
	}
	recipient, err := primitive.ObjectIDFromHex(m.Recipient)
	if err != nil {
		return nil, fmt.Errorf("store: invalid recipient id %q: %w", m.Recipient, err)
	}

	doc := messageDoc{
		ID:          primitive.NewObjectID(),
		Sender:      sender,
		Recipient:   recipient,
		MessageType: m.MessageType,
		Content:     m.Content,
		FileURL:     m.FileURL,
		Timestamp:   time.Now().UTC(),
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("store: insert message: %w", err)
	}

	stored := doc.toMessage()
	return &stored, nil
}

func (s *mongoMessageStore) FindByID(ctx context.Context, id string) (*Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("store: invalid message id %q: %w", id, err)
	}

	var doc messageDoc
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find message: %w", err)
	}

	m := doc.toMessage()
	return &m, nil
}

// FindConversation returns all messages between the two users in ascending
// timestamp order.
func (s *mongoMessageStore) FindConversation(ctx context.Context, userA, userB string) ([]Message, error) {
	a, err := primitive.ObjectIDFromHex(userA)
	if err != nil {
		return nil, fmt.Errorf("store: invalid user id %q: %w", userA, err)
	}
	b, err := primitive.ObjectIDFromHex(userB)
	if err != nil {
		return nil, fmt.Errorf("store: invalid user id %q: %w", userB, err)
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"sender": a, "recipient": b},
		bson.M{"sender": b, "recipient": a},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store: find conversation: %w", err)
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decode conversation: %w", err)
	}

	messages := make([]Message, 0, len(docs))
	for i := range docs {
		messages = append(messages, docs[i].toMessage())
	}
	return messages, nil
}

// LatestPerContact runs the grouping aggregation: every message the viewer
// took part in, grouped by the other party, reduced to the newest timestamp
// per group.
func (s *mongoMessageStore) LatestPerContact(ctx context.Context, viewer string) ([]ContactActivity, error) {
	viewerID, err := primitive.ObjectIDFromHex(viewer)
	if err != nil {
		return nil, fmt.Errorf("store: invalid viewer id %q: %w", viewer, err)
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "sender", Value: viewerID}},
				bson.D{{Key: "recipient", Value: viewerID}},
			}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: -1}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: bson.D{{Key: "$eq", Value: bson.A{"$sender", viewerID}}}},
				{Key: "then", Value: "$recipient"},
				{Key: "else", Value: "$sender"},
			}}}},
			{Key: "lastMessageTime", Value: bson.D{{Key: "$first", Value: "$timestamp"}}},
		}}},
	}

	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("store: latest-per-contact aggregate: %w", err)
	}

	var rows []struct {
		PartnerID       primitive.ObjectID `bson:"_id"`
		LastMessageTime time.Time          `bson:"lastMessageTime"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("store: decode latest-per-contact: %w", err)
	}

	activities := make([]ContactActivity, 0, len(rows))
	for _, row := range rows {
		activities = append(activities, ContactActivity{
			PartnerID:       row.PartnerID.Hex(),
			LastMessageTime: row.LastMessageTime,
		})
	}
	return activities, nil
}
