package store

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// userDoc is the BSON shape of a user document.
type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	Password     string             `bson:"password"`
	FirstName    string             `bson:"firstName,omitempty"`
	LastName     string             `bson:"lastName,omitempty"`
	Color        int                `bson:"color,omitempty"`
	Image        string             `bson:"image,omitempty"`
	ProfileSetup bool               `bson:"profileSetup"`
}

func (d *userDoc) toUser() User {
	return User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		Password:     d.Password,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Color:        d.Color,
		Image:        d.Image,
		ProfileSetup: d.ProfileSetup,
	}
}

type mongoUserStore struct {
	coll *mongo.Collection
}

// NewUserStore creates a UserStore backed by the "users" collection.
func NewUserStore(db *mongo.Database) UserStore {
	return &mongoUserStore{coll: db.Collection("users")}
}

func (s *mongoUserStore) Create(ctx context.Context, u *User) (*User, error) {
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		Email:        u.Email,
		Password:     u.Password,
		ProfileSetup: false,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("store: insert user: %w", err)
	}
	created := doc.toUser()
	return &created, nil
}

func (s *mongoUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	var doc userDoc
	err := s.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find user by email: %w", err)
	}
	u := doc.toUser()
	return &u, nil
}

func (s *mongoUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("store: invalid user id %q: %w", id, err)
	}

	var doc userDoc
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find user: %w", err)
	}
	u := doc.toUser()
	return &u, nil
}

// UpdateProfile sets the display fields and marks the profile as set up,
// returning the updated document.
func (s *mongoUserStore) UpdateProfile(ctx context.Context, id, firstName, lastName string, color int) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("store: invalid user id %q: %w", id, err)
	}

	update := bson.M{"$set": bson.M{
		"firstName":    firstName,
		"lastName":     lastName,
		"color":        color,
		"profileSetup": true,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDoc
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: update profile: %w", err)
	}
	u := doc.toUser()
	return &u, nil
}

// SetImage updates the profile image path. An empty image removes it.
func (s *mongoUserStore) SetImage(ctx context.Context, id, image string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("store: invalid user id %q: %w", id, err)
	}

	var update bson.M
	if image == "" {
		update = bson.M{"$unset": bson.M{"image": ""}}
	} else {
		update = bson.M{"$set": bson.M{"image": image}}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDoc
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: set image: %w", err)
	}
	u := doc.toUser()
	return &u, nil
}

// Search finds users whose email or name matches the term, case-insensitive,
// excluding the viewer. The term is escaped so user input cannot inject
// regex syntax.
func (s *mongoUserStore) Search(ctx context.Context, viewer, term string) ([]User, error) {
	viewerID, err := primitive.ObjectIDFromHex(viewer)
	if err != nil {
		return nil, fmt.Errorf("store: invalid viewer id %q: %w", viewer, err)
	}

	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
	filter := bson.M{
		"_id": bson.M{"$ne": viewerID},
		"$or": bson.A{
			bson.M{"email": pattern},
			bson.M{"firstName": pattern},
			bson.M{"lastName": pattern},
		},
	}

	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("store: search users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decode user search: %w", err)
	}

	users := make([]User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toUser())
	}
	return users, nil
}
