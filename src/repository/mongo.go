package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	userCollection = "user"
	itemCollection = "item"
)

type (
	// MongoDB is the document store backend.
	MongoDB struct {
		client *mongo.Client
		users  *mongo.Collection
		items  *mongo.Collection
	}

	userDoc struct {
		ID           bson.ObjectID `bson:"_id,omitempty"`
		Firstname    string        `bson:"firstname"`
		Lastname     string        `bson:"lastname"`
		Email        string        `bson:"email"`
		Username     string        `bson:"username"`
		Password     string        `bson:"password"`
		ProfileImage *string       `bson:"profileImage"`
	}

	itemDoc struct {
		ID       bson.ObjectID `bson:"_id,omitempty"`
		Name     string        `bson:"itemName"`
		Category string        `bson:"itemCategory"`
		Price    float64       `bson:"itemPrice"`
		Status   string        `bson:"status"`
	}
)

// OpenMongo connects, pings and makes sure the unique email index exists.
func OpenMongo(ctx context.Context, uri, database string) (*MongoDB, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	m := &MongoDB{
		client: client,
		users:  db.Collection(userCollection),
		items:  db.Collection(itemCollection),
	}
	_, err = m.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure email index: %w", err)
	}
	return m, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func parseObjectID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, ErrInvalidID
	}
	return oid, nil
}

func userFilter(key UserKey) (bson.M, error) {
	if key.IsID() {
		oid, err := parseObjectID(key.Value())
		if err != nil {
			return nil, err
		}
		return bson.M{"_id": oid}, nil
	}
	return bson.M{"email": key.Value()}, nil
}

func (d userDoc) toUser() *User {
	return &User{
		ID:           d.ID.Hex(),
		Firstname:    d.Firstname,
		Lastname:     d.Lastname,
		Email:        d.Email,
		Username:     d.Username,
		Password:     d.Password,
		ProfileImage: d.ProfileImage,
	}
}

func (d itemDoc) toItem() Item {
	return Item{
		ID:       d.ID.Hex(),
		Name:     d.Name,
		Category: d.Category,
		Price:    decimal.NewFromFloat(d.Price),
		Status:   d.Status,
	}
}

func (m *MongoDB) FindUser(ctx context.Context, key UserKey) (*User, error) {
	filter, err := userFilter(key)
	if err != nil {
		return nil, err
	}
	var doc userDoc
	err = m.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toUser(), nil
}

func (m *MongoDB) SetProfileImage(ctx context.Context, key UserKey, ref *string) (int64, error) {
	filter, err := userFilter(key)
	if err != nil {
		return 0, err
	}
	res, err := m.users.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"profileImage": ref}})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (m *MongoDB) CreateUser(ctx context.Context, user User) (string, error) {
	doc := userDoc{
		ID:           bson.NewObjectID(),
		Firstname:    user.Firstname,
		Lastname:     user.Lastname,
		Email:        NormalizeEmail(user.Email),
		Username:     user.Username,
		Password:     user.Password,
		ProfileImage: user.ProfileImage,
	}
	if _, err := m.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("email %s: %w", doc.Email, ErrDuplicate)
		}
		return "", err
	}
	return doc.ID.Hex(), nil
}

func (m *MongoDB) UpdateUser(ctx context.Context, key UserKey, patch UserPatch) (int64, error) {
	filter, err := userFilter(key)
	if err != nil {
		return 0, err
	}
	set := bson.M{}
	if patch.Firstname != nil {
		set["firstname"] = *patch.Firstname
	}
	if patch.Lastname != nil {
		set["lastname"] = *patch.Lastname
	}
	if patch.Email != nil {
		set["email"] = NormalizeEmail(*patch.Email)
	}
	if len(set) == 0 {
		return 0, fmt.Errorf("empty user patch")
	}
	res, err := m.users.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, fmt.Errorf("update user: %w", ErrDuplicate)
		}
		return 0, err
	}
	return res.MatchedCount, nil
}

func (m *MongoDB) DeleteUser(ctx context.Context, id string) (int64, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return 0, err
	}
	res, err := m.users.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (m *MongoDB) ListItems(ctx context.Context, skip, limit int64) ([]Item, error) {
	if skip < 0 {
		skip = 0
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetSkip(skip).SetLimit(limit)
	cursor, err := m.items.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []itemDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]Item, 0, len(docs))
	for _, d := range docs {
		result = append(result, d.toItem())
	}
	return result, nil
}

func (m *MongoDB) CountItems(ctx context.Context) (int64, error) {
	return m.items.CountDocuments(ctx, bson.D{})
}

func (m *MongoDB) CreateItem(ctx context.Context, item Item) (string, error) {
	doc := itemDoc{
		ID:       bson.NewObjectID(),
		Name:     item.Name,
		Category: item.Category,
		Price:    item.Price.InexactFloat64(),
		Status:   item.Status,
	}
	if _, err := m.items.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID.Hex(), nil
}

func (m *MongoDB) UpdateItem(ctx context.Context, id string, patch ItemPatch) (int64, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return 0, err
	}
	set := bson.M{}
	if patch.Name != nil {
		set["itemName"] = *patch.Name
	}
	if patch.Category != nil {
		set["itemCategory"] = *patch.Category
	}
	if patch.Price != nil {
		set["itemPrice"] = patch.Price.InexactFloat64()
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if len(set) == 0 {
		count, err := m.items.CountDocuments(ctx, bson.M{"_id": oid})
		return count, err
	}
	res, err := m.items.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (m *MongoDB) DeleteItem(ctx context.Context, id string) (int64, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return 0, err
	}
	res, err := m.items.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

var _ Store = (*MongoDB)(nil)
