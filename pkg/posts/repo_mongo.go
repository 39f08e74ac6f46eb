package posts

import (
	"blognest/pkg/common"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const listLimit = 20

type PostsRepoMongo struct {
	collection common.CollectionHelper
}

func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	return mongo.Connect(ctx, options.Client().ApplyURI(uri))
}

func NewPostsRepoMongo(client *mongo.Client, dbName, collName string) *PostsRepoMongo {
	return &PostsRepoMongo{collection: &common.MongoCollection{Collection: client.Database(dbName).Collection(collName)}}
}

func sortDoc(order SortOrder) bson.D {
	if order == SortVotes {
		return bson.D{{Key: "upvotes", Value: -1}}
	}
	return bson.D{{Key: "createdAt", Value: -1}}
}

func (r *PostsRepoMongo) GetAll(ctx context.Context, order SortOrder) ([]*Post, error) {
	opts := options.Find().SetSort(sortDoc(order)).SetLimit(listLimit)
	return r.getByField(ctx, bson.M{}, opts)
}

func (r *PostsRepoMongo) GetByAuthorID(ctx context.Context, authorID int64, order SortOrder) ([]*Post, error) {
	opts := options.Find().SetSort(sortDoc(order))
	return r.getByField(ctx, bson.M{"authorID": authorID}, opts)
}

func (r *PostsRepoMongo) GetByID(ctx context.Context, id interface{}) (*Post, error) {
	res := r.collection.FindOne(ctx, bson.M{"_id": id})

	post := &Post{}
	err := res.Decode(post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return post, nil
}

func (r *PostsRepoMongo) Add(ctx context.Context, p *Post) (interface{}, error) {
	if p.Votes == nil {
		p.Votes = map[string]int{}
	}

	res, err := r.collection.InsertOne(ctx, p)
	if err != nil {
		return nil, err
	}

	return res.GetInsertedID(), nil
}

func (r *PostsRepoMongo) Update(ctx context.Context, p *Post) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": p.ID},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "title", Value: p.Title},
				{Key: "summary", Value: p.Summary},
				{Key: "content", Value: p.Content},
				{Key: "cover", Value: p.Cover},
				{Key: "updatedAt", Value: p.Updated},
			}},
		})
	if err != nil {
		return err
	}

	if res.GetMatchedCount() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostsRepoMongo) Delete(ctx context.Context, id interface{}) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}

	if res.GetDeletedCount() == 0 {
		return ErrNotFound
	}

	return nil
}

// Upvote bumps the caller's ledger entry and the aggregate in one document
// write. The filter carries the cap condition, so concurrent votes serialize
// inside the server and the aggregate never drifts from the ledger.
func (r *PostsRepoMongo) Upvote(ctx context.Context, postID interface{}, userID int64) (*Post, error) {
	key := "votes." + VoterKey(userID)
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)

	for {
		// existing entry still under the cap
		res := r.collection.FindOneAndUpdate(ctx,
			bson.M{"_id": postID, key: bson.M{"$exists": true, "$lt": VoteLimit}},
			bson.D{
				{Key: "$inc", Value: bson.D{{Key: key, Value: 1}, {Key: "upvotes", Value: 1}}},
			}, after)

		post := &Post{}
		err := res.Decode(post)
		if err == nil {
			return post, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}

		// first vote from this user
		res = r.collection.FindOneAndUpdate(ctx,
			bson.M{"_id": postID, key: bson.M{"$exists": false}},
			bson.D{
				{Key: "$set", Value: bson.D{{Key: key, Value: 1}}},
				{Key: "$inc", Value: bson.D{{Key: "upvotes", Value: 1}}},
			}, after)

		post = &Post{}
		err = res.Decode(post)
		if err == nil {
			return post, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}

		// neither filter matched: the post is gone, the cap is reached, or a
		// concurrent first vote created the entry between the two updates
		current, err := r.GetByID(ctx, postID)
		if err != nil {
			return nil, err
		}
		if current.VoterCount(userID) >= VoteLimit {
			return nil, ErrVoteLimit
		}
		// the entry exists now and is under the cap, take the increment path
	}
}

// Downvote takes one upvote back. With no entry, or an entry already at zero,
// it leaves the post untouched and returns it as is.
func (r *PostsRepoMongo) Downvote(ctx context.Context, postID interface{}, userID int64) (*Post, error) {
	key := "votes." + VoterKey(userID)
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)

	res := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": postID, key: bson.M{"$gt": 0}},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: key, Value: -1}, {Key: "upvotes", Value: -1}}},
		}, after)

	post := &Post{}
	err := res.Decode(post)
	if err == nil {
		return post, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	return r.GetByID(ctx, postID)
}

func (r *PostsRepoMongo) ParseID(in string) (interface{}, error) {
	return primitive.ObjectIDFromHex(in)
}

func (r *PostsRepoMongo) getByField(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*Post, error) {
	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	defer cur.Close(ctx)

	var posts []*Post
	err = cur.All(ctx, &posts)
	if err != nil {
		return nil, err
	}

	return posts, nil
}
