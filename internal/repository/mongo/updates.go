package mongo

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// toggleMemberUpdate flips id's membership in the array field as a single
// pipeline update, so concurrent toggles never lose a write.
func toggleMemberUpdate(field string, id primitive.ObjectID) mongo.Pipeline {
	current := bson.M{"$ifNull": bson.A{"$" + field, bson.A{}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: field, Value: bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{id, current}},
				bson.M{"$filter": bson.M{"input": current, "cond": bson.M{"$ne": bson.A{"$$this", id}}}},
				bson.M{"$concatArrays": bson.A{current, bson.A{id}}},
			}}},
			{Key: "updatedAt", Value: "$$NOW"},
		}}},
	}
}

// removeCommentFilter matches the video only while it holds a comment with
// commentID written by authorID.
func removeCommentFilter(id, commentID, authorID primitive.ObjectID) bson.M {
	return bson.M{
		"_id":      id,
		"comments": bson.M{"$elemMatch": bson.M{"_id": commentID, "userId": authorID}},
	}
}

func removeCommentUpdate(commentID, authorID primitive.ObjectID, now any) bson.M {
	return bson.M{
		"$pull": bson.M{"comments": bson.M{"_id": commentID, "userId": authorID}},
		"$set":  bson.M{"updatedAt": now},
	}
}

// textSearch matches q literally in title or description, ignoring case.
func textSearch(q string) bson.A {
	re := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	return bson.A{
		bson.M{"title": re},
		bson.M{"description": re},
	}
}

// addToPlaylistFilter matches an owner's playlist that does not hold videoID yet.
func addToPlaylistFilter(id, ownerID, videoID primitive.ObjectID) bson.M {
	return bson.M{
		"_id":            id,
		"userId":         ownerID,
		"videos.videoId": bson.M{"$ne": videoID},
	}
}
