package validators

import "go.mongodb.org/mongo-driver/bson"

// Ratings are stored as decimal strings clamped to [0, 3].
var ReputationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "rating", "good", "bad", "neutral", "version"},
		"additionalProperties": true,

		"properties": bson.M{
			"rating": bson.M{
				"bsonType": "string",
				"pattern":  `^[0-3](\.[0-9]+)?$`,
			},
			"good":    bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
			"bad":     bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
			"neutral": bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
			"version": bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
		},
	},
}

var AppliedEventValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "applied_at"},
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string", "minLength": 1},
			"applied_at": bson.M{"bsonType": "date"},
		},
	},
}
