package validators

import "go.mongodb.org/mongo-driver/bson"

var ParkingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"owner_id",
			"name",
			"address",
			"code",
			"max_spots",
			"residents",
			"version",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"owner_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"address": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"code": bson.M{
				"bsonType": "string",
				"pattern":  "^[A-Z0-9-]+$",
			},

			"max_spots": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"residents": bson.M{
				"bsonType": "array",
				"items":    bson.M{"bsonType": "string"},
			},

			"spot_ids": bson.M{
				"bsonType": "array",
				"items":    bson.M{"bsonType": "string"},
			},

			"booking_requests": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"id", "requester_id", "from", "to", "cost"},
					"properties": bson.M{
						"from": bson.M{"bsonType": "date"},
						"to":   bson.M{"bsonType": "date"},
						"cost": bson.M{"bsonType": "decimal"},
					},
				},
			},

			"version": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
