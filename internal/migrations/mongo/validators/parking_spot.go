package validators

import "go.mongodb.org/mongo-driver/bson"

var ParkingSpotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"owner_id",
			"parking_id",
			"spot_name",
			"disabled",
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

			"parking_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"spot_name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 50,
			},

			"disabled": bson.M{
				"bsonType": "bool",
			},

			"availabilities": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"id", "from", "to"},
					"properties": bson.M{
						"from": bson.M{"bsonType": "date"},
						"to":   bson.M{"bsonType": "date"},
					},
				},
			},

			"bookings": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"id", "booked_by_user_id", "from", "to", "completed"},
					"properties": bson.M{
						"from":      bson.M{"bsonType": "date"},
						"to":        bson.M{"bsonType": "date"},
						"completed": bson.M{"bsonType": "bool"},
						"rating": bson.M{
							"bsonType": "string",
							"enum":     []string{"good", "bad", "neutral"},
						},
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
