package validators

import "go.mongodb.org/mongo-driver/bson"

var WalletValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "user_id", "transactions", "version", "created_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"transactions": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"id", "reference", "kind", "credits", "state", "created_at"},
					"properties": bson.M{
						"reference": bson.M{"bsonType": "string", "minLength": 1},
						"kind": bson.M{
							"bsonType": "string",
							"enum": []string{
								"booking_charge",
								"lending_credit",
								"request_charge",
								"request_credit",
								"reversal",
								"top_up",
							},
						},
						"credits": bson.M{"bsonType": "decimal"},
						"state": bson.M{
							"bsonType": "string",
							"enum":     []string{"pending", "confirmed"},
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
