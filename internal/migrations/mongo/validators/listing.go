package validators

import "go.mongodb.org/mongo-driver/bson"

var ListingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"landlord_id",
			"name",
			"daily_rate_micros",
			"deposit_micros",
			"active",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"landlord_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"address": bson.M{
				"bsonType":  "string",
				"maxLength": 200,
			},

			"daily_rate_micros": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"deposit_micros": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"booking_counter": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"active_bookings": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"active": bson.M{
				"bsonType": "bool",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
