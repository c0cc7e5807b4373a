package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"listing_id",
			"seq",
			"tenant_id",
			"landlord_id",
			"start_time",
			"end_time",
			"rent_micros",
			"deposit_micros",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"listing_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"seq": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"tenant_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"landlord_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"rent_micros": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"deposit_micros": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"active",
					"completed",
					"cancelled",
					"defaulted",
				},
			},

			"rent_paid_micros": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"deposit_released": bson.M{
				"bsonType": "bool",
			},

			"deposit_tenant_bps": bson.M{
				"bsonType": "long",
				"minimum":  0,
				"maximum":  10000,
			},

			"split_nonce": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"tokenised": bson.M{
				"bsonType": "bool",
			},

			"total_shares": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"sold_shares": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"acc_rent_per_share": bson.M{
				"bsonType": "string",
				"pattern":  "^[0-9]+$",
			},

			"shares": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": "long",
				},
			},

			"debt": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": "string",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
