package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"room_id",
			"title",
			"organizer_email",
			"start_time",
			"end_time",
			"status",
			"created_at",
			"updated_at",
			"version",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"room_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"organizer_email": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 255,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"PENDING",
					"CONFIRMED",
					"CANCELLED",
					"EXPIRED",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},

			"version": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
		},
	},
}
