package validators

import "go.mongodb.org/mongo-driver/bson"

var availabilityRule = bson.M{
	"bsonType": "object",
	"required": []string{"start", "end"},
	"properties": bson.M{
		"weekday": bson.M{
			"bsonType": "string",
			"enum":     []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		},
		"date": bson.M{
			"bsonType": "string",
			"pattern":  `^\d{4}-\d{2}-\d{2}$`,
		},
		"start": bson.M{
			"bsonType": "string",
			"pattern":  `^\d{2}:\d{2}$`,
		},
		"end": bson.M{
			"bsonType": "string",
			"pattern":  `^\d{2}:\d{2}$`,
		},
	},
}

var DoctorValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"specialty",
			"consultation_fee",
			"is_available",
			"is_active",
			"availability",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"specialty": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"email": bson.M{
				"bsonType": "string",
			},

			"phone": bson.M{
				"bsonType": "string",
				"pattern":  `^\+[1-9]\d{1,14}$`,
			},

			"consultation_fee": bson.M{
				"bsonType": []string{"long", "int"},
				"minimum":  0,
			},

			"is_available": bson.M{
				"bsonType": "bool",
			},

			"is_active": bson.M{
				"bsonType": "bool",
			},

			"availability": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"maxItems": 64,
				"items":    availabilityRule,
			},

			"slot_granularity_min": bson.M{
				"bsonType": "int",
				"minimum":  5,
				"maximum":  240,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var BookingLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "owner", "expires_at"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"owner": bson.M{
				"bsonType": "string",
			},
			"expires_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
