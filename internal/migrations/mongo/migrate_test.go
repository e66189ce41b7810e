package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestCollections_RoomNameIsUnique(t *testing.T) {
	for _, c := range Collections() {
		if c.Name != "rooms" {
			continue
		}
		for _, idx := range c.Indexes {
			keys := idx.Keys.(bson.D)
			if len(keys) == 1 && keys[0].Key == "name" {
				if idx.Options == nil || idx.Options.Unique == nil || !*idx.Options.Unique {
					t.Fatalf("rooms.name index must be unique")
				}
				return
			}
		}
	}
	t.Fatal("no index on rooms.name")
}

func TestCollections_ValidatorsRequireAuditFields(t *testing.T) {
	for _, c := range Collections() {
		schema := c.Validator["$jsonSchema"].(bson.M)
		required := schema["required"].([]string)
		for _, field := range []string{"created_at", "updated_at", "version"} {
			found := false
			for _, r := range required {
				if r == field {
					found = true
				}
			}
			if !found {
				t.Errorf("%s validator does not require %s", c.Name, field)
			}
		}
	}
}
