package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	KindSummary = "summary"
	KindSearch  = "search"
)

// Interaction is one answered AI request stored in MongoDB.
type Interaction struct {
	ID        primitive.ObjectID `json:"id"         bson:"_id,omitempty"`
	UserID    int64              `json:"user_id"    bson:"user_id"`
	Kind      string             `json:"kind"       bson:"kind"`
	Semester  int                `json:"semester"   bson:"semester,omitempty"`
	Query     string             `json:"query"      bson:"query,omitempty"`
	Answer    string             `json:"answer"     bson:"answer"`
	Backend   string             `json:"backend"    bson:"backend"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
