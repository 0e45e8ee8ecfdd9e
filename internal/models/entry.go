package models

import (
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Defaults substituted for fields missing from a stored document or a submitted form.
const (
	DefaultText     = "Unknown"
	DefaultRating   = "0"
	DefaultDateRead = "1990/1/1"
)

// Entry is one book in a user's reading journal.
// DateRead is free-form text and sorts as a plain string.
type Entry struct {
	ID       string  `bson:"_id" json:"id"`
	UserID   string  `bson:"userid" json:"userid"`
	Title    string  `bson:"title" json:"title"`
	Author   string  `bson:"author" json:"author"`
	Rating   string  `bson:"rating" json:"rating"`
	DateRead string  `bson:"dateRead" json:"dateRead"`
	Comments *string `bson:"comments" json:"comments"`
}

// FromDocument builds an Entry from a raw stored document, filling in defaults for
// anything missing. Comments is the only field that may come back nil.
func FromDocument(doc map[string]interface{}) Entry {
	id := stringField(doc, "_id", "")
	if id == "" {
		id = stringField(doc, "id", DefaultText)
	}

	e := Entry{
		ID:       id,
		UserID:   stringField(doc, "userid", DefaultText),
		Title:    stringField(doc, "title", DefaultText),
		Author:   stringField(doc, "author", DefaultText),
		Rating:   stringField(doc, "rating", DefaultRating),
		DateRead: stringField(doc, "dateRead", DefaultDateRead),
	}
	if v, ok := doc["comments"]; ok && v != nil {
		c := toString(v)
		e.Comments = &c
	}
	return e
}

// WithDefaults returns a copy of e where empty submitted fields carry their defaults.
func (e Entry) WithDefaults() Entry {
	if e.Title == "" {
		e.Title = DefaultText
	}
	if e.Author == "" {
		e.Author = DefaultText
	}
	if e.Rating == "" {
		e.Rating = DefaultRating
	}
	if e.DateRead == "" {
		e.DateRead = DefaultDateRead
	}
	return e
}

func stringField(doc map[string]interface{}, key, def string) string {
	v, ok := doc[key]
	if !ok || v == nil {
		return def
	}
	return toString(v)
}

// toString renders the scalar types the document store hands back.
// Numeric ratings written by older clients arrive as int32, int64 or float64.
func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case primitive.ObjectID:
		return t.Hex()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
