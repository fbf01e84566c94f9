package main

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
)

var ErrBookNotFound = errors.New("book not found")

// BookIDKey is the key under which a book exposes its store assigned id.
const BookIDKey = "id"

// Book is a book document. Any json object is a valid body: name, author and
// description are the usual fields but none is required nor type checked.
// The id is assigned by the store and is never persisted as a document field.
type Book map[string]interface{}

// BookStorage defines possible operations on book entity. Add and Update
// receive the document fields without the id.
type BookStorage interface {
	Add(ctx context.Context, fields map[string]interface{}) (string, error)
	GetOne(ctx context.Context, id string) (Book, error)
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	GetAll(ctx context.Context, orderField string, limit int) ([]Book, error)
}

// NewBook returns a copy of fields which carries the given id.
func NewBook(id string, fields map[string]interface{}) Book {
	book := make(Book, len(fields)+1)
	for k, v := range fields {
		book[k] = v
	}
	book[BookIDKey] = id
	return book
}

// ID returns the book id or "" when it has none.
func (b Book) ID() string {
	id, _ := b[BookIDKey].(string)
	return id
}

// Fields returns a copy of the document without its id.
func (b Book) Fields() map[string]interface{} {
	fields := make(map[string]interface{}, len(b))
	for k, v := range b {
		if k != BookIDKey {
			fields[k] = v
		}
	}
	return fields
}

// SortAndLimitBooks orders books ascending by the given field and keeps
// at most limit of them. A non-positive limit keeps all books. Books
// without the field are left out, like an ordered firestore query does.
// Stores without server-side ordering use it to mimic such a query.
func SortAndLimitBooks(books []Book, orderField string, limit int) []Book {
	books = slices.DeleteFunc(books, func(b Book) bool {
		_, ok := b[orderField]
		return !ok
	})
	slices.SortStableFunc(books, func(a, b Book) int {
		return compareValues(a[orderField], b[orderField])
	})
	if limit > 0 && len(books) > limit {
		books = books[:limit]
	}
	return books
}

// valueRank gives the position of a json value type in the ordering:
// null, booleans, numbers, strings then arrays and objects.
func valueRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func compareValues(a, b interface{}) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		return strings.Compare(x, b.(string))
	case nil:
		return 0
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return strings.Compare(string(ja), string(jb))
}
