package products

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/ridge/must/v2"
)

const table = "products"

// ErrNotFound is returned for an unknown product ID
var ErrNotFound = errors.New("product not found")

// Product is an item of the catalog
type Product struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Price   float64   `json:"price"`
	Created time.Time `json:"created"`
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		table: {
			Name: table,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"name": {
					Name:    "name",
					Indexer: &memdb.StringFieldIndex{Field: "Name", Lowercase: true},
				},
			},
		},
	},
}

// Store keeps products in memory
type Store struct {
	db  *memdb.MemDB
	now func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		db:  must.OK1(memdb.NewMemDB(schema)),
		now: time.Now,
	}
}

// List returns all products ordered by name
func (s *Store) List() []Product {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it := must.OK1(txn.Get(table, "name"))
	var res []Product
	for obj := it.Next(); obj != nil; obj = it.Next() {
		res = append(res, *obj.(*Product))
	}
	return res
}

// Get returns the product with the given ID
func (s *Store) Get(id string) (Product, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	obj := must.OK1(txn.First(table, "id", id))
	if obj == nil {
		return Product{}, ErrNotFound
	}
	return *obj.(*Product), nil
}

// Add stores a new product and returns it with ID and creation time set
func (s *Store) Add(name string, price float64) Product {
	p := &Product{
		ID:      uuid.NewString(),
		Name:    name,
		Price:   price,
		Created: s.now().UTC(),
	}

	txn := s.db.Txn(true)
	defer txn.Abort()
	must.OK(txn.Insert(table, p))
	txn.Commit()
	return *p
}

// Delete removes the product with the given ID and returns it
func (s *Store) Delete(id string) (Product, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	obj := must.OK1(txn.First(table, "id", id))
	if obj == nil {
		return Product{}, ErrNotFound
	}
	must.OK(txn.Delete(table, obj))
	txn.Commit()
	return *obj.(*Product), nil
}
