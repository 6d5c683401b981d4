/*
store.go - Persistence interfaces for persons and parameters

PURPOSE:
  The engine itself never touches storage. These interfaces are what the
  API layer needs from a backing store; the engine only needs the shapes.

IMPLEMENTATIONS:
  - store/sqlite: SQLite, used by cmd/server
  - store/memory: in-memory, used by tests and the CLI

CONTRACT:
  - GetPerson returns (nil, nil) when the ID does not exist.
  - UpdatePerson and DeletePerson return ErrPersonNotFound for unknown IDs.
  - CreatePerson assigns the ID when the record has none.
  - ReplacePersons swaps the whole roster atomically and keeps input order.
  - ListPersons returns records in insertion order.
  - GetParameters returns DefaultParameters() until parameters are saved.
  - SaveParameters rejects sets that fail Parameters.Validate.
*/
package bonus

import "context"

// PersonStore persists person records.
type PersonStore interface {
	ListPersons(ctx context.Context) ([]Person, error)
	GetPerson(ctx context.Context, id string) (*Person, error)
	CreatePerson(ctx context.Context, p Person) (Person, error)
	UpdatePerson(ctx context.Context, p Person) (Person, error)
	DeletePerson(ctx context.Context, id string) error
	DeleteAllPersons(ctx context.Context) error
	ReplacePersons(ctx context.Context, persons []Person) ([]Person, error)
}

// ParameterStore persists the singleton parameter set.
type ParameterStore interface {
	GetParameters(ctx context.Context) (Parameters, error)
	SaveParameters(ctx context.Context, params Parameters) error
}

// Store is the combination the API layer depends on.
type Store interface {
	PersonStore
	ParameterStore
}
