package models

import (
	"sort"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeDuplicateObject = "duplicate_object"
	ErrTypeInvalidObject   = "invalid_object"
	ErrTypeObjectNotFound  = "object_not_found"
)

// Store is the table of scene objects. Objects are identified by their
// unique name and addressed by the ObjectID assigned when they are added.
type Store struct {
	mutex   sync.RWMutex
	ids     SequentialIDGenerator
	objects map[ObjectID]*Object
	names   map[string]ObjectID
}

func NewStore() *Store {
	return &Store{
		objects: make(map[ObjectID]*Object),
		names:   make(map[string]ObjectID),
	}
}

// Add assigns an id to the object and stores it.
func (s *Store) Add(o *Object) error {
	if o == nil || o.Name == "" {
		return errors.New("object has no name").
			WithType(ErrTypeInvalidObject)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if id, ok := s.names[o.Name]; ok {
		return errors.New("object is already added").
			WithType(ErrTypeDuplicateObject).
			WithTag("name", o.Name).
			WithTag("id", id)
	}

	o.ID = ObjectID(s.ids.New())
	s.objects[o.ID] = o
	s.names[o.Name] = o.ID

	instrumentIncreaseObjectGauge(o.Kind)
	instrumentCountObject(o.Kind)
	return nil
}

func (s *Store) Get(id ObjectID) (*Object, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	o, ok := s.objects[id]
	return o, ok
}

func (s *Store) GetByName(name string) (*Object, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, ok := s.names[name]
	if !ok {
		return nil, false
	}
	return s.objects[id], true
}

// Remove deletes the object from the store and releases its id.
func (s *Store) Remove(id ObjectID) (*Object, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	o, ok := s.objects[id]
	if !ok {
		return nil, false
	}

	delete(s.objects, id)
	delete(s.names, o.Name)
	s.ids.Reuse(uint32(id))

	instrumentDecreaseObjectGauge(o.Kind)
	return o, true
}

// List returns the stored objects ordered by id.
func (s *Store) List() []*Object {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	objects := make([]*Object, 0, len(s.objects))
	for _, o := range s.objects {
		objects = append(objects, o)
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].ID < objects[j].ID
	})
	return objects
}

func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.objects)
}

// CountByKind returns the number of stored objects per kind.
func (s *Store) CountByKind() map[string]int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	counts := make(map[string]int)
	for _, o := range s.objects {
		counts[o.Kind]++
	}
	return counts
}
