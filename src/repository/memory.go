package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// InMemoryDB keeps users and items in process memory. Every method takes
// the lock for its whole body, so each keyed update is atomic.
type InMemoryDB struct {
	mu    sync.RWMutex
	users map[string]User
	items map[string]Item
	// insertion order for stable listing
	itemOrder []string
}

func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{
		users: make(map[string]User),
		items: make(map[string]Item),
	}
}

func (i *InMemoryDB) Close(context.Context) error {
	return nil
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// lookup returns the id of the user addressed by key. Callers hold the lock.
func (i *InMemoryDB) lookup(key UserKey) (string, error) {
	if key.IsID() {
		if !validUUID(key.Value()) {
			return "", ErrInvalidID
		}
		if _, ok := i.users[key.Value()]; !ok {
			return "", ErrNotFound
		}
		return key.Value(), nil
	}
	for id, u := range i.users {
		if u.Email == key.Value() {
			return id, nil
		}
	}
	return "", ErrNotFound
}

func (i *InMemoryDB) emailTaken(email, exceptID string) bool {
	for id, u := range i.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

func copyUser(u User) User {
	if u.ProfileImage != nil {
		ref := *u.ProfileImage
		u.ProfileImage = &ref
	}
	return u
}

func (i *InMemoryDB) FindUser(_ context.Context, key UserKey) (*User, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	id, err := i.lookup(key)
	if err != nil {
		return nil, err
	}
	u := copyUser(i.users[id])
	return &u, nil
}

func (i *InMemoryDB) SetProfileImage(_ context.Context, key UserKey, ref *string) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	id, err := i.lookup(key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u := i.users[id]
	if ref != nil {
		value := *ref
		ref = &value
	}
	u.ProfileImage = ref
	i.users[id] = u
	return 1, nil
}

func (i *InMemoryDB) CreateUser(_ context.Context, user User) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	user.Email = NormalizeEmail(user.Email)
	if i.emailTaken(user.Email, "") {
		return "", fmt.Errorf("email %s: %w", user.Email, ErrDuplicate)
	}
	user.ID = uuid.NewString()
	i.users[user.ID] = copyUser(user)
	return user.ID, nil
}

func (i *InMemoryDB) UpdateUser(_ context.Context, key UserKey, patch UserPatch) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	id, err := i.lookup(key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u := i.users[id]
	if patch.Email != nil {
		email := NormalizeEmail(*patch.Email)
		if i.emailTaken(email, id) {
			return 0, fmt.Errorf("email %s: %w", email, ErrDuplicate)
		}
		u.Email = email
	}
	if patch.Firstname != nil {
		u.Firstname = *patch.Firstname
	}
	if patch.Lastname != nil {
		u.Lastname = *patch.Lastname
	}
	i.users[id] = u
	return 1, nil
}

func (i *InMemoryDB) DeleteUser(_ context.Context, id string) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !validUUID(id) {
		return 0, ErrInvalidID
	}
	if _, ok := i.users[id]; !ok {
		return 0, nil
	}
	delete(i.users, id)
	return 1, nil
}

func (i *InMemoryDB) ListItems(_ context.Context, skip, limit int64) ([]Item, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	result := make([]Item, 0)
	if skip < 0 {
		skip = 0
	}
	for idx := skip; idx < int64(len(i.itemOrder)) && int64(len(result)) < limit; idx++ {
		result = append(result, i.items[i.itemOrder[idx]])
	}
	return result, nil
}

func (i *InMemoryDB) CountItems(context.Context) (int64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return int64(len(i.items)), nil
}

func (i *InMemoryDB) CreateItem(_ context.Context, item Item) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	item.ID = uuid.NewString()
	i.items[item.ID] = item
	i.itemOrder = append(i.itemOrder, item.ID)
	return item.ID, nil
}

func (i *InMemoryDB) UpdateItem(_ context.Context, id string, patch ItemPatch) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !validUUID(id) {
		return 0, ErrInvalidID
	}
	item, ok := i.items[id]
	if !ok {
		return 0, nil
	}
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.Price != nil {
		item.Price = *patch.Price
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	i.items[id] = item
	return 1, nil
}

func (i *InMemoryDB) DeleteItem(_ context.Context, id string) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !validUUID(id) {
		return 0, ErrInvalidID
	}
	if _, ok := i.items[id]; !ok {
		return 0, nil
	}
	delete(i.items, id)
	for n, itemID := range i.itemOrder {
		if itemID == id {
			i.itemOrder = append(i.itemOrder[:n], i.itemOrder[n+1:]...)
			break
		}
	}
	return 1, nil
}

var _ Store = (*InMemoryDB)(nil)
