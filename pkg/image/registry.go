package image

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	. "github.com/weberc2/tidisk/pkg/types"
)

var registry = struct {
	sync.Mutex
	attached map[string]uuid.UUID
}{attached: make(map[string]uuid.UUID)}

func attach(identity string, id uuid.UUID) (func(), error) {
	registry.Lock()
	defer registry.Unlock()
	if owner, exists := registry.attached[identity]; exists {
		return nil, fmt.Errorf(
			"attaching image `%s` to `%s`: attached to image `%s`: %w",
			id,
			identity,
			owner,
			AlreadyExistsErr,
		)
	}
	registry.attached[identity] = id
	return func() {
		registry.Lock()
		defer registry.Unlock()
		if registry.attached[identity] == id {
			delete(registry.attached, identity)
		}
	}, nil
}

// Attached reports the image currently attached to `identity`, if any.
func Attached(identity string) (uuid.UUID, bool) {
	registry.Lock()
	defer registry.Unlock()
	id, exists := registry.attached[identity]
	return id, exists
}
