package wehttp

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/goccy/go-json"

	"github.com/weegigs/wee-counter-go/we"
)

type EntitySerializer[T any] func(entity we.Entity[T]) (map[string]any, error)

// StateSerializer flattens the entity's state into the resource.
func StateSerializer[T any](entity we.Entity[T]) (map[string]any, error) {
	serialized, err := json.Marshal(entity.State)
	if err != nil {
		return nil, err
	}

	resource := make(map[string]any)
	if err = json.Unmarshal(serialized, &resource); err != nil {
		return nil, err
	}

	return resource, nil
}

type ResourceEncoder[T any] struct {
	Serializer EntitySerializer[T]
}

// Resource is the serialized state plus $id, $type and $revision.
func (encoder ResourceEncoder[T]) Resource(e we.Entity[T]) (map[string]any, error) {
	serialize := encoder.Serializer
	if serialize == nil {
		serialize = StateSerializer[T]
	}

	resource, err := serialize(e)
	if err != nil {
		return nil, err
	}

	resource["$id"] = e.Aggregate.Encode()
	resource["$type"] = e.Type
	resource["$revision"] = e.Revision

	return resource, nil
}

func (encoder ResourceEncoder[T]) Encode(w http.ResponseWriter, r *http.Request, e we.Entity[T]) error {
	resource, err := encoder.Resource(e)
	if err != nil {
		return err
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resource)

	return nil
}
