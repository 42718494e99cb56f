package we

import (
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"
)

// Named values provide their own wire name. Everything else is named after
// its Go type, e.g. counter.IncrementByAmount becomes
// "counter:increment-by-amount".
type Named interface {
	TypeName() string
}

func NameOf(value any) string {
	if typed, ok := value.(Named); ok {
		return typed.TypeName()
	}

	if value == nil {
		return "nil"
	}

	split := strings.Split(reflect.TypeOf(value).String(), ".")
	segments := make([]string, len(split))
	for i, segment := range split {
		segments[i] = strcase.ToKebab(strings.TrimLeft(segment, "*"))
	}

	if len(segments) == 1 {
		return segments[0]
	}

	return segments[0] + ":" + strings.Join(segments[1:], "-")
}
