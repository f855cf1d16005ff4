package habits

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"habitbot/internal/storage"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("you do not have permission to perform this action")
	// ErrProtected is returned when a delete is blocked by rows referencing the target.
	ErrProtected = errors.New("cannot delete: referenced by existing habits")
)

// Field error messages.
const (
	msgRequired   = "This field is required."
	msgNotNull    = "This field may not be null."
	msgNotBlank   = "This field may not be blank."
	msgMaxLen     = "Ensure this field has no more than 150 characters."
	msgMinOne     = "Ensure this value is greater than or equal to 1."
	maxTextLength = 150
)

func msgNoObject(id int64) string {
	return fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)
}

// ValidationError carries user-correctable problems. Fields maps a field name
// to its messages; NonField holds object-level rule violations in rule order.
type ValidationError struct {
	Fields   map[string][]string
	NonField []string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields)+len(e.NonField))
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	parts = append(parts, e.NonField...)
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) empty() bool { return len(e.Fields) == 0 && len(e.NonField) == 0 }

// orNil returns e as an error, or nil when it holds nothing.
func (e *ValidationError) orNil() error {
	if e == nil || e.empty() {
		return nil
	}
	return e
}

// translate maps storage sentinels to service errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrProtected):
		return fmt.Errorf("%w: %w", ErrProtected, err)
	}
	return err
}
