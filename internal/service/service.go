// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the store layer.
package service

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong
// password; the two are indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrForbidden is returned when the caller does not own the resource.
var ErrForbidden = errors.New("not allowed to modify this resource")

// ValidationError reports user-correctable input problems.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Fields, ", ")
}

func invalid(msg string, fields ...string) error {
	return &ValidationError{Message: msg, Fields: fields}
}

// UserStore persists user records.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	List(ctx context.Context) ([]model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
	Delete(ctx context.Context, id string) error
}

// EventStore persists event records.
type EventStore interface {
	Create(ctx context.Context, event *model.Event) error
	List(ctx context.Context, q model.EventQuery) ([]model.Event, int, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
	Update(ctx context.Context, id string, upd model.EventUpdate) (*model.Event, error)
	Delete(ctx context.Context, id string) error
}

// RegistrationStore performs the atomic check-and-append on an event's
// registered users.
type RegistrationStore interface {
	Book(ctx context.Context, eventID, userID string) (*model.Registration, error)
	ListUsers(ctx context.Context, eventID string) ([]model.User, error)
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validate runs struct validation and converts failures into a
// ValidationError that names every offending field.
func validate(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalid(err.Error())
	}

	var missing, malformed []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			malformed = append(malformed, fe.Field())
		}
	}
	switch {
	case len(malformed) == 0:
		return invalid("missing required fields", missing...)
	case len(missing) == 0:
		return invalid("invalid fields", malformed...)
	default:
		return invalid("missing or invalid fields", append(missing, malformed...)...)
	}
}

// validID reports whether id has the shape of an id this service issues.
// Anything else cannot resolve to a record.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
