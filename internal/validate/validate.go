// Package validate wraps go-playground/validator with the planner's custom
// tags (weekday, timeslot, notblank) and a start-before-end check for any
// struct exposing a slot range.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/zenith/internal/model"
)

// SlotRange is implemented by structs holding a start and end time slot.
type SlotRange interface {
	SlotRange() (start, end string)
}

// New returns a validator with the custom tags registered. Types listed in
// ranged must implement SlotRange; their start slot is checked to precede
// the end slot.
func New(ranged ...any) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		return model.ValidDay(fl.Field().String())
	})
	v.RegisterValidation("timeslot", func(fl validator.FieldLevel) bool {
		return model.SlotIndex(fl.Field().String()) >= 0
	})
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterStructValidation(slotOrder, append([]any{model.EventInput{}}, ranged...)...)
	return v
}

var std = New()

// Struct validates s with the default validator.
func Struct(s any) error {
	return std.Struct(s)
}

func slotOrder(sl validator.StructLevel) {
	r, ok := sl.Current().Interface().(SlotRange)
	if !ok {
		return
	}
	start, end := r.SlotRange()
	si, ei := model.SlotIndex(start), model.SlotIndex(end)
	if si < 0 || ei < 0 {
		// reported by the timeslot tag
		return
	}
	if si >= ei {
		sl.ReportError(end, "end", "EndTime", "after_start", start)
	}
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// Message turns a validation error into a single human readable line.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "notblank":
		return field + " must not be blank"
	case "weekday":
		return fmt.Sprintf("%s must be a day of the week, got %q", field, fe.Value())
	case "timeslot":
		return fmt.Sprintf("%s must be an hourly slot between 8:00 AM and 8:00 PM, got %q", field, fe.Value())
	case "after_start":
		return fmt.Sprintf("end time %v must be after start time %s", fe.Value(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
