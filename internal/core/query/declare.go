package query

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/apperr"
)

// parameter names shared by every endpoint
const (
	ParamQuery   = "q"
	ParamDataset = "pt_dataset"
	ParamAllData = "_all_data"
	ParamOffset  = "offset"
	ParamLimit   = "limit"
	ParamType    = "type"
	ParamShape   = "shape"
	ParamLon     = "lon"
	ParamLat     = "lat"
	ParamID      = "id"
)

type pointDecl struct {
	Lon *float64 `param:"lon" validate:"omitempty,gte=-180,lte=180"`
	Lat *float64 `param:"lat" validate:"omitempty,gte=-90,lte=90"`
}

type shapeDecl struct {
	Shape map[string]any `param:"shape" validate:"required"`
}

type featureDecl struct {
	ID string `param:"id" validate:"required"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := f.Tag.Get("param")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// declare runs the declaration checks and converts failures to a ValidationError.
func (n *Normalizer) declare(decl any) error {
	err := n.validate.Struct(decl)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate parameters: %w", err)
	}
	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{Path: fe.Field(), Detail: describe(fe)})
	}
	return &apperr.ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return fmt.Sprintf("failed %q constraint", fe.Tag())
	}
}

// collect merges validation errors; any other error wins immediately.
func collect(errs ...error) error {
	var merged []*apperr.ValidationError
	for _, err := range errs {
		if err == nil {
			continue
		}
		var ve *apperr.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		merged = append(merged, ve)
	}
	if m := apperr.Merge(merged...); m != nil {
		return m
	}
	return nil
}
