package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/alchemorsel/pantrylens/pkg/errors"
)

// DecodeErrorKind tells a response that is not JSON apart from one that is
// JSON of the wrong shape.
type DecodeErrorKind string

const (
	KindMalformedJSON DecodeErrorKind = "malformed_json"
	KindInvalidShape  DecodeErrorKind = "invalid_shape"
)

// DecodeError reports model output that does not satisfy a task's response
// contract.
type DecodeError struct {
	Task Task
	Kind DecodeErrorKind
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s output: %v", e.Task, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// InputError reports a task input that does not satisfy its contract.
type InputError struct {
	Task       Task
	Violations apperrors.ValidationErrors
	Err        error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: invalid input: %v", e.Task, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateInput checks a task input against its struct tags.
func ValidateInput(task Task, in any) error {
	if err := validate.Struct(in); err != nil {
		return &InputError{Task: task, Violations: violations(err), Err: describe(err)}
	}
	return nil
}

// DecodeAnalyzeImageOutput decodes and validates an analysis response.
func DecodeAnalyzeImageOutput(raw []byte) (AnalyzeImageOutput, error) {
	var out AnalyzeImageOutput
	err := decode(TaskAnalyzeImage, raw, &out)
	return out, err
}

// DecodeGenerateRecipesOutput decodes and validates a recipe response.
func DecodeGenerateRecipesOutput(raw []byte) (GenerateRecipesOutput, error) {
	var out GenerateRecipesOutput
	err := decode(TaskGenerateRecipes, raw, &out)
	return out, err
}

// DecodeRecipeIngredientsOutput decodes and validates a recipe-ingredients
// response.
func DecodeRecipeIngredientsOutput(raw []byte) (RecipeIngredientsOutput, error) {
	var out RecipeIngredientsOutput
	err := decode(TaskRecipeIngredients, raw, &out)
	return out, err
}

// ValidateIngredientImageOutput validates an image result assembled from
// inline model data.
func ValidateIngredientImageOutput(out IngredientImageOutput) error {
	if err := validate.Struct(out); err != nil {
		return &DecodeError{Task: TaskIngredientImage, Kind: KindInvalidShape, Err: describe(err)}
	}
	return nil
}

func decode(task Task, raw []byte, out any) error {
	body := stripFences(raw)
	if len(body) == 0 {
		return &DecodeError{Task: task, Kind: KindMalformedJSON, Err: errors.New("empty response")}
	}

	if err := json.Unmarshal(body, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &DecodeError{Task: task, Kind: KindInvalidShape, Err: err}
		}
		return &DecodeError{Task: task, Kind: KindMalformedJSON, Err: err}
	}

	if err := validate.Struct(out); err != nil {
		return &DecodeError{Task: task, Kind: KindInvalidShape, Err: describe(err)}
	}
	return nil
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(raw []byte) []byte {
	body := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	body = bytes.TrimPrefix(body, []byte("```"))
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	body = bytes.TrimSuffix(bytes.TrimSpace(body), []byte("```"))
	return bytes.TrimSpace(body)
}

func describe(err error) error {
	if v := violations(err); len(v) > 0 {
		return v
	}
	return err
}

func violations(err error) apperrors.ValidationErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(apperrors.ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		field := trimRoot(fe.Namespace())
		out = append(out, apperrors.ValidationError{
			Field:   field,
			Tag:     fe.Tag(),
			Message: fmt.Sprintf("%s failed %q", field, fe.Tag()),
		})
	}
	return out
}

// trimRoot drops the struct name from a validator namespace.
func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
