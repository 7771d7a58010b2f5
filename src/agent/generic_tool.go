package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	jsonschema "github.com/swaggest/jsonschema-go"

	"chatgate/src/aisdk"
)

// GenericToolHandler is a typed tool handler.
type GenericToolHandler[TInput any, TOutput any] func(ctx context.Context, input TInput) (TOutput, error)

// GenericTool adapts a typed handler into the Tool interface. The input
// schema is reflected from the input struct's json tags.
type GenericTool[TInput any, TOutput any] struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Handler     GenericToolHandler[TInput, TOutput]
}

func (gt *GenericTool[TInput, TOutput]) GetName() string        { return gt.Name }
func (gt *GenericTool[TInput, TOutput]) GetDescription() string { return gt.Description }

func (gt *GenericTool[TInput, TOutput]) GetParameters() *jsonschema.Schema {
	return gt.Schema
}

// Execute parses the call input, validates required fields, and runs the
// handler. Failures are reported as error responses rather than Go errors
// so the model can see them.
func (gt *GenericTool[TInput, TOutput]) Execute(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	var input TInput
	if err := json.Unmarshal(call.Input, &input); err != nil {
		return aisdk.ErrorResponse("failed to parse input: %v", err), nil
	}

	if err := gt.validateRequired(input); err != nil {
		return aisdk.ErrorResponse("validation failed: %v", err), nil
	}

	output, err := gt.Handler(ctx, input)
	if err != nil {
		return aisdk.ErrorResponse("%v", err), nil
	}

	content, err := json.Marshal(output)
	if err != nil {
		return aisdk.ErrorResponse("failed to marshal result: %v", err), nil
	}

	return &aisdk.ToolResponse{Content: content}, nil
}

// validateRequired checks that required fields are not zero values.
func (gt *GenericTool[TInput, TOutput]) validateRequired(input TInput) error {
	if gt.Schema == nil || gt.Schema.Required == nil {
		return nil
	}

	val := reflect.ValueOf(input)
	typ := val.Type()

	for _, requiredField := range gt.Schema.Required {
		found := false
		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			fieldName := strings.Split(field.Tag.Get("json"), ",")[0]
			if fieldName == requiredField {
				found = true
				if val.Field(i).IsZero() {
					return fmt.Errorf("required field '%s' is missing", requiredField)
				}
				break
			}
		}
		if !found {
			return fmt.Errorf("required field '%s' not found in struct", requiredField)
		}
	}
	return nil
}

// NewGenericTool creates a typed tool, reflecting the input schema from
// TInput. Both TInput and TOutput must be structs.
func NewGenericTool[TInput any, TOutput any](name, description string, handler GenericToolHandler[TInput, TOutput]) (*GenericTool[TInput, TOutput], error) {
	var input TInput
	if err := mustBeStruct(reflect.TypeOf(input), "input"); err != nil {
		return nil, err
	}
	var output TOutput
	if err := mustBeStruct(reflect.TypeOf(output), "output"); err != nil {
		return nil, err
	}

	reflector := jsonschema.Reflector{}
	schema, err := reflector.Reflect(input)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	return &GenericTool[TInput, TOutput]{
		Name:        name,
		Description: description,
		Schema:      &schema,
		Handler:     handler,
	}, nil
}

func mustBeStruct(typ reflect.Type, role string) error {
	if typ == nil {
		return fmt.Errorf("tool %s type must be a struct", role)
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return fmt.Errorf("tool %s type must be a struct, got %s", role, typ.Kind())
	}
	return nil
}

var _ Tool = (*GenericTool[struct{}, struct{}])(nil)
