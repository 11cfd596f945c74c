package integrations

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/Gabiro3/blimp2/pkg/types"
)

const paramTag = "param"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get(paramTag), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// defaulter is implemented by parameter structs that need non-zero defaults.
type defaulter interface {
	setDefaults()
}

// Bind decodes the open parameter map of a call into P and validates it.
// Strings are weakly converted to numbers and bools because the planner
// often emits "10" where 10 is meant. A comma separated string decodes
// into a []string.
func Bind[P any](call Call) (*P, error) {
	p := new(P)
	if d, ok := any(p).(defaulter); ok {
		d.setDefaults()
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          paramTag,
		WeaklyTypedInput: true,
		Result:           p,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}

	params := make(map[string]any, len(call.Params))
	for k, v := range call.Params {
		if v == nil {
			continue
		}
		params[k] = v
	}
	if err := dec.Decode(params); err != nil {
		return nil, &types.InvalidParameterError{App: call.App, Function: call.Function, Reason: err.Error()}
	}

	if err := validate.Struct(p); err != nil {
		return nil, paramError(call, err)
	}
	return p, nil
}

func paramError(call Call, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &types.InvalidParameterError{App: call.App, Function: call.Function, Reason: err.Error()}
	}

	var missing, invalid []string
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_without":
			missing = append(missing, fe.Field())
		default:
			invalid = append(invalid, fmt.Sprintf("%s (%s %s)", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	if len(missing) > 0 {
		return &types.MissingParameterError{App: call.App, Function: call.Function, Params: missing}
	}
	return &types.InvalidParameterError{App: call.App, Function: call.Function, Reason: strings.Join(invalid, ", ")}
}

// Typed adapts a handler taking a parameter struct into a registry Handler.
func Typed[P any](fn func(ctx context.Context, call Call, p *P) (Payload, error)) Handler {
	return func(ctx context.Context, call Call) (Payload, error) {
		p, err := Bind[P](call)
		if err != nil {
			return nil, err
		}
		return fn(ctx, call, p)
	}
}
