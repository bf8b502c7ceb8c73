package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so messages match the wire format
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Credentials are the login fields captured from the user
type Credentials struct {
	SiteURL    string           `json:"siteUrl" validate:"required,url"`
	AuthMethod model.AuthMethod `json:"authMethod" validate:"required,oneof=user script"`
	Login      string           `json:"login,omitempty" validate:"required_if=AuthMethod user"`
	Password   string           `json:"password,omitempty" validate:"required_if=AuthMethod user"`
	ScriptName string           `json:"scriptName,omitempty" validate:"required_if=AuthMethod script"`
	APIKey     string           `json:"apiKey,omitempty" validate:"required_if=AuthMethod script"`
}

// Validate reports missing or malformed fields for the selected auth method
func (c Credentials) Validate() error {
	return validateStruct(c)
}

// Normalize trims whitespace and drops the fields the auth method does not use
func (c Credentials) Normalize() Credentials {
	out := Credentials{
		SiteURL:    strings.TrimRight(strings.TrimSpace(c.SiteURL), "/"),
		AuthMethod: c.AuthMethod,
	}
	if out.AuthMethod == "" {
		out.AuthMethod = model.AuthUser
	}
	switch out.AuthMethod {
	case model.AuthUser:
		out.Login = strings.TrimSpace(c.Login)
		out.Password = c.Password
	case model.AuthScript:
		out.ScriptName = strings.TrimSpace(c.ScriptName)
		out.APIKey = strings.TrimSpace(c.APIKey)
	}
	return out
}

// Identity returns the login or script name, whichever the auth method uses
func (c Credentials) Identity() string {
	if c.AuthMethod == model.AuthScript {
		return c.ScriptName
	}
	return c.Login
}

// LogValue keeps secrets out of structured logs
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("site_url", c.SiteURL),
		slog.String("auth_method", string(c.AuthMethod)),
		slog.String("identity", c.Identity()),
		slog.String("password", Mask(c.Password)),
		slog.String("api_key", Mask(c.APIKey)),
	)
}

// Mask hides a secret. The mask has a fixed width so the length is not leaked.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// validateStruct runs struct validation and turns the result into a readable error
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, fe.Field()+" is required")
		case "url":
			msgs = append(msgs, fe.Field()+" must be a URL")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
