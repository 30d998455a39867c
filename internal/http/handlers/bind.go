package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

var registerJSONNames sync.Once

// useJSONNames makes validator report fields by their json tag, so error
// details name what the client actually sent.
func useJSONNames() {
	registerJSONNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(sf reflect.StructField) string {
			name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return sf.Name
			}
			return name
		})
	})
}

// BindJSON decodes and validates the body into out. On failure it writes the
// error response and returns false.
func BindJSON(ctx *gin.Context, out any) bool {
	useJSONNames()

	err := ctx.ShouldBindJSON(out)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large",
			fmt.Sprintf("Request body must not exceed %d bytes", tooLarge.Limit), nil)
		return false
	}

	message, details := describeBindError(err)
	RespondBadRequest(ctx, message, details)
	return false
}

// describeBindError returns a one-line message for the client plus structured details.
func describeBindError(err error) (string, gin.H) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]FieldError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, FieldError{
				Field:   fe.Field(),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: validationMessage(fe.Tag(), fe.Param()),
			})
		}
		first := fields[0]
		return first.Field + " " + first.Message, gin.H{"fields": fields}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		msg := "must be of type " + jsonKind(typeErr.Type)
		return field + " " + msg, gin.H{
			"json":   "invalid_json_type",
			"field":  field,
			"fields": []FieldError{{Field: field, Rule: "type", Message: msg}},
		}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "Request body is not valid JSON", gin.H{"json": "invalid_json_syntax"}
	}

	if errors.Is(err, io.EOF) {
		return "Request body is required", gin.H{"json": "empty_body"}
	}

	return "Invalid request body", gin.H{"reason": err.Error()}
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	default:
		return t.String()
	}
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	case "url":
		return "must be an absolute URL"
	case "uuid":
		return "must be a UUID"
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
