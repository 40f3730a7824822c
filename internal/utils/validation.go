package contextutils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValidHTTPURL checks that raw is an absolute http(s) URL using go-playground/validator
func IsValidHTTPURL(raw string) bool {
	return validate.Var(raw, "required,http_url") == nil
}
