package handlers

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/agentdesk/pkg/errors"
	"github.com/charlesng35/agentdesk/pkg/response"
	appValidator "github.com/charlesng35/agentdesk/pkg/validator"
)

// bindAndValidate decodes the JSON body into dest and applies its validate
// tags. On failure it writes a 400 and returns false.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if !bindJSON(c, dest) {
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)).WithInternal(err))
		return false
	}
	return true
}

// bindJSON decodes the body without running struct validation.
func bindJSON[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(describeBindError(err)).WithInternal(err))
		return false
	}
	return true
}

func describeBindError(err error) string {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case stdErrors.Is(err, io.EOF):
		return "request body is required"
	case stdErrors.Is(err, io.ErrUnexpectedEOF):
		return "malformed JSON: unexpected end of input"
	case stdErrors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case stdErrors.As(err, &typeErr) && typeErr.Field != "":
		return fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type.Kind())
	default:
		return "invalid JSON payload"
	}
}

func formatValidationError(err error) string {
	var ve appValidator.ValidationErrors
	if !stdErrors.As(err, &ve) || len(ve) == 0 {
		return "invalid request payload"
	}
	return ve.Error()
}

// parseIntQuery reads a non-negative integer query parameter, falling back
// when it is absent or malformed.
func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
