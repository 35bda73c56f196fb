package response

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Error:   "Empty Request Body",
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Error:   "Bad Request",
	Message: "The request could not be processed. Please check your input.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Error:   "Resource Not Found",
	Message: "The requested resource was not found.",
}

var ResourceGoneResponse = Response{
	Status:  StatusError,
	Error:   "Resource Gone",
	Message: "The requested resource has expired and is no longer available.",
}

var AliasTakenResponse = Response{
	Status:  StatusError,
	Error:   "Alias Taken",
	Message: "The requested alias is already in use. Please choose another one.",
}

var InvalidAliasResponse = Response{
	Status:  StatusError,
	Error:   "Invalid Alias",
	Message: "The alias must be 4-12 alphanumeric characters and must not shadow a reserved path.",
}

var CodeSpaceExhaustedResponse = Response{
	Status:  StatusError,
	Error:   "Code Space Exhausted",
	Message: "A unique short code could not be allocated. Please try again later.",
}

var ForbiddenResponse = Response{
	Status:  StatusError,
	Error:   "Forbidden",
	Message: "You don't have permission to perform this operation.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Error:   "Server Error",
	Message: "An internal server error occurred. Please try again later.",
}

type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 && data[0] != nil {
		resp.Data = data[0]
	}

	return resp
}

// RateLimitedResponse carries the retry hint every rate limit rejection
// must include.
func RateLimitedResponse(retryAfter time.Duration) Response {
	return Response{
		Status:  StatusError,
		Error:   "Too Many Requests",
		Message: fmt.Sprintf("Rate limit exceeded. Retry after %s.", retryAfter),
	}
}

type validationError struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	Issue string `json:"issue"`
}

func getValidationErrors(err error) []validationError {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}

	errs := make([]validationError, 0, len(validationErrs))

	for _, err := range validationErrs {
		e := validationError{
			Field: err.Field(),
			Value: err.Value(),
		}

		switch err.Tag() {
		case "required":
			e.Issue = "This field is required."
		default:
			e.Issue = fmt.Sprintf("Invalid %s.", err.Tag())
		}

		errs = append(errs, e)
	}

	return errs
}

func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: "The request contains invalid data. Please check your input.",
	}

	for _, e := range getValidationErrors(err) {
		resp.Details = append(resp.Details, e)
	}

	return resp
}
