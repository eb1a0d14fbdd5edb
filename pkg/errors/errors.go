package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind separates errors raised while building a mapper from errors raised while running one.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindMappingFailed Kind = "mapping_failed"
)

// Machine readable codes attached to mapping-failed errors.
const (
	CodeFromAttributeNotFound   = "FROM_ATTRIBUTE_NOT_FOUND"
	CodeUnsupportedFrom         = "UNSUPPORTED_FROM_EXPRESSION"
	CodeAmbiguousSubsheetTarget = "AMBIGUOUS_SUBSHEET_TARGET"
	CodeVariableCountMismatch   = "VARIABLE_COUNT_MISMATCH"
	CodeVariableStoreMissing    = "VARIABLE_STORE_MISSING"
	CodeReaderMissing           = "READER_MISSING"
	CodeReadFailed              = "READ_FAILED"
	CodeLookupNotFound          = "LOOKUP_NOT_FOUND"
	CodeLookupAmbiguous         = "LOOKUP_AMBIGUOUS"
	CodeEvaluationFailed        = "EVALUATION_FAILED"
	CodeInvalidJSON             = "INVALID_JSON"
	CodeInvalidRequest          = "INVALID_REQUEST"
)

// SheetInfo is the part of a data sheet an error needs to describe it.
type SheetInfo interface {
	ObjectAlias() string
	CountRows() int
	ColumnNames() []string
}

type MappingError struct {
	Kind      Kind
	Mapping   string
	Field     string
	Code      string
	Message   string
	FromSheet SheetInfo
	ToSheet   SheetInfo
	cause     error
}

// NewConfigurationError creates an error for invalid mapper configuration.
func NewConfigurationError(msg string) *MappingError {
	return &MappingError{
		Kind:    KindConfiguration,
		Message: msg,
	}
}

func NewConfigurationErrorf(format string, args ...any) *MappingError {
	e := newf(format, args...)
	e.Kind = KindConfiguration
	return e
}

// NewMappingFailedError creates an error for a mapping that could not resolve its data.
func NewMappingFailedError(msg string) *MappingError {
	return &MappingError{
		Kind:    KindMappingFailed,
		Message: msg,
	}
}

func NewMappingFailedErrorf(format string, args ...any) *MappingError {
	e := newf(format, args...)
	e.Kind = KindMappingFailed
	return e
}

// WrapMappingError converts any error into a mapping-failed error. Errors that already
// are mapping errors are returned unchanged.
func WrapMappingError(e error) *MappingError {
	if e == nil {
		return nil
	}

	var mappingError *MappingError
	if stderrors.As(e, &mappingError) {
		return mappingError
	}

	return &MappingError{
		Kind:    KindMappingFailed,
		Message: e.Error(),
		cause:   e,
	}
}

func newf(format string, args ...any) *MappingError {
	var cause error
	for i, arg := range args {
		if err, ok := arg.(error); ok && strings.Contains(format, "%w") {
			format = strings.Replace(format, "%w", "%v", 1)
			args[i] = err.Error()
			cause = err
		}
	}

	return &MappingError{
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

func (e *MappingError) Error() string {
	path := []string{}
	if e.Mapping != "" {
		path = append(path, fmt.Sprintf("mapping '%s'", e.Mapping))
	}
	if e.Field != "" {
		path = append(path, fmt.Sprintf("field '%s'", e.Field))
	}

	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}

	if len(path) == 0 {
		return msg
	}

	return strings.Join(path, " -> ") + ": " + msg
}

func (e *MappingError) Unwrap() error {
	return e.cause
}

func (e *MappingError) AddMapping(mapping string) *MappingError {
	if e.Mapping == "" {
		e.Mapping = mapping
	}
	return e
}

func (e *MappingError) AddField(field string) *MappingError {
	e.Field = field
	return e
}

func (e *MappingError) AddCode(code string) *MappingError {
	e.Code = code
	return e
}

func (e *MappingError) AddSheets(from, to SheetInfo) *MappingError {
	if e.FromSheet == nil {
		e.FromSheet = from
	}
	if e.ToSheet == nil {
		e.ToSheet = to
	}
	return e
}

func (e *MappingError) AddCause(err error) *MappingError {
	e.cause = err
	return e
}

func (e *MappingError) IsConfiguration() bool {
	return e.Kind == KindConfiguration
}

func (e *MappingError) ToHTTPError() *httperror.HTTPError {
	status := http.StatusUnprocessableEntity
	if e.Kind == KindConfiguration {
		status = http.StatusBadRequest
	}

	httpErr := httperror.NewHTTPError(status, e.Error()).
		AddMetaValue("kind", string(e.Kind)).
		AddMetaValue("mapping", e.Mapping).
		AddMetaValue("field", e.Field).
		AddMetaValue("code", e.Code)

	if e.FromSheet != nil {
		httpErr = httpErr.AddMetaValue("from_object", e.FromSheet.ObjectAlias()).AddMetaValue("from_rows", strconv.Itoa(e.FromSheet.CountRows()))
	}
	if e.ToSheet != nil {
		httpErr = httpErr.AddMetaValue("to_object", e.ToSheet.ObjectAlias()).AddMetaValue("to_rows", strconv.Itoa(e.ToSheet.CountRows()))
	}

	return httpErr
}

func IsMappingError(err error) bool {
	var mappingError *MappingError
	return stderrors.As(err, &mappingError)
}

func IsConfigurationError(err error) bool {
	var mappingError *MappingError
	return stderrors.As(err, &mappingError) && mappingError.Kind == KindConfiguration
}

func IsMappingFailedError(err error) bool {
	var mappingError *MappingError
	return stderrors.As(err, &mappingError) && mappingError.Kind == KindMappingFailed
}

// AsMappingError returns the mapping error in err's chain, if any.
func AsMappingError(err error) (*MappingError, bool) {
	var mappingError *MappingError
	ok := stderrors.As(err, &mappingError)
	return mappingError, ok
}
