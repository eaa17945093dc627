package thmerr

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// enableDebugErrorPrinting makes errors include the frame they were created at when printed
const enableDebugErrorPrinting bool = false
const enableDebugFullStacktrace bool = false

type ErrCode int

const (
	None ErrCode = iota
	UnsupportedType
	UnsupportedNesting
	UnsupportedExpression
	UnknownMember
	UnknownParameter
	RewriterConfiguration
	NoProgress
	DecodeTypeMismatch
	MissingMappingConstructor
	Unsatisfiable
	EngineFailure
	Parse
)

// Error is implemented by every error this module reports from the
// build, compile, solve and decode stages
type Error interface {
	Error() string
	Code() ErrCode

	withStack([]byte) Error
	getStack() []byte
}

func FormatWithCode(e Error) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := string(e.getStack())
		if !enableDebugFullStacktrace {
			lines := strings.Split(stack, "\n")
			if len(lines) > 6 {
				stack = lines[6]
			}
		}
		return fmt.Sprintf("%s:(E%03d) %s", stack, e.Code(), e.Error())
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

func New[E Error](err E) Error {
	return err.withStack(debug.Stack())
}

// CodeOf returns the ErrCode of err if err is or wraps an Error, and None otherwise
func CodeOf(err error) ErrCode {
	var e Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return None
}

type NewUnsupportedType struct {
	Field string
	Type  string
	stack []byte
}

func (e NewUnsupportedType) Error() string {
	return fmt.Sprintf("field '%s' has type '%s' which has no engine representation", e.Field, e.Type)
}
func (e NewUnsupportedType) Code() ErrCode    { return UnsupportedType }
func (e NewUnsupportedType) getStack() []byte { return e.stack }
func (e NewUnsupportedType) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewUnsupportedNesting struct {
	Field string
	stack []byte
}

func (e NewUnsupportedNesting) Error() string {
	return fmt.Sprintf("field '%s' nests arrays of records more than one level deep", e.Field)
}
func (e NewUnsupportedNesting) Code() ErrCode    { return UnsupportedNesting }
func (e NewUnsupportedNesting) getStack() []byte { return e.stack }
func (e NewUnsupportedNesting) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewUnsupportedExpression struct {
	Kind   string
	Detail string
	stack  []byte
}

func (e NewUnsupportedExpression) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("unsupported expression: %s", e.Kind)
	}
	return fmt.Sprintf("unsupported expression: %s: %s", e.Kind, e.Detail)
}
func (e NewUnsupportedExpression) Code() ErrCode    { return UnsupportedExpression }
func (e NewUnsupportedExpression) getStack() []byte { return e.stack }
func (e NewUnsupportedExpression) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewUnknownMember struct {
	Path  string
	stack []byte
}

func (e NewUnknownMember) Error() string {
	return fmt.Sprintf("member '%s' is not part of the environment", e.Path)
}
func (e NewUnknownMember) Code() ErrCode    { return UnknownMember }
func (e NewUnknownMember) getStack() []byte { return e.stack }
func (e NewUnknownMember) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewUnknownParameter struct {
	Name     string
	Expected string
	stack    []byte
}

func (e NewUnknownParameter) Error() string {
	return fmt.Sprintf("parameter '%s' is not the predicate parameter '%s'", e.Name, e.Expected)
}
func (e NewUnknownParameter) Code() ErrCode    { return UnknownParameter }
func (e NewUnknownParameter) getStack() []byte { return e.stack }
func (e NewUnknownParameter) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewRewriterConfiguration struct {
	Key    string
	Reason string
	stack  []byte
}

func (e NewRewriterConfiguration) Error() string {
	return fmt.Sprintf("rewriter '%s' is misconfigured: %s", e.Key, e.Reason)
}
func (e NewRewriterConfiguration) Code() ErrCode    { return RewriterConfiguration }
func (e NewRewriterConfiguration) getStack() []byte { return e.stack }
func (e NewRewriterConfiguration) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewNoProgress struct {
	Key   string
	Expr  string
	stack []byte
}

func (e NewNoProgress) Error() string {
	return fmt.Sprintf("rewriter '%s' returned its input unchanged: %s", e.Key, e.Expr)
}
func (e NewNoProgress) Code() ErrCode    { return NoProgress }
func (e NewNoProgress) getStack() []byte { return e.stack }
func (e NewNoProgress) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewDecodeTypeMismatch struct {
	Field    string
	Expected string
	Found    string
	stack    []byte
}

func (e NewDecodeTypeMismatch) Error() string {
	return fmt.Sprintf("cannot decode value of type '%s' into field '%s' of type '%s'", e.Found, e.Field, e.Expected)
}
func (e NewDecodeTypeMismatch) Code() ErrCode    { return DecodeTypeMismatch }
func (e NewDecodeTypeMismatch) getStack() []byte { return e.stack }
func (e NewDecodeTypeMismatch) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewMissingMappingConstructor struct {
	Field  string
	Domain string
	stack  []byte
}

func (e NewMissingMappingConstructor) Error() string {
	return fmt.Sprintf("field '%s' maps to '%s' but the mapping has no constructor from its regular type", e.Field, e.Domain)
}
func (e NewMissingMappingConstructor) Code() ErrCode    { return MissingMappingConstructor }
func (e NewMissingMappingConstructor) getStack() []byte { return e.stack }
func (e NewMissingMappingConstructor) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewUnsatisfiable struct {
	Env         string
	Constraints int
	stack       []byte
}

func (e NewUnsatisfiable) Error() string {
	return fmt.Sprintf("theorem over '%s' with %d constraints is unsatisfiable", e.Env, e.Constraints)
}
func (e NewUnsatisfiable) Code() ErrCode    { return Unsatisfiable }
func (e NewUnsatisfiable) getStack() []byte { return e.stack }
func (e NewUnsatisfiable) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewEngineFailure struct {
	Op     string
	Reason string
	stack  []byte
}

func (e NewEngineFailure) Error() string {
	return fmt.Sprintf("engine failed during %s: %s", e.Op, e.Reason)
}
func (e NewEngineFailure) Code() ErrCode    { return EngineFailure }
func (e NewEngineFailure) getStack() []byte { return e.stack }
func (e NewEngineFailure) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewParse struct {
	Source  string
	Message string
	stack   []byte
}

func (e NewParse) Error() string {
	return fmt.Sprintf("could not parse predicate '%s': %s", e.Source, e.Message)
}
func (e NewParse) Code() ErrCode    { return Parse }
func (e NewParse) getStack() []byte { return e.stack }
func (e NewParse) withStack(stack []byte) Error {
	e.stack = stack
	return e
}
