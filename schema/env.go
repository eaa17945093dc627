package schema

import (
	"fmt"
	"reflect"
	"slices"
)

// Env is an environment type: an ordered set of named, typed fields.
// An Env is immutable once declared.
type Env struct {
	Name   string
	Fields []Field
	goType reflect.Type
}

type Field struct {
	Name    string
	Type    Type
	Mapping *Mapping
	// GoIndex locates the field in the Go struct the Env was derived from.
	// It is nil for explicitly declared environments, which are decoded by name.
	GoIndex []int
}

func NewEnv(name string, fields ...Field) *Env {
	return &Env{Name: name, Fields: slices.Clone(fields)}
}

func NewField(name string, t Type) Field {
	return Field{Name: name, Type: t}
}

// Mapped declares a field of a domain type solved for as m.Regular
func Mapped(name string, m *Mapping) Field {
	return Field{Name: name, Type: m.Regular, Mapping: m}
}

// Field returns the field called name
func (e *Env) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// GoType is the struct type e was derived from, or nil for declared environments
func (e *Env) GoType() reflect.Type {
	return e.goType
}

// Regular is the type the field is solved for: its own type, or the regular
// side of its mapping
func (f Field) Regular() Type {
	if f.Mapping != nil {
		return f.Mapping.Regular
	}
	return f.Type
}

func (e *Env) String() string {
	return fmt.Sprintf("%s%v", e.Name, e.Fields)
}

func (f Field) String() string {
	if f.Mapping != nil {
		return fmt.Sprintf("%s %v (as %s)", f.Name, f.Mapping.Domain, f.Mapping.Regular)
	}
	return fmt.Sprintf("%s %s", f.Name, f.Type)
}
