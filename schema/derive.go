package schema

import (
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	timeType    = reflect.TypeFor[time.Time]()
	decimalType = reflect.TypeFor[decimal.Decimal]()
)

type deriveConfig struct {
	byField map[string]*Mapping
	byType  map[reflect.Type]*Mapping
	// deriving holds the struct types on the current derivation path
	deriving map[reflect.Type]bool
}

type DeriveOption func(*deriveConfig)

// MapField attaches m to the top-level field called name
func MapField(name string, m *Mapping) DeriveOption {
	return func(c *deriveConfig) {
		c.byField[name] = m
	}
}

// MapType attaches m to every field whose Go type is m.Domain
func MapType(m *Mapping) DeriveOption {
	return func(c *deriveConfig) {
		c.byType[m.Domain] = m
	}
}

// Derive declares the Env of the struct type T.
//
// Exported fields are taken in declaration order. The struct tag
// `theorem:"name"` renames a field, `theorem:"-"` skips it, and
// `theorem:",char"` tags an int32 field (or array) as a character.
// Go types without a semantic kind are kept as unsupported types so that
// binding reports them.
func Derive[T any](opts ...DeriveOption) *Env {
	return DeriveType(reflect.TypeFor[T](), opts...)
}

func DeriveType(t reflect.Type, opts ...DeriveOption) *Env {
	cfg := &deriveConfig{
		byField:  map[string]*Mapping{},
		byType:   map[reflect.Type]*Mapping{},
		deriving: map[reflect.Type]bool{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return deriveStruct(t, cfg, true)
}

func deriveStruct(t reflect.Type, cfg *deriveConfig, top bool) *Env {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	env := &Env{Name: t.Name(), goType: t}
	if t.Kind() != reflect.Struct {
		return env
	}
	cfg.deriving[t] = true
	defer delete(cfg.deriving, t)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, flags := parseTag(sf)
		if name == "-" {
			continue
		}
		field := Field{Name: name, GoIndex: sf.Index}
		mapping := cfg.byType[sf.Type]
		if top && cfg.byField[name] != nil {
			mapping = cfg.byField[name]
		}
		if mapping != nil {
			field.Type = mapping.Regular
			field.Mapping = mapping
		} else {
			field.Type = deriveType(sf.Type, cfg, flags)
		}
		env.Fields = append(env.Fields, field)
	}
	return env
}

// FieldName is the name a struct field is declared under, and "-" for skipped fields
func FieldName(sf reflect.StructField) string {
	name, _ := parseTag(sf)
	return name
}

func parseTag(sf reflect.StructField) (name string, flags []string) {
	tag, ok := sf.Tag.Lookup("theorem")
	if !ok {
		return sf.Name, nil
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = sf.Name
	}
	return name, parts[1:]
}

func deriveType(t reflect.Type, cfg *deriveConfig, flags []string) Type {
	switch t {
	case timeType:
		return DateTime
	case decimalType:
		return Decimal
	}
	switch t.Kind() {
	case reflect.Bool:
		return Bool
	case reflect.Int16:
		return Int16
	case reflect.Int32:
		for _, flag := range flags {
			if flag == "char" {
				return Char
			}
		}
		return Int32
	case reflect.Int, reflect.Int64:
		return Int64
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	case reflect.String:
		return String
	case reflect.Struct:
		if cfg.deriving[t] {
			return CyclicRecord(t.String())
		}
		return RecordOf(deriveStruct(t, cfg, false))
	case reflect.Pointer:
		// only records are reached through pointers; the decoder allocates them
		if t.Elem().Kind() == reflect.Struct {
			return deriveType(t.Elem(), cfg, flags)
		}
	case reflect.Slice, reflect.Array:
		var shape []int
		rank, fixed := 0, true
		for ; t.Kind() == reflect.Slice || t.Kind() == reflect.Array; t = t.Elem() {
			rank++
			if t.Kind() == reflect.Array {
				shape = append(shape, t.Len())
			} else {
				fixed = false
			}
		}
		elem := deriveType(t, cfg, flags)
		if fixed {
			return Sized(elem, shape...)
		}
		return ArrayOf(elem, rank)
	}
	return Unsupported(t.String())
}
