package thmerr

import (
	"errors"
	"fmt"
	"log/slog"
)

// Errors accumulates several Error values, for stages that report
// every problem they find rather than the first one
type Errors struct {
	errs []Error
}

func (r *Errors) With(err ...Error) *Errors {
	if r == nil {
		return &Errors{errs: err}
	}
	r.errs = append(r.errs, err...)
	return r
}

func (r *Errors) Merge(err *Errors) *Errors {
	if r == nil {
		return err
	}
	if err == nil {
		return r
	}
	if len(err.errs) == 0 {
		return r
	}
	return r.With(err.errs...)
}

func (r *Errors) Errors() []Error {
	if r == nil {
		return nil
	}
	return r.errs
}

func (r *Errors) HasError() bool {
	if r == nil {
		return false
	}
	return len(r.errs) > 0
}

// Err returns nil when r holds no errors, the single error when it holds one,
// and a joined error otherwise
func (r *Errors) Err() error {
	if !r.HasError() {
		return nil
	}
	if len(r.errs) == 1 {
		return r.errs[0]
	}
	joined := make([]error, 0, len(r.errs))
	for _, e := range r.errs {
		joined = append(joined, e)
	}
	return errors.Join(joined...)
}

func (r *Errors) LogValue() slog.Value {
	var vals []slog.Attr
	for i, v := range r.Errors() {
		vals = append(vals, slog.Attr{
			Key: fmt.Sprint("e", i),
			Value: slog.GroupValue(
				slog.Attr{
					Key:   "msg",
					Value: slog.StringValue(FormatWithCode(v)),
				},
			),
		})
	}
	return slog.GroupValue(vals...)
}
