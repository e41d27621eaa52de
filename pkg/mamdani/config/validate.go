package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/chosenoffset/mamdani/pkg/mamdani/membership"
)

// validate is shared by every file type in this package.
// Initialized in init() with custom validators.
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterStructValidation(validateSetPoints, SetFile{})
	if err := validate.RegisterValidation("identifier", validateIdentifier); err != nil {
		panic(err)
	}
}

// validateSetPoints checks that a set has as many breakpoints as its kind needs.
func validateSetPoints(sl validator.StructLevel) {
	s := sl.Current().Interface().(SetFile)
	want := 0
	switch membership.Kind(s.Kind) {
	case membership.Triangular:
		want = 3
	case membership.Trapezoidal:
		want = 4
	}
	if want != 0 && len(s.Points) != want {
		sl.ReportError(s.Points, "Points", "points", "breakpoints", fmt.Sprint(want))
	}
}

// validateIdentifier accepts the names the rule language can refer to.
func validateIdentifier(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	for i, ch := range s {
		isLetter := ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
		if !isLetter && (i == 0 || ch < '0' || ch > '9') {
			return false
		}
	}
	return true
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func check(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += " (" + fe.Param() + ")"
		}
		problems = append(problems, msg)
	}
	return &ValidationError{Problems: problems}
}
