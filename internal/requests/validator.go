package requests

import (
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"writer-backend/internal/shared/validation"
)

// Validator turns Submissions into GenerationRequests. It has no side effects.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// NewValidator builds a Validator with the absurl and wholenum rules
// registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("absurl", validateAbsURL)
	_ = v.RegisterValidation("wholenum", validateWholeNum)
	return &Validator{v: v, now: time.Now}
}

// Validate checks every rule at once. On failure the returned error is a
// *validation.Errors listing all violated fields.
func (val *Validator) Validate(userID string, sub Submission) (GenerationRequest, error) {
	sub.Title = strings.TrimSpace(sub.Title)
	sub.Keyword = strings.TrimSpace(sub.Keyword)
	// Blank entries are unused form slots and do not count toward the limit.
	sources := make([]string, 0, len(sub.SourceURLs))
	for _, u := range sub.SourceURLs {
		if u = strings.TrimSpace(u); u != "" {
			sources = append(sources, u)
		}
	}
	sub.SourceURLs = sources

	if err := val.v.Struct(sub); err != nil {
		return GenerationRequest{}, validation.FromValidator(err)
	}

	return GenerationRequest{
		UserID:                 userID,
		Title:                  sub.Title,
		Keyword:                sub.Keyword,
		SourceURLs:             sources,
		WordCount:              int(sub.WordCount),
		AdditionalInstructions: sub.AdditionalInstructions,
		CreatedAt:              val.now().UTC(),
	}, nil
}

func validateAbsURL(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}

func validateWholeNum(fl validator.FieldLevel) bool {
	return fl.Field().Int() != int64(InvalidCount)
}
