// Package forms validates user input before it is sent to the API.
package forms

import (
	"errors"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bookshare-dev/bookshare/internal/api"
)

// MinPasswordLength is the shortest password accepted on login and register
const MinPasswordLength = 6

// FieldErrors maps a form field to the message shown next to it
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+fe[field])
	}
	return strings.Join(parts, "; ")
}

// Has reports whether field carries an error
func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

// Login is the login form
type Login struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=6"`
}

// Register is the registration form. Coordinates stay text until validated.
type Register struct {
	Name                 string `form:"name" validate:"required"`
	Email                string `form:"email" validate:"required,email"`
	Password             string `form:"password" validate:"required,min=6"`
	PasswordConfirmation string `form:"password_confirmation" validate:"required,eqfield=Password"`
	Latitude             string `form:"latitude" validate:"required,latitude"`
	Longitude            string `form:"longitude" validate:"required,longitude"`
}

// ShareBook is the share-a-book form
type ShareBook struct {
	Title       string `form:"title" validate:"required"`
	Author      string `form:"author" validate:"required"`
	Description string `form:"description" validate:"required"`
}

// messages is keyed by field then validation tag
var messages = map[string]map[string]string{
	"email": {
		"required": "Email is required",
		"email":    "Please enter a valid email address",
	},
	"password": {
		"required": "Password is required",
		"min":      "Password must be at least 6 characters long",
	},
	"password_confirmation": {
		"required": "Confirm Password is required",
		"eqfield":  "Passwords do not match",
	},
	"name": {
		"required": "Full Name is required",
	},
	"latitude": {
		"required": "Latitude is required",
		"latitude": "Latitude must be between -90 and 90",
	},
	"longitude": {
		"required":  "Longitude is required",
		"longitude": "Longitude must be between -180 and 180",
	},
	"title": {
		"required": "Book Title is required",
	},
	"author": {
		"required": "Author is required",
	},
	"description": {
		"required": "Description is required",
	},
}

// Validator checks forms and turns failures into FieldErrors
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator that reports fields by their form names
func NewValidator() *Validator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: validate}
}

// Check validates form. It returns nil or FieldErrors.
func (v *Validator) Check(form any) error {
	if f, ok := form.(interface{ trim() }); ok {
		f.trim()
	}

	err := v.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := FieldErrors{}
	for _, fe := range verrs {
		field := fe.Field()
		if out.Has(field) {
			continue
		}
		out[field] = messageFor(field, fe.Tag())
	}
	return out
}

func messageFor(field, tag string) string {
	if byTag, ok := messages[field]; ok {
		if msg, ok := byTag[tag]; ok {
			return msg
		}
	}
	return "Invalid value"
}

func (f *Login) trim() {
	f.Email = strings.TrimSpace(f.Email)
}

func (f *Register) trim() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Latitude = strings.TrimSpace(f.Latitude)
	f.Longitude = strings.TrimSpace(f.Longitude)
}

func (f *ShareBook) trim() {
	f.Title = strings.TrimSpace(f.Title)
	f.Author = strings.TrimSpace(f.Author)
	f.Description = strings.TrimSpace(f.Description)
}

// Request converts a validated form into the API payload
func (f *Register) Request() (api.RegisterRequest, error) {
	lat, err := strconv.ParseFloat(f.Latitude, 64)
	if err != nil {
		return api.RegisterRequest{}, FieldErrors{"latitude": messages["latitude"]["latitude"]}
	}
	lng, err := strconv.ParseFloat(f.Longitude, 64)
	if err != nil {
		return api.RegisterRequest{}, FieldErrors{"longitude": messages["longitude"]["longitude"]}
	}

	return api.RegisterRequest{
		Name:                 f.Name,
		Email:                f.Email,
		Password:             f.Password,
		PasswordConfirmation: f.PasswordConfirmation,
		Latitude:             lat,
		Longitude:            lng,
	}, nil
}

// Request converts a validated form into the API payload
func (f *ShareBook) Request() api.ShareBookRequest {
	return api.ShareBookRequest{
		Title:       f.Title,
		Author:      f.Author,
		Description: f.Description,
	}
}

// FromAPI maps a server rejection onto the field it belongs to.
// It returns nil for errors that are not about a single field.
func FromAPI(err error) FieldErrors {
	switch {
	case errors.Is(err, api.ErrInvalidCredentials):
		return FieldErrors{"email": "Invalid email or password"}
	case errors.Is(err, api.ErrEmailExists):
		return FieldErrors{"email": "Email already exists"}
	case errors.Is(err, api.ErrDuplicateTitle):
		return FieldErrors{"title": "Book already exists"}
	default:
		return nil
	}
}
