package middleware

import (
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
)

// RegisterValidators installs domain validation tags on gin's binding
// engine. Call once before routes are registered.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("priorityclass", validPriorityClass); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("clocktime", validClockTime); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("dateonly", validDateOnly); err != nil {
		panic(err)
	}
}

func validPriorityClass(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return model.ValidPriorityClass(model.PriorityClass(value))
}

// validClockTime accepts 24-hour HH:MM wall times.
func validClockTime(fl validator.FieldLevel) bool {
	_, err := time.Parse("15:04", fl.Field().String())
	return err == nil
}

func validDateOnly(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.DateOnly, fl.Field().String())
	return err == nil
}
