/*
 * Copyright 2012-2020 Jason Woods and contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Report the configuration key rather than the Go field name
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _ := splitTag(field.Tag.Get("config"))
			if name == "" {
				return field.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct checks the `validate` tags of a populated configuration
// structure, returning the first failure as an error that names the option
// path, such as "/inputs[0]/port must be at most 65535"
func ValidateStruct(path string, v interface{}) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%s: %s", path, err)
	}

	fe := validationErrors[0]
	return fmt.Errorf("%s%s %s", path, fieldPath(fe.Namespace()), describeFailure(fe))
}

// fieldPath converts a validator namespace such as "Config.queries[0].name"
// into an option path relative to the structure
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx != -1 {
		namespace = namespace[idx+1:]
	}
	return strings.ReplaceAll(namespace, ".", "/")
}

func describeFailure(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must be specified"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map {
			return fmt.Sprintf("must have at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map {
			return fmt.Sprintf("must have at most %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return "must be a valid URL"
	case "hostname_rfc1123":
		return "must be a valid hostname"
	case "hostname_port":
		return "must be a host:port address"
	}
	return fmt.Sprintf("failed the '%s' check", fe.Tag())
}
