/*
Copyright 2017 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rpc

import (
	"reflect"
	"unicode"

	"github.com/mitchellh/mapstructure"
	"github.com/nuclio/errors"
)

var errorInterfaceType = reflect.TypeOf((*error)(nil)).Elem()

// invokeMember resolves and invokes a member on a local object. Member
// resolution is dynamic: mapping targets are indexed by key, struct targets
// are matched against exported methods (member "sum" finds method "Sum") and
// exported fields, and function targets respond to the empty member name.
//
// A member that resolves to a plain value acts as a property: invoking it
// with zero arguments returns the value, invoking it with arguments fails.
func invokeMember(target interface{}, member string, args []interface{}) (interface{}, error) {
	targetValue := reflect.ValueOf(target)

	if targetValue.Kind() == reflect.Func {
		if member != "" {
			return nil, errNoMember(member)
		}

		return callFunction(targetValue, args)
	}

	if mapping, targetIsMapping := target.(map[string]interface{}); targetIsMapping {
		memberValue, found := mapping[member]
		if !found {
			return nil, errNoMember(member)
		}

		return invokeResolvedMember(member, memberValue, args)
	}

	if member == "" {
		return nil, errNoMember(member)
	}

	// method first, exported field second
	methodValue := targetValue.MethodByName(exportedMemberName(member))
	if methodValue.IsValid() {
		return callFunction(methodValue, args)
	}

	structValue := targetValue
	if structValue.Kind() == reflect.Ptr {
		structValue = structValue.Elem()
	}

	if structValue.Kind() == reflect.Struct {
		fieldValue := structValue.FieldByName(exportedMemberName(member))
		if fieldValue.IsValid() && fieldValue.CanInterface() {
			return invokeResolvedMember(member, fieldValue.Interface(), args)
		}
	}

	return nil, errNoMember(member)
}

func invokeResolvedMember(member string, memberValue interface{}, args []interface{}) (interface{}, error) {
	if memberValue != nil && reflect.ValueOf(memberValue).Kind() == reflect.Func {
		return callFunction(reflect.ValueOf(memberValue), args)
	}

	// property access: a read travels as a zero argument call
	if len(args) != 0 {
		return nil, errNotCallable(member)
	}

	return memberValue, nil
}

// callFunction invokes a function value with loosely typed arguments,
// recovering panics into errors so that a throwing method surfaces to the
// remote caller instead of tearing the world down
func callFunction(functionValue reflect.Value, args []interface{}) (result interface{}, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			if recoveredError, isError := recovered.(error); isError {
				err = recoveredError
			} else {
				err = errors.Errorf("%v", recovered)
			}
		}
	}()

	functionType := functionValue.Type()

	callArguments, err := convertArguments(functionType, args)
	if err != nil {
		return nil, err
	}

	returnValues := functionValue.Call(callArguments)

	return collapseReturnValues(returnValues)
}

// convertArguments adapts demarshalled arguments to the function's
// parameters. Missing arguments become zero values and extra arguments are
// dropped, so loosely declared methods keep working across the wire.
func convertArguments(functionType reflect.Type, args []interface{}) ([]reflect.Value, error) {
	parameterCount := functionType.NumIn()

	if functionType.IsVariadic() {
		fixedCount := parameterCount - 1
		callArguments := make([]reflect.Value, 0, len(args))

		for argIndex, arg := range args {
			parameterType := functionType.In(fixedCount).Elem()
			if argIndex < fixedCount {
				parameterType = functionType.In(argIndex)
			}

			convertedArgument, err := convertArgument(arg, parameterType)
			if err != nil {
				return nil, err
			}

			callArguments = append(callArguments, convertedArgument)
		}

		for len(callArguments) < fixedCount {
			callArguments = append(callArguments, reflect.Zero(functionType.In(len(callArguments))))
		}

		return callArguments, nil
	}

	callArguments := make([]reflect.Value, parameterCount)
	for parameterIndex := 0; parameterIndex < parameterCount; parameterIndex++ {
		if parameterIndex >= len(args) {
			callArguments[parameterIndex] = reflect.Zero(functionType.In(parameterIndex))
			continue
		}

		convertedArgument, err := convertArgument(args[parameterIndex], functionType.In(parameterIndex))
		if err != nil {
			return nil, err
		}

		callArguments[parameterIndex] = convertedArgument
	}

	return callArguments, nil
}

func convertArgument(arg interface{}, parameterType reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(parameterType), nil
	}

	argValue := reflect.ValueOf(arg)

	if argValue.Type().AssignableTo(parameterType) {
		return argValue, nil
	}

	if argValue.Type().ConvertibleTo(parameterType) &&
		isNumericKind(argValue.Kind()) &&
		isNumericKind(parameterType.Kind()) {
		return argValue.Convert(parameterType), nil
	}

	// composite into struct parameter
	if parameterType.Kind() == reflect.Struct ||
		(parameterType.Kind() == reflect.Ptr && parameterType.Elem().Kind() == reflect.Struct) {
		decodedArgument := reflect.New(parameterType)
		if parameterType.Kind() == reflect.Ptr {
			decodedArgument = reflect.New(parameterType.Elem())
		}

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           decodedArgument.Interface(),
			WeaklyTypedInput: true,
		})
		if err != nil {
			return reflect.Value{}, errors.Wrap(err, "Can't create argument decoder")
		}

		if err := decoder.Decode(arg); err != nil {
			return reflect.Value{}, errors.Wrap(err, "Can't convert argument")
		}

		if parameterType.Kind() == reflect.Ptr {
			return decodedArgument, nil
		}

		return decodedArgument.Elem(), nil
	}

	// slice parameters get their items converted one by one
	if parameterType.Kind() == reflect.Slice && argValue.Kind() == reflect.Slice {
		convertedSlice := reflect.MakeSlice(parameterType, argValue.Len(), argValue.Len())
		for itemIndex := 0; itemIndex < argValue.Len(); itemIndex++ {
			convertedItem, err := convertArgument(argValue.Index(itemIndex).Interface(), parameterType.Elem())
			if err != nil {
				return reflect.Value{}, err
			}

			convertedSlice.Index(itemIndex).Set(convertedItem)
		}

		return convertedSlice, nil
	}

	return reflect.Value{}, errors.Errorf("Can't convert argument of type %T to %s", arg, parameterType)
}

// collapseReturnValues maps a function's return values onto the single
// result / error pair a response carries
func collapseReturnValues(returnValues []reflect.Value) (interface{}, error) {
	switch len(returnValues) {
	case 0:
		return nil, nil

	case 1:
		if returnValues[0].Type().Implements(errorInterfaceType) {
			return nil, valueAsError(returnValues[0])
		}

		return returnValues[0].Interface(), nil

	case 2:
		return returnValues[0].Interface(), valueAsError(returnValues[1])

	default:
		return nil, errors.Errorf("Methods may return at most a result and an error, got %d values", len(returnValues))
	}
}

func valueAsError(returnValue reflect.Value) error {
	if returnValue.IsNil() {
		return nil
	}

	return returnValue.Interface().(error)
}

func isNumericKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func exportedMemberName(member string) string {
	if member == "" {
		return member
	}

	memberRunes := []rune(member)
	memberRunes[0] = unicode.ToUpper(memberRunes[0])

	return string(memberRunes)
}
