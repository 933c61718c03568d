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
)

// maxReferenceChainDepth bounds the marshaller's walk. Cycles hit the cap
// instead of requiring visited-set bookkeeping; the trade is that acyclic
// graphs deeper than the cap are rejected as well.
const maxReferenceChainDepth = 20

// wireHandleKey marks a map as a marshalled handle reference
const wireHandleKey = "$handle"

// marshal converts an argument or result graph to wire form. Scalars pass
// through, handles become {worldId, objectId} references, composites are
// walked recursively and structs are walked as a mapping of their exported
// fields. Bare functions do not travel by value, and other kinds (channels,
// complex numbers, unsafe pointers) are rejected.
func (w *World) marshal(value interface{}, depth int) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	if handle, valueIsHandle := value.(*Handle); valueIsHandle {
		return map[string]interface{}{
			wireHandleKey: map[string]interface{}{
				"worldId":  handle.worldID,
				"objectId": handle.objectID,
			},
		}, nil
	}

	reflectedValue := reflect.ValueOf(value)

	switch reflectedValue.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return value, nil

	case reflect.Func:
		return nil, errInvalidInput("Functions are only transferable as handles")

	case reflect.Slice, reflect.Array:
		if depth >= maxReferenceChainDepth {
			return nil, errRefChainTooLong()
		}

		marshalledItems := make([]interface{}, reflectedValue.Len())
		for itemIndex := 0; itemIndex < reflectedValue.Len(); itemIndex++ {
			marshalledItem, err := w.marshal(reflectedValue.Index(itemIndex).Interface(), depth+1)
			if err != nil {
				return nil, err
			}

			marshalledItems[itemIndex] = marshalledItem
		}

		return marshalledItems, nil

	case reflect.Map:
		if depth >= maxReferenceChainDepth {
			return nil, errRefChainTooLong()
		}

		if reflectedValue.Type().Key().Kind() != reflect.String {
			return nil, errInvalidInput("Mapping keys must be strings")
		}

		marshalledMapping := make(map[string]interface{}, reflectedValue.Len())
		for _, mapKey := range reflectedValue.MapKeys() {
			marshalledItem, err := w.marshal(reflectedValue.MapIndex(mapKey).Interface(), depth+1)
			if err != nil {
				return nil, err
			}

			marshalledMapping[mapKey.String()] = marshalledItem
		}

		return marshalledMapping, nil

	case reflect.Ptr:
		if reflectedValue.IsNil() {
			return nil, nil
		}

		return w.marshal(reflectedValue.Elem().Interface(), depth)

	case reflect.Struct:
		if depth >= maxReferenceChainDepth {
			return nil, errRefChainTooLong()
		}

		// opaque objects are walked as mappings of their exported fields;
		// they are never implicitly promoted to handles
		structType := reflectedValue.Type()
		marshalledMapping := map[string]interface{}{}

		for fieldIndex := 0; fieldIndex < structType.NumField(); fieldIndex++ {
			field := structType.Field(fieldIndex)
			if field.PkgPath != "" {
				continue
			}

			marshalledItem, err := w.marshal(reflectedValue.Field(fieldIndex).Interface(), depth+1)
			if err != nil {
				return nil, err
			}

			marshalledMapping[field.Name] = marshalledItem
		}

		return marshalledMapping, nil

	default:
		return nil, errInvalidInput("Can not marshal a value of kind %s", reflectedValue.Kind())
	}
}

// demarshal applies the inverse conversion. Handle references are
// canonicalized through the world so that the same (worldId, objectId)
// always yields the same *Handle; references to worlds this world has not
// seen before are routed through the link they arrived on.
func (w *World) demarshal(arrivalLink *peerLink, value interface{}) (interface{}, error) {
	switch typedValue := value.(type) {
	case map[string]interface{}:
		if rawReference, valueIsReference := typedValue[wireHandleKey]; valueIsReference && len(typedValue) == 1 {
			return w.demarshalHandle(arrivalLink, rawReference)
		}

		demarshalledMapping := make(map[string]interface{}, len(typedValue))
		for mapKey, mapValue := range typedValue {
			demarshalledItem, err := w.demarshal(arrivalLink, mapValue)
			if err != nil {
				return nil, err
			}

			demarshalledMapping[mapKey] = demarshalledItem
		}

		return demarshalledMapping, nil

	case map[interface{}]interface{}:

		// msgpack decodes mappings with interface keys
		demarshalledMapping := make(map[string]interface{}, len(typedValue))
		for mapKey, mapValue := range typedValue {
			mapKeyString, keyIsString := mapKey.(string)
			if !keyIsString {
				return nil, errInvalidInput("Mapping keys must be strings")
			}

			if mapKeyString == wireHandleKey && len(typedValue) == 1 {
				return w.demarshalHandle(arrivalLink, mapValue)
			}

			demarshalledItem, err := w.demarshal(arrivalLink, mapValue)
			if err != nil {
				return nil, err
			}

			demarshalledMapping[mapKeyString] = demarshalledItem
		}

		return demarshalledMapping, nil

	case []interface{}:
		demarshalledItems := make([]interface{}, len(typedValue))
		for itemIndex, item := range typedValue {
			demarshalledItem, err := w.demarshal(arrivalLink, item)
			if err != nil {
				return nil, err
			}

			demarshalledItems[itemIndex] = demarshalledItem
		}

		return demarshalledItems, nil

	default:
		return value, nil
	}
}

func (w *World) demarshalHandle(arrivalLink *peerLink, rawReference interface{}) (interface{}, error) {
	var reference struct {
		WorldID  int    `mapstructure:"worldId"`
		ObjectID uint64 `mapstructure:"objectId"`
	}

	if err := decodeMessage(rawReference, &reference); err != nil {
		return nil, errInvalidInput("Malformed handle reference")
	}

	return w.handleFor(reference.WorldID, reference.ObjectID, arrivalLink)
}
