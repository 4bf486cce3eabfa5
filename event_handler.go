package asock

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/karagenc/actionsocket/serializer"
)

var (
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
	rawMessageType = reflect.TypeOf(json.RawMessage(nil))
)

// A subscriber callback. It takes the event body as its only
// (optional) argument and may return an error.
type eventHandler struct {
	rv           reflect.Value
	argType      reflect.Type
	returnsError bool
}

func newEventHandler(v any) (*eventHandler, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("function expected, got %T", v)
	}
	if rv.IsNil() {
		return nil, fmt.Errorf("handler function is nil")
	}

	rt := rv.Type()
	if rt.IsVariadic() || rt.NumIn() > 1 {
		return nil, fmt.Errorf("handler function must take at most 1 argument")
	}

	h := &eventHandler{rv: rv}
	if rt.NumIn() == 1 {
		h.argType = rt.In(0)
	}

	switch rt.NumOut() {
	case 0:
	case 1:
		if rt.Out(0) != errorType {
			return nil, fmt.Errorf("handler function can only return an error")
		}
		h.returnsError = true
	default:
		return nil, fmt.Errorf("handler function can only return an error")
	}
	return h, nil
}

// Convert body into the argument type of the handler.
//
// Raw JSON is decoded with s, unless the handler takes json.RawMessage.
// Go values are passed as is when assignable, and converted
// through JSON when they aren't.
func (h *eventHandler) arg(s serializer.JSONSerializer, body any) (reflect.Value, error) {
	t := h.argType

	raw, isRaw := body.(json.RawMessage)
	if !isRaw {
		if body == nil {
			return reflect.Zero(t), nil
		}
		rv := reflect.ValueOf(body)
		if rv.Type().AssignableTo(t) {
			return rv, nil
		}
		data, err := s.Marshal(body)
		if err != nil {
			return reflect.Value{}, err
		}
		raw = data
	}

	if t == rawMessageType {
		return reflect.ValueOf(raw), nil
	}
	if len(raw) == 0 {
		return reflect.Zero(t), nil
	}
	v := reflect.New(t)
	err := s.Unmarshal(raw, v.Interface())
	if err != nil {
		return reflect.Value{}, err
	}
	return v.Elem(), nil
}

func (h *eventHandler) call(s serializer.JSONSerializer, body any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoveredError(r)
		}
	}()

	var args []reflect.Value
	if h.argType != nil {
		arg, err := h.arg(s, body)
		if err != nil {
			return fmt.Errorf("decode body: %w", err)
		}
		args = []reflect.Value{arg}
	}

	ret := h.rv.Call(args)
	if h.returnsError && !ret[0].IsNil() {
		return ret[0].Interface().(error)
	}
	return nil
}
