package assert

import (
	"fmt"
	"reflect"
	"runtime"
)

// NotNil panics when v is nil, including typed nil pointers stored in interfaces.
func NotNil(v interface{}) {
	if v == nil {
		panic("assert: unexpected nil value")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("assert: unexpected nil %s", rv.Type()))
		}
	}
}

// NotCircular panics when the calling singleton constructor is already on the
// stack, which happens when two Default* constructors depend on each other.
func NotCircular() {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return
	}
	name := runtime.FuncForPC(pc).Name()

	pcs := make([]uintptr, 64)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if f.Function == name {
			panic(fmt.Sprintf("assert: circular initialisation detected in %s", name))
		}
		if !more {
			return
		}
	}
}
