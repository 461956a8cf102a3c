//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/pkg/errors"
)

var (
	errNotInitialized = errors.New("not initialized")
	errNoArchives     = errors.New("archives not initialized")
)

// promise runs fn on its own goroutine. IndexedDB calls block on JS callbacks
// and would deadlock the event loop if made from the calling goroutine.
func promise(fn func() (interface{}, error)) interface{} {
	var handler js.Func
	handler = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolve, reject := args[0], args[1]
		go func() {
			defer handler.Release()
			v, err := fn()
			if err != nil {
				reject.Invoke(errorResult(err.Error()))
				return
			}
			resolve.Invoke(v)
		}()
		return nil
	})
	return js.Global().Get("Promise").New(handler)
}

// Helper: Marshal v as the result
func jsonResult(v interface{}) interface{} {
	bytes, err := json.Marshal(v)
	if err != nil {
		return errorResult(err.Error())
	}
	return string(bytes)
}

// Helper: Create error result
func errorResult(msg string) interface{} {
	result := map[string]interface{}{
		"error": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Create success result
func successResult(msg string) interface{} {
	result := map[string]interface{}{
		"success": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}
