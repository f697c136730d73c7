//go:build wasm

package main

import (
	"encoding/json"
	"syscall/js"
	"testing"

	"github.com/praetorian-inc/sigscan/pkg/scanner"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// newTestScanner returns a handle for a scanner built from signature text.
func newTestScanner(t *testing.T, signatures string) int {
	t.Helper()
	result := newScanner(js.Value{}, []js.Value{js.ValueOf(signatures)})
	resultMap, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected map result, got %T", result)
	}
	if errMsg, hasError := resultMap["error"]; hasError {
		t.Fatalf("Failed to create scanner: %v", errMsg)
	}
	handle := resultMap["handle"].(int)
	t.Cleanup(func() { closeScanner(js.Value{}, []js.Value{js.ValueOf(handle)}) })
	return handle
}

func uint8Array(b []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(b))
	js.CopyBytesToJS(arr, b)
	return arr
}

func TestScannerCreation(t *testing.T) {
	newTestScanner(t, "builtin")
}

func TestScannerCreation_BadSignature(t *testing.T) {
	result := newScanner(js.Value{}, []js.Value{js.ValueOf("55 zz")})
	errMap, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected error map, got %T", result)
	}
	if _, hasError := errMap["error"]; !hasError {
		t.Error("Expected error for a bad signature")
	}
}

func TestScanImage(t *testing.T) {
	handle := newTestScanner(t, "<A fn> 55 48 89 e5")

	resultStr := scan(js.Value{}, []js.Value{
		js.ValueOf(handle),
		uint8Array([]byte{0xcc, 0x55, 0x48, 0x89, 0xe5}),
		js.ValueOf("upload:1"),
		js.ValueOf("0x140000000"),
		js.ValueOf(true),
	})

	jsonStr, ok := resultStr.(string)
	if !ok {
		t.Fatalf("Expected string result, got %T: %v", resultStr, resultStr)
	}

	var result scanner.ScanResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}

	if result.Source != "upload:1" {
		t.Errorf("Expected source 'upload:1', got %q", result.Source)
	}
	if len(result.Hits) != 1 {
		t.Fatalf("Expected 1 hit, got %d", len(result.Hits))
	}
	if got := result.Hits[0].Location.Address.Start; got != 0x140000001 {
		t.Errorf("Expected hit at 0x140000001, got %#x", got)
	}
}

func TestScanBatch(t *testing.T) {
	handle := newTestScanner(t, "<A fn> 55 48 89 e5")

	items := []scanner.ScanItem{
		{Source: "a", Data: []byte{0x55, 0x48, 0x89, 0xe5}, Raw: true},
		{Source: "b", Data: []byte{0x90, 0x90}, Raw: true},
		{Source: "c", Data: []byte{0x90, 0x55, 0x48, 0x89, 0xe5}, Raw: true},
	}
	itemsJSON, _ := json.Marshal(items)

	resultStr := scanBatch(js.Value{}, []js.Value{
		js.ValueOf(handle),
		js.ValueOf(string(itemsJSON)),
	})

	jsonStr, ok := resultStr.(string)
	if !ok {
		t.Fatalf("Expected string result, got %T: %v", resultStr, resultStr)
	}

	var result scanner.BatchScanResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}

	if result.Total != 2 {
		t.Errorf("Expected 2 total hits, got %d", result.Total)
	}
	if len(result.Results) != 3 {
		t.Errorf("Expected 3 result items, got %d", len(result.Results))
	}
}

func TestScanBatch_BadJSON(t *testing.T) {
	handle := newTestScanner(t, "c3")

	result := scanBatch(js.Value{}, []js.Value{js.ValueOf(handle), js.ValueOf("not json")})
	if _, ok := result.(map[string]interface{}); !ok {
		t.Fatalf("Expected error map, got %T", result)
	}
}

func TestCompile(t *testing.T) {
	resultStr := compile(js.Value{}, []js.Value{js.ValueOf("E8 <F call> .{4}")})

	jsonStr, ok := resultStr.(string)
	if !ok {
		t.Fatalf("Expected string result, got %T: %v", resultStr, resultStr)
	}

	var result scanner.CompileResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}
	if result.Atom == "" {
		t.Error("Expected a hex atom")
	}
	if len(result.Records) != 1 || result.Records[0].Name != "call" {
		t.Errorf("Expected one record named call, got %+v", result.Records)
	}
}

func TestGetBuiltinSignatures(t *testing.T) {
	result := getBuiltinSignatures(js.Value{}, nil)

	jsonStr, ok := result.(string)
	if !ok {
		if errMap, isMap := result.(map[string]interface{}); isMap {
			t.Fatalf("Got error: %v", errMap["error"])
		}
		t.Fatalf("Expected string result, got %T", result)
	}

	var sigs []*types.Signature
	if err := json.Unmarshal([]byte(jsonStr), &sigs); err != nil {
		t.Fatalf("Failed to parse signatures: %v", err)
	}
	if len(sigs) == 0 {
		t.Error("Expected at least one builtin signature")
	}
	for _, s := range sigs {
		if s.ID == "" || s.Pattern == "" {
			t.Errorf("Signature missing ID or Pattern: %+v", s)
		}
	}
}

func TestCloseScanner(t *testing.T) {
	createResult := newScanner(js.Value{}, []js.Value{js.ValueOf("builtin")})
	handle := createResult.(map[string]interface{})["handle"].(int)

	if closeResult := closeScanner(js.Value{}, []js.Value{js.ValueOf(handle)}); closeResult != nil {
		t.Fatalf("Close failed: %v", closeResult)
	}

	scanResult := scan(js.Value{}, []js.Value{
		js.ValueOf(handle),
		js.ValueOf("test"),
	})
	if _, ok := scanResult.(map[string]interface{}); !ok {
		t.Error("Expected error when using closed scanner")
	}
}

func TestInvalidHandle(t *testing.T) {
	result := scan(js.Value{}, []js.Value{
		js.ValueOf(99999),
		js.ValueOf("test"),
	})
	if _, ok := result.(map[string]interface{}); !ok {
		t.Fatalf("Expected error map, got %T", result)
	}
}
