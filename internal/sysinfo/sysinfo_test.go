package sysinfo

import (
	"context"
	"encoding/json"
	"runtime"
	"testing"
)

func TestCollectDescribesHost(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("host probes are exercised on linux")
	}
	doc, err := Collect(context.Background(), "inv-1", nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if doc.Schema != SchemaV1 || doc.InvocationID != "inv-1" {
		t.Fatalf("Collect() schema/invocation=%s/%s", doc.Schema, doc.InvocationID)
	}
	if doc.CPU.LogicalCores < 1 {
		t.Fatalf("LogicalCores=%d, want >= 1", doc.CPU.LogicalCores)
	}
	if doc.Memory.TotalBytes == 0 {
		t.Fatalf("Memory.TotalBytes=0, want > 0")
	}
	if doc.Host.OS == "" {
		t.Fatalf("Host.OS is empty")
	}
}

func TestDocumentAlwaysEncodesDiskList(t *testing.T) {
	raw, err := json.Marshal(Document{Schema: SchemaV1, Disks: []DiskInfo{}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := decoded["disks"].([]any); !ok {
		t.Fatalf("disks=%v, want a JSON array", decoded["disks"])
	}
	if _, ok := decoded["warnings"]; ok {
		t.Fatalf("warnings should be omitted when empty")
	}
}
